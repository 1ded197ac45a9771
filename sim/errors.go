package sim

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/tradeledger/risk"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrDuplicatePosition     = errors.New("position already open")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrRiskLimitExceeded     = errors.New("risk limit exceeded")
	ErrPositionNotFound      = errors.New("position not found")
	ErrMarketDataUnavailable = errors.New("market data unavailable")
	ErrPersistence           = errors.New("persistence failed")
	ErrShutdown              = errors.New("engine shut down")
)

// Reason codes carried by Error.
const (
	ReasonInvalidQuantity       = "invalid_quantity"
	ReasonInvalidSide           = "invalid_side"
	ReasonInvalidSymbol         = "invalid_symbol"
	ReasonInvalidStop           = "invalid_stop"
	ReasonInvalidPrice          = "invalid_price"
	ReasonDuplicatePosition     = "duplicate_position"
	ReasonInsufficientFunds     = "insufficient_funds"
	ReasonPositionNotFound      = "position_not_found"
	ReasonMarketDataUnavailable = "market_data_unavailable"
	ReasonPersistence           = "persistence"
	ReasonShutdown              = "shutdown"
)

// Error is returned by Engine operations. Err is one of the sentinels above
// and Reason a stable machine-readable code; risk rejections use the risk
// package codes.
type Error struct {
	Op     string
	Symbol string
	Reason string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Symbol, e.Err)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(op, symbol, reason string, err error, detail string) *Error {
	return &Error{Op: op, Symbol: symbol, Reason: reason, Detail: detail, Err: err}
}

func riskError(op, symbol string, d risk.Decision) *Error {
	return newError(op, symbol, d.Code, ErrRiskLimitExceeded, d.Reason)
}

// Class tells a caller how to react to an error.
type Class string

const (
	ClassRetry   Class = "retry"   // transient, try again later
	ClassNever   Class = "never"   // will not succeed as asked
	ClassPolicy  Class = "policy"  // blocked by a risk limit
	ClassUnknown Class = "unknown" // not an engine error
)

// Classify maps an error to the way callers should handle it.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrMarketDataUnavailable), errors.Is(err, ErrPersistence):
		return ClassRetry
	case errors.Is(err, ErrRiskLimitExceeded):
		return ClassPolicy
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDuplicatePosition),
		errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrPositionNotFound),
		errors.Is(err, ErrShutdown):
		return ClassNever
	}
	return ClassUnknown
}

// ReasonOf returns the Reason of an *Error, or "" for other errors.
func ReasonOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Reason
	}
	return ""
}
