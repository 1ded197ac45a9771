// Package market holds the shared market-facing types: sides, signals,
// bars and quotes, plus the collaborator interfaces the engine consumes.
package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the direction of a position.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

func (s Side) Valid() bool {
	return s == Long || s == Short
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// ParseSide accepts long/short as well as buy/sell.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Action is what a signal asks for.
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
	Hold Action = "hold"
)

// ParseAction parses buy/sell/hold, case-insensitive.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case Buy, Sell, Hold:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Side maps buy to long and sell to short. Hold has no side.
func (a Action) Side() (Side, bool) {
	switch a {
	case Buy:
		return Long, true
	case Sell:
		return Short, true
	}
	return "", false
}

// Opposes reports whether the action asks to trade against side.
func (a Action) Opposes(s Side) bool {
	return (a == Buy && s == Short) || (a == Sell && s == Long)
}

// Signal is an externally produced trading instruction. Price levels are
// absolute; a zero value means the producer did not set one.
type Signal struct {
	Symbol     string
	Action     Action
	Confidence float64
	Target     decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	Source     string
}

// Actionable reports whether the signal asks for an entry with at least
// the given confidence. The threshold is exclusive.
func (s Signal) Actionable(minConfidence float64) bool {
	if _, ok := s.Action.Side(); !ok {
		return false
	}
	return s.Confidence > minConfidence
}
