package sim

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/market"
	"github.com/rustyeddy/tradeledger/pl"
	"github.com/rustyeddy/tradeledger/risk"
)

// SignalFractions converts a signal's absolute stop and target into
// fractions of entry. Levels that are unset or on the wrong side of entry
// come back as zero.
func SignalFractions(sig market.Signal, side market.Side, entry decimal.Decimal) (stopLoss, takeProfit decimal.Decimal) {
	if !entry.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	one := decimal.NewFromInt(1)
	if sl := sig.StopLoss; sl.IsPositive() {
		f := entry.Sub(sl).Abs().Div(entry)
		if crossed(side, sl, entry) && !sl.Equal(entry) && f.LessThan(one) {
			stopLoss = f
		}
	}
	if tp := sig.TakeProfit; tp.IsPositive() {
		if reached(side, tp, entry) && !tp.Equal(entry) {
			takeProfit = entry.Sub(tp).Abs().Div(entry)
		}
	}
	return stopLoss, takeProfit
}

// PlanFromSignal turns an actionable signal into an OpenRequest sized by
// sz against the current balance. The entry is estimated from the last
// quote with slippage; exit levels missing from the signal use the engine
// defaults.
func (e *Engine) PlanFromSignal(sig market.Signal, sz risk.Sizing) (OpenRequest, error) {
	const op = "plan"
	side, ok := sig.Action.Side()
	if !ok {
		return OpenRequest{}, newError(op, sig.Symbol, ReasonInvalidSide, ErrValidation, fmt.Sprintf("action %q", sig.Action))
	}
	q, err := e.quotes.Get(sig.Symbol)
	if err != nil {
		return OpenRequest{}, newError(op, sig.Symbol, ReasonMarketDataUnavailable, ErrMarketDataUnavailable, err.Error())
	}

	entry := pl.ExecutionPrice(q.Price, e.cfg.SlippageRate, pl.EntryIsBuy(side))
	slf, tpf := SignalFractions(sig, side, entry)
	stop := offset(entry, orDefault(slf, e.cfg.StopLoss), side == market.Short)

	e.mu.RLock()
	balance := e.acct.balance
	e.mu.RUnlock()

	qty := sz.Quantity(balance, entry, stop)
	if !qty.IsPositive() {
		return OpenRequest{}, newError(op, sig.Symbol, ReasonInvalidQuantity, ErrValidation, "sized to zero")
	}
	return OpenRequest{
		Symbol:     sig.Symbol,
		Side:       side,
		Quantity:   qty,
		StopLoss:   slf,
		TakeProfit: tpf,
		Confidence: sig.Confidence,
		Source:     sig.Source,
	}, nil
}

// Routed reports what ApplySignal did. Either field may be nil.
type Routed struct {
	Closed *journal.TradeRecord
	Opened *Position
}

// ApplySignal routes sig against the book: an opposing action closes the
// open position with signal_change, an action on the same side as the open
// position is ignored, and an actionable signal (confidence strictly above
// minConfidence) is sized by sz and opened. A failed open returns the
// rejection error alongside any close that already happened.
func (e *Engine) ApplySignal(sig market.Signal, sz risk.Sizing, minConfidence float64) (Routed, error) {
	var out Routed
	if pos, ok := e.Position(sig.Symbol); ok {
		if !sig.Action.Opposes(pos.Side) {
			return out, nil
		}
		tr, err := e.ClosePosition(sig.Symbol, journal.ReasonSignalChange, nil)
		if err != nil {
			return out, err
		}
		out.Closed = &tr
	}

	if !sig.Actionable(minConfidence) {
		return out, nil
	}
	req, err := e.PlanFromSignal(sig, sz)
	if err != nil {
		return out, err
	}
	p, err := e.OpenPosition(req)
	if err != nil {
		return out, err
	}
	out.Opened = &p
	return out, nil
}
