package sim

import (
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/market"
)

// StopDecision is the outcome of evaluating a position against a price.
type StopDecision struct {
	Close  bool
	Reason journal.CloseReason
	// BoundaryMoved is set when the trailing boundary tightened.
	BoundaryMoved bool
}

// EvaluateStops runs the stop state machine for one price update. Stop-loss
// is checked before take-profit, which is checked before the trailing stop.
// The trailing boundary on p only ever tightens.
func EvaluateStops(p *Position, price decimal.Decimal) StopDecision {
	frac := p.PLFraction(price)

	if p.StopLossFraction.IsPositive() && frac.LessThanOrEqual(p.StopLossFraction.Neg()) {
		return StopDecision{Close: true, Reason: journal.ReasonStopLoss}
	}
	if p.TakeProfitFraction.IsPositive() && frac.GreaterThanOrEqual(p.TakeProfitFraction) {
		return StopDecision{Close: true, Reason: journal.ReasonTakeProfit}
	}
	if p.TrailingFraction.IsZero() {
		return StopDecision{}
	}

	var dec StopDecision
	nb := offset(price, p.TrailingFraction, p.Side == market.Short)
	if tightens(p.Side, nb, p.TrailingBoundary) {
		p.TrailingBoundary = nb
		dec.BoundaryMoved = true
	}
	if crossed(p.Side, price, p.TrailingBoundary) {
		dec.Close = true
		dec.Reason = journal.ReasonTrailingStop
	}
	return dec
}

// EvaluateBar checks a position against one bar's range. Long stops trigger
// on bar.Low and long targets on bar.High, mirrored for shorts. Targets fill
// at their level. Stop and trailing exits fill at the level, or at the open
// when the bar gapped through it. The trailing boundary is tested before it
// is advanced with the bar's favourable extreme.
func EvaluateBar(p *Position, bar market.Bar) (exit decimal.Decimal, reason journal.CloseReason, hit bool) {
	long := p.Side == market.Long
	adverse, favourable := bar.Low, bar.High
	if !long {
		adverse, favourable = bar.High, bar.Low
	}

	if sl := p.StopLossPrice(); !sl.IsZero() && crossed(p.Side, adverse, sl) {
		return gapFill(p.Side, sl, bar.Open), journal.ReasonStopLoss, true
	}
	if tp := p.TakeProfitPrice(); !tp.IsZero() && reached(p.Side, favourable, tp) {
		return tp, journal.ReasonTakeProfit, true
	}
	if p.TrailingFraction.IsZero() {
		return decimal.Zero, "", false
	}

	if !p.TrailingBoundary.IsZero() && crossed(p.Side, adverse, p.TrailingBoundary) {
		return gapFill(p.Side, p.TrailingBoundary, bar.Open), journal.ReasonTrailingStop, true
	}
	nb := offset(favourable, p.TrailingFraction, !long)
	if tightens(p.Side, nb, p.TrailingBoundary) {
		p.TrailingBoundary = nb
	}
	return decimal.Zero, "", false
}

// gapFill is the adverse exit price: the level, unless the bar opened
// beyond it.
func gapFill(side market.Side, level, open decimal.Decimal) decimal.Decimal {
	if !open.IsPositive() || !crossed(side, open, level) {
		return level
	}
	return open
}

// tightens reports whether moving the boundary to nb reduces risk.
func tightens(side market.Side, nb, current decimal.Decimal) bool {
	if current.IsZero() {
		return true
	}
	if side == market.Long {
		return nb.GreaterThan(current)
	}
	return nb.LessThan(current)
}

// crossed reports whether price moved through level against the position.
func crossed(side market.Side, price, level decimal.Decimal) bool {
	if side == market.Long {
		return price.LessThanOrEqual(level)
	}
	return price.GreaterThanOrEqual(level)
}

// reached reports whether price moved through level in the position's favour.
func reached(side market.Side, price, level decimal.Decimal) bool {
	if side == market.Long {
		return price.GreaterThanOrEqual(level)
	}
	return price.LessThanOrEqual(level)
}
