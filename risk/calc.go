package risk

import (
	"github.com/shopspring/decimal"
)

// PlannedRisk is the loss if the stop is hit: units * |entry - stop|.
func PlannedRisk(units, entry, stop decimal.Decimal) decimal.Decimal {
	return units.Mul(entry.Sub(stop).Abs())
}

// RR is reward over risk. Zero when the stop distance is zero.
func RR(entry, stop, takeProfit decimal.Decimal) decimal.Decimal {
	risk := entry.Sub(stop).Abs()
	if risk.IsZero() {
		return decimal.Zero
	}
	return takeProfit.Sub(entry).Abs().Div(risk)
}

// SizingInputs describes a risk-based sizing request.
type SizingInputs struct {
	Balance      decimal.Decimal
	RiskPerTrade decimal.Decimal // fraction of balance put at risk, e.g. 0.01
	Entry        decimal.Decimal
	Stop         decimal.Decimal
	MaxFraction  decimal.Decimal // cap on notional as a fraction of balance
	Precision    int32           // decimal places kept in the quantity
}

// SizeByRisk returns the largest quantity whose stop-distance loss stays
// within Balance*RiskPerTrade and whose notional stays within
// Balance*MaxFraction, truncated to Precision places. A zero stop distance
// sizes by the capital cap alone.
func SizeByRisk(in SizingInputs) decimal.Decimal {
	if !in.Entry.IsPositive() || !in.Balance.IsPositive() {
		return decimal.Zero
	}

	qty := in.Balance.Mul(in.MaxFraction).Div(in.Entry)

	dist := in.Entry.Sub(in.Stop).Abs()
	if dist.IsPositive() && in.RiskPerTrade.IsPositive() {
		byRisk := in.Balance.Mul(in.RiskPerTrade).Div(dist)
		qty = decimal.Min(qty, byRisk)
	}

	qty = qty.Truncate(in.Precision)
	if qty.IsNegative() {
		return decimal.Zero
	}
	return qty
}

// Sizing holds the account-level sizing rules.
type Sizing struct {
	RiskPerTrade decimal.Decimal
	MaxFraction  decimal.Decimal
	Precision    int32
}

// Quantity sizes a position entering at entry with its stop at stop.
func (s Sizing) Quantity(balance, entry, stop decimal.Decimal) decimal.Decimal {
	return SizeByRisk(SizingInputs{
		Balance:      balance,
		RiskPerTrade: s.RiskPerTrade,
		Entry:        entry,
		Stop:         stop,
		MaxFraction:  s.MaxFraction,
		Precision:    s.Precision,
	})
}
