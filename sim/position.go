package sim

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/market"
	"github.com/rustyeddy/tradeledger/pl"
	"github.com/rustyeddy/tradeledger/risk"
)

// Position is an open exposure to one symbol. Exit levels are stored as
// fractions of EntryPrice; a zero fraction means the exit is not set.
type Position struct {
	ID              string
	Symbol          string
	Side            market.Side
	Quantity        decimal.Decimal
	EntryPrice      decimal.Decimal // includes slippage
	EntryTime       time.Time
	EntryCommission decimal.Decimal

	StopLossFraction   decimal.Decimal
	TakeProfitFraction decimal.Decimal
	TrailingFraction   decimal.Decimal
	TrailingBoundary   decimal.Decimal

	LastPrice decimal.Decimal

	Confidence   float64
	SignalSource string
}

// Notional is EntryPrice * Quantity.
func (p Position) Notional() decimal.Decimal {
	return pl.PositionValue(p.EntryPrice, p.Quantity)
}

// StopLossPrice is the absolute stop level, zero when unset.
func (p Position) StopLossPrice() decimal.Decimal {
	if p.StopLossFraction.IsZero() {
		return decimal.Zero
	}
	return offset(p.EntryPrice, p.StopLossFraction, p.Side == market.Short)
}

// TakeProfitPrice is the absolute take-profit level, zero when unset.
func (p Position) TakeProfitPrice() decimal.Decimal {
	if p.TakeProfitFraction.IsZero() {
		return decimal.Zero
	}
	return offset(p.EntryPrice, p.TakeProfitFraction, p.Side == market.Long)
}

// Unrealized is the gross P&L at price.
func (p Position) Unrealized(price decimal.Decimal) decimal.Decimal {
	return pl.Unrealized(p.Side, p.EntryPrice, price, p.Quantity)
}

// PLFraction is Unrealized(price) over the entry cost basis.
func (p Position) PLFraction(price decimal.Decimal) decimal.Decimal {
	return pl.Fraction(p.Unrealized(price), p.EntryPrice, p.Quantity)
}

func (p Position) snapshot() risk.PositionSnapshot {
	return risk.PositionSnapshot{Symbol: p.Symbol, Side: p.Side, Notional: p.Notional()}
}

// offset returns price*(1+f) when up, else price*(1-f).
func offset(price, f decimal.Decimal, up bool) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if up {
		return price.Mul(one.Add(f))
	}
	return price.Mul(one.Sub(f))
}

// initialBoundary places the trailing stop f away from the entry on the
// losing side.
func initialBoundary(side market.Side, entry, f decimal.Decimal) decimal.Decimal {
	if f.IsZero() {
		return decimal.Zero
	}
	return offset(entry, f, side == market.Short)
}
