// Package pl holds the profit/loss, commission and slippage formulas shared
// by the live engine and the backtester. All amounts are decimals.
package pl

import (
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/market"
)

// PositionValue is price * quantity.
func PositionValue(price, qty decimal.Decimal) decimal.Decimal {
	return price.Mul(qty)
}

// Unrealized is the gross P&L of holding qty from entry to price.
//
//	long:  (price - entry) * qty
//	short: (entry - price) * qty
func Unrealized(side market.Side, entry, price, qty decimal.Decimal) decimal.Decimal {
	if side == market.Short {
		return entry.Sub(price).Mul(qty)
	}
	return price.Sub(entry).Mul(qty)
}

// Commission is notional * rate.
func Commission(notional, rate decimal.Decimal) decimal.Decimal {
	return notional.Mul(rate)
}

// Net subtracts both legs' commission from the gross P&L.
func Net(gross, entryCommission, exitCommission decimal.Decimal) decimal.Decimal {
	return gross.Sub(entryCommission).Sub(exitCommission)
}

// ExecutionPrice applies slippage against the trader: buys pay
// quote*(1+rate), sells receive quote*(1-rate).
func ExecutionPrice(quote, rate decimal.Decimal, buying bool) decimal.Decimal {
	if buying {
		return quote.Mul(decimal.NewFromInt(1).Add(rate))
	}
	return quote.Mul(decimal.NewFromInt(1).Sub(rate))
}

// EntryIsBuy reports whether opening side buys.
func EntryIsBuy(side market.Side) bool { return side == market.Long }

// ExitIsBuy reports whether closing side buys.
func ExitIsBuy(side market.Side) bool { return side == market.Short }

// Fraction is unrealized / (entry * qty). Zero when the cost basis is zero.
func Fraction(unrealized, entry, qty decimal.Decimal) decimal.Decimal {
	basis := entry.Mul(qty)
	if basis.IsZero() {
		return decimal.Zero
	}
	return unrealized.Div(basis)
}

// Settlement is the cash returned when a position closes: the notional
// posted at entry plus the gross P&L less the exit commission. For a long
// this equals exitPrice*qty - exitCommission.
func Settlement(entryNotional, gross, exitCommission decimal.Decimal) decimal.Decimal {
	return entryNotional.Add(gross).Sub(exitCommission)
}

// MarkValue is what an open position is worth to the account at price:
// the posted notional plus unrealized P&L.
func MarkValue(side market.Side, entry, price, qty decimal.Decimal) decimal.Decimal {
	return entry.Mul(qty).Add(Unrealized(side, entry, price, qty))
}
