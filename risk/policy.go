package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/market"
)

// Policy holds the eligibility limits checked before a position opens.
type Policy struct {
	// Exposure limits
	MaxPositions int // 5

	// Circuit breaker: new entries are refused once the day's realized P&L
	// reaches -Balance*MaxDailyDrawdown. With DrawdownFromDayStart the base
	// is the balance at the last day roll instead of the current cash.
	MaxDailyDrawdown     decimal.Decimal // 0.05
	DrawdownFromDayStart bool            // false

	// Concentration: max share of open positions in one asset class, checked
	// once the book would hold at least ConcentrationMinPositions.
	MaxConcentration          decimal.Decimal // 0.8
	ConcentrationMinPositions int             // 4

	// Classify maps a symbol to an asset class. Nil uses market.ClassifyAsset.
	Classify func(symbol string) market.AssetClass
}

// DefaultPolicy returns the limits used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxPositions:              5,
		MaxDailyDrawdown:          decimal.RequireFromString("0.05"),
		MaxConcentration:          decimal.RequireFromString("0.8"),
		ConcentrationMinPositions: 4,
	}
}

func (p Policy) Validate() error {
	one := decimal.NewFromInt(1)
	if p.MaxPositions <= 0 {
		return fmt.Errorf("max positions must be positive, got %d", p.MaxPositions)
	}
	if !p.MaxDailyDrawdown.IsPositive() || p.MaxDailyDrawdown.GreaterThan(one) {
		return fmt.Errorf("max daily drawdown must be in (0,1], got %s", p.MaxDailyDrawdown)
	}
	if !p.MaxConcentration.IsPositive() || p.MaxConcentration.GreaterThan(one) {
		return fmt.Errorf("max concentration must be in (0,1], got %s", p.MaxConcentration)
	}
	if p.ConcentrationMinPositions < 1 {
		return fmt.Errorf("concentration min positions must be at least 1, got %d", p.ConcentrationMinPositions)
	}
	return nil
}

func (p Policy) classify(symbol string) market.AssetClass {
	if p.Classify != nil {
		return p.Classify(symbol)
	}
	return market.ClassifyAsset(symbol)
}

// AccountSnapshot is the account state the checks read.
type AccountSnapshot struct {
	Balance         decimal.Decimal
	DayStartBalance decimal.Decimal
	DailyPL         decimal.Decimal
}

// PositionSnapshot is one open position as the checks see it.
type PositionSnapshot struct {
	Symbol   string
	Side     market.Side
	Notional decimal.Decimal
}
