// Package backtest replays historical bars for one or more symbols through
// a single sim.Engine, asking a signal provider for entries and emulating
// intrabar stop execution from each bar's range.
package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/risk"
	"github.com/rustyeddy/tradeledger/sim"
)

type Config struct {
	Engine sim.Config

	// Sizing: risk RiskPerTrade of the balance over the stop distance, and
	// never commit more than MaxPositionFraction of it to one position.
	RiskPerTrade        decimal.Decimal // 0.01
	MaxPositionFraction decimal.Decimal // 0.2
	QuantityPrecision   int32           // 4

	SignalEvery   int     // ask for a signal every N bars per symbol
	Lookback      int     // bars passed to the provider
	MinConfidence float64 // exclusive

	Interval string // passed through to the bar source and provider

	// Seed drives trade ID entropy. Equal seeds give equal IDs.
	Seed int64

	AnnualizationFactor float64
}

func Defaults() Config {
	return Config{
		Engine:              sim.Defaults(),
		RiskPerTrade:        decimal.RequireFromString("0.01"),
		MaxPositionFraction: decimal.RequireFromString("0.2"),
		QuantityPrecision:   4,
		SignalEvery:         1,
		Lookback:            50,
		MinConfidence:       0.6,
		Interval:            "1h",
		Seed:                1,
		AnnualizationFactor: 252,
	}
}

func (c Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	one := decimal.NewFromInt(1)
	if !c.RiskPerTrade.IsPositive() || c.RiskPerTrade.GreaterThan(one) {
		return fmt.Errorf("risk per trade must be in (0,1], got %s", c.RiskPerTrade)
	}
	if !c.MaxPositionFraction.IsPositive() || c.MaxPositionFraction.GreaterThan(one) {
		return fmt.Errorf("max position fraction must be in (0,1], got %s", c.MaxPositionFraction)
	}
	if c.QuantityPrecision < 0 {
		return fmt.Errorf("quantity precision must not be negative, got %d", c.QuantityPrecision)
	}
	if c.SignalEvery < 1 {
		return fmt.Errorf("signal cadence must be at least 1, got %d", c.SignalEvery)
	}
	if c.Lookback < 1 {
		return fmt.Errorf("lookback must be at least 1, got %d", c.Lookback)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0,1], got %v", c.MinConfidence)
	}
	return nil
}

// Sizing caps each position by the tighter of MaxPositionFraction and the
// engine's per-trade notional limit, so sized orders are not rejected for
// size alone.
func (c Config) Sizing() risk.Sizing {
	return risk.Sizing{
		RiskPerTrade: c.RiskPerTrade,
		MaxFraction:  decimal.Min(c.MaxPositionFraction, c.Engine.MaxRiskPerTrade),
		Precision:    c.QuantityPrecision,
	}
}
