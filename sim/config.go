package sim

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/risk"
)

// Config is the account and execution configuration for an Engine. All
// rates and limits are fractions (0.01 = 1%).
type Config struct {
	InitialBalance decimal.Decimal

	CommissionRate decimal.Decimal // charged on entry and exit notional
	SlippageRate   decimal.Decimal // applied against the trader on every fill

	// MaxRiskPerTrade caps a single position's notional as a fraction of
	// the cash balance at open.
	MaxRiskPerTrade  decimal.Decimal
	MaxDailyDrawdown decimal.Decimal
	MaxPositions     int

	// DrawdownFromDayStart measures the daily limit from the balance at the
	// last RollDay rather than the current cash balance.
	DrawdownFromDayStart bool

	MaxConcentration          decimal.Decimal
	ConcentrationMinPositions int

	// Default exit fractions for positions opened without their own.
	// A zero TrailingStop disables trailing.
	StopLoss     decimal.Decimal
	TakeProfit   decimal.Decimal
	TrailingStop decimal.Decimal
}

// Defaults returns a paper account of 100k with conservative limits.
func Defaults() Config {
	p := risk.DefaultPolicy()
	return Config{
		InitialBalance:            decimal.NewFromInt(100000),
		CommissionRate:            decimal.RequireFromString("0.001"),
		SlippageRate:              decimal.RequireFromString("0.0005"),
		MaxRiskPerTrade:           decimal.RequireFromString("0.2"),
		MaxDailyDrawdown:          p.MaxDailyDrawdown,
		MaxPositions:              p.MaxPositions,
		MaxConcentration:          p.MaxConcentration,
		ConcentrationMinPositions: p.ConcentrationMinPositions,
		StopLoss:                  decimal.RequireFromString("0.02"),
		TakeProfit:                decimal.RequireFromString("0.04"),
	}
}

func (c Config) Validate() error {
	one := decimal.NewFromInt(1)
	inUnit := func(name string, v decimal.Decimal, allowZero bool) error {
		if v.IsNegative() || v.GreaterThanOrEqual(one) || (!allowZero && v.IsZero()) {
			return fmt.Errorf("%s must be in [0,1), got %s", name, v)
		}
		return nil
	}

	if !c.InitialBalance.IsPositive() {
		return fmt.Errorf("initial balance must be positive, got %s", c.InitialBalance)
	}
	if err := inUnit("commission rate", c.CommissionRate, true); err != nil {
		return err
	}
	if err := inUnit("slippage rate", c.SlippageRate, true); err != nil {
		return err
	}
	if !c.MaxRiskPerTrade.IsPositive() || c.MaxRiskPerTrade.GreaterThan(one) {
		return fmt.Errorf("max risk per trade must be in (0,1], got %s", c.MaxRiskPerTrade)
	}
	if err := inUnit("stop loss", c.StopLoss, false); err != nil {
		return err
	}
	if !c.TakeProfit.IsPositive() {
		return fmt.Errorf("take profit must be positive, got %s", c.TakeProfit)
	}
	if err := inUnit("trailing stop", c.TrailingStop, true); err != nil {
		return err
	}
	return c.RiskPolicy().Validate()
}

// RiskPolicy extracts the eligibility limits for the risk manager.
func (c Config) RiskPolicy() risk.Policy {
	return risk.Policy{
		MaxPositions:              c.MaxPositions,
		MaxDailyDrawdown:          c.MaxDailyDrawdown,
		DrawdownFromDayStart:      c.DrawdownFromDayStart,
		MaxConcentration:          c.MaxConcentration,
		ConcentrationMinPositions: c.ConcentrationMinPositions,
	}
}
