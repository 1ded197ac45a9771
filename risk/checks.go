package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rejection codes. They are stable and safe to match on.
const (
	CodeMaxPositions  = "max_positions"
	CodeDailyDrawdown = "daily_drawdown"
	CodeConcentration = "concentration"
	CodePerTradeRisk  = "per_trade_risk"
)

// Decision is the outcome of a risk check. Code and Reason are empty when
// Allowed is true.
type Decision struct {
	Allowed bool
	Code    string
	Reason  string
}

func approve() Decision { return Decision{Allowed: true} }

func reject(code, reason string) Decision {
	return Decision{Code: code, Reason: reason}
}

// Manager gates whether a new position may open. It only checks
// eligibility; affordability is the engine's job.
type Manager struct {
	policy Policy
}

func NewManager(p Policy) (*Manager, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("risk policy: %w", err)
	}
	return &Manager{policy: p}, nil
}

func (m *Manager) Policy() Policy { return m.policy }

// Validate runs the checks in order and stops at the first failure:
// position count, daily drawdown, asset-class concentration.
func (m *Manager) Validate(symbol string, acct AccountSnapshot, open []PositionSnapshot) Decision {
	p := m.policy

	if len(open) >= p.MaxPositions {
		return reject(CodeMaxPositions, "max positions reached")
	}

	base := acct.Balance
	if p.DrawdownFromDayStart {
		base = acct.DayStartBalance
	}
	limit := base.Mul(p.MaxDailyDrawdown).Neg()
	if acct.DailyPL.LessThanOrEqual(limit) {
		return reject(CodeDailyDrawdown, "daily drawdown limit exceeded")
	}

	total := len(open) + 1
	if total >= p.ConcentrationMinPositions {
		class := p.classify(symbol)
		same := 1
		for _, pos := range open {
			if p.classify(pos.Symbol) == class {
				same++
			}
		}
		share := decimal.NewFromInt(int64(same)).Div(decimal.NewFromInt(int64(total)))
		if share.GreaterThan(p.MaxConcentration) {
			return reject(CodeConcentration,
				fmt.Sprintf("%s concentration %s%% exceeds max %s%%",
					class, share.Mul(decimal.NewFromInt(100)).StringFixed(1),
					p.MaxConcentration.Mul(decimal.NewFromInt(100)).StringFixed(1)))
		}
	}

	return approve()
}

// CheckPerTrade rejects a position whose notional exceeds maxFraction of
// the balance.
func CheckPerTrade(notional, balance, maxFraction decimal.Decimal) Decision {
	if notional.GreaterThan(balance.Mul(maxFraction)) {
		return reject(CodePerTradeRisk, "exceeds per-trade risk")
	}
	return approve()
}
