// Package metrics reduces a trade log to performance statistics. It is
// used for live journals and backtest results alike.
package metrics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/journal"
)

// DefaultAnnualization is the number of periods per year the Sharpe ratio
// is scaled by when Options leaves it unset.
const DefaultAnnualization = 252

type Options struct {
	// InitialEquity anchors the cumulative P&L curve and TotalReturn.
	InitialEquity decimal.Decimal

	AnnualizationFactor float64

	// EquityCurve, when set, is used for drawdown instead of the curve
	// rebuilt from trades.
	EquityCurve []journal.EquitySnapshot
}

// PerformanceMetrics summarises a trade log. WinRate is a fraction;
// MaxDrawdown and TotalReturn are percentages. GrossLoss and AverageLoss
// are magnitudes.
type PerformanceMetrics struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64

	GrossProfit decimal.Decimal
	GrossLoss   decimal.Decimal
	AverageWin  decimal.Decimal
	AverageLoss decimal.Decimal
	LargestWin  decimal.Decimal
	LargestLoss decimal.Decimal

	NetPL           decimal.Decimal
	TotalCommission decimal.Decimal

	ProfitFactor float64
	SharpeRatio  float64
	MaxDrawdown  float64
	TotalReturn  float64

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageHolding       time.Duration
}

// Compute is a pure function of its inputs. An empty log yields the zero
// value.
func Compute(trades []journal.TradeRecord, opts Options) PerformanceMetrics {
	var m PerformanceMetrics
	if opts.AnnualizationFactor <= 0 {
		opts.AnnualizationFactor = DefaultAnnualization
	}

	var held time.Duration
	var wins, losses int
	returns := make([]float64, 0, len(trades))
	for _, t := range trades {
		m.TotalTrades++
		m.NetPL = m.NetPL.Add(t.RealizedPL)
		m.TotalCommission = m.TotalCommission.Add(t.Commission())
		held += t.CloseTime.Sub(t.OpenTime)

		if n := t.EntryNotional(); n.IsPositive() {
			returns = append(returns, t.RealizedPL.Div(n).InexactFloat64())
		} else {
			returns = append(returns, 0)
		}

		switch t.RealizedPL.Sign() {
		case 1:
			m.WinningTrades++
			m.GrossProfit = m.GrossProfit.Add(t.RealizedPL)
			if t.RealizedPL.GreaterThan(m.LargestWin) {
				m.LargestWin = t.RealizedPL
			}
			wins++
			losses = 0
		case -1:
			m.LosingTrades++
			m.GrossLoss = m.GrossLoss.Add(t.RealizedPL.Abs())
			if t.RealizedPL.LessThan(m.LargestLoss) {
				m.LargestLoss = t.RealizedPL
			}
			losses++
			wins = 0
		default:
			wins, losses = 0, 0
		}
		m.MaxConsecutiveWins = max(m.MaxConsecutiveWins, wins)
		m.MaxConsecutiveLosses = max(m.MaxConsecutiveLosses, losses)
	}
	if m.TotalTrades == 0 {
		return m
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	m.AverageHolding = held / time.Duration(m.TotalTrades)
	if m.WinningTrades > 0 {
		m.AverageWin = m.GrossProfit.Div(decimal.NewFromInt(int64(m.WinningTrades)))
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = m.GrossLoss.Div(decimal.NewFromInt(int64(m.LosingTrades)))
	}
	if m.GrossLoss.IsPositive() {
		m.ProfitFactor = m.GrossProfit.Div(m.GrossLoss).InexactFloat64()
	}

	m.SharpeRatio = Sharpe(returns, opts.AnnualizationFactor)
	m.MaxDrawdown, m.TotalReturn = curveStats(trades, opts, m.NetPL)
	return m
}

// Sharpe is mean/stddev*sqrt(periods) using the sample standard deviation.
// It is zero for fewer than two returns or (numerically) zero dispersion.
func Sharpe(returns []float64, periods float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(n)

	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	sd := math.Sqrt(ss / float64(n-1))
	if sd < 1e-12 {
		return 0
	}
	return mean / sd * math.Sqrt(periods)
}

// MaxDrawdown walks values tracking the running peak and returns the
// largest (peak-v)/peak as a percentage. Non-positive peaks are skipped.
func MaxDrawdown(values []decimal.Decimal) float64 {
	var (
		peak  decimal.Decimal
		worst decimal.Decimal
		seen  bool
	)
	for _, v := range values {
		if !seen || v.GreaterThan(peak) {
			peak, seen = v, true
		}
		if !peak.IsPositive() {
			continue
		}
		if dd := peak.Sub(v).Div(peak); dd.GreaterThan(worst) {
			worst = dd
		}
	}
	return worst.Mul(decimal.NewFromInt(100)).InexactFloat64()
}

func curveStats(trades []journal.TradeRecord, opts Options, net decimal.Decimal) (maxDD, totalReturn float64) {
	hundred := decimal.NewFromInt(100)

	if len(opts.EquityCurve) > 0 {
		values := make([]decimal.Decimal, len(opts.EquityCurve))
		for i, s := range opts.EquityCurve {
			values[i] = s.Equity
		}
		base := opts.InitialEquity
		if !base.IsPositive() {
			base = values[0]
		}
		if base.IsPositive() {
			totalReturn = values[len(values)-1].Sub(base).Div(base).Mul(hundred).InexactFloat64()
		}
		return MaxDrawdown(values), totalReturn
	}

	values := make([]decimal.Decimal, 0, len(trades)+1)
	eq := opts.InitialEquity
	values = append(values, eq)
	for _, t := range trades {
		eq = eq.Add(t.RealizedPL)
		values = append(values, eq)
	}
	if opts.InitialEquity.IsPositive() {
		totalReturn = net.Div(opts.InitialEquity).Mul(hundred).InexactFloat64()
	}
	return MaxDrawdown(values), totalReturn
}
