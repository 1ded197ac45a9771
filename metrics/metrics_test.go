package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/market"
)

var t0 = time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func trade(i int, realized string) journal.TradeRecord {
	open := t0.Add(time.Duration(i) * 24 * time.Hour)
	return journal.TradeRecord{
		TradeID:         "T" + string(rune('A'+i)),
		Instrument:      "AAPL",
		Side:            market.Long,
		Units:           d("10"),
		EntryPrice:      d("100"),
		OpenTime:        open,
		CloseTime:       open.Add(time.Hour),
		EntryCommission: d("1"),
		ExitCommission:  d("1"),
		RealizedPL:      d(realized),
	}
}

func TestComputeEmptyLog(t *testing.T) {
	m := Compute(nil, Options{})
	assert.Equal(t, PerformanceMetrics{}, m)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.ProfitFactor)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.MaxDrawdown)

	m = Compute([]journal.TradeRecord{}, Options{InitialEquity: d("1000")})
	assert.Zero(t, m.TotalTrades)
	assert.Zero(t, m.TotalReturn)
}

func TestComputeMixedLog(t *testing.T) {
	trades := []journal.TradeRecord{
		trade(0, "100"),
		trade(1, "30"),
		trade(2, "-50"),
		trade(3, "-20"),
		trade(4, "0"),
	}
	m := Compute(trades, Options{InitialEquity: d("1000")})

	assert.Equal(t, 5, m.TotalTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 2, m.LosingTrades)
	assert.InDelta(t, 0.4, m.WinRate, 1e-12)

	assert.True(t, d("130").Equal(m.GrossProfit))
	assert.True(t, d("70").Equal(m.GrossLoss))
	assert.True(t, d("65").Equal(m.AverageWin))
	assert.True(t, d("35").Equal(m.AverageLoss))
	assert.True(t, d("100").Equal(m.LargestWin))
	assert.True(t, d("-50").Equal(m.LargestLoss))
	assert.True(t, d("60").Equal(m.NetPL))
	assert.True(t, d("10").Equal(m.TotalCommission))
	assert.InDelta(t, 130.0/70.0, m.ProfitFactor, 1e-9)

	assert.Equal(t, 2, m.MaxConsecutiveWins)
	assert.Equal(t, 2, m.MaxConsecutiveLosses)
	assert.Equal(t, time.Hour, m.AverageHolding)

	// Curve: 1000 1100 1130 1080 1060 1060
	assert.InDelta(t, 70.0/1130.0*100, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 6.0, m.TotalReturn, 1e-9)

	want := Sharpe([]float64{0.1, 0.03, -0.05, -0.02, 0}, DefaultAnnualization)
	assert.InDelta(t, want, m.SharpeRatio, 1e-12)
	assert.Greater(t, m.SharpeRatio, 0.0)
}

func TestComputeNoLosses(t *testing.T) {
	m := Compute([]journal.TradeRecord{trade(0, "10"), trade(1, "20")}, Options{})
	assert.Zero(t, m.ProfitFactor)
	assert.InDelta(t, 1.0, m.WinRate, 1e-12)
	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.TotalReturn)
}

func TestComputeSingleTradeHasNoSharpe(t *testing.T) {
	m := Compute([]journal.TradeRecord{trade(0, "10")}, Options{})
	assert.Zero(t, m.SharpeRatio)
}

func TestComputeUsesEquityCurve(t *testing.T) {
	curve := []journal.EquitySnapshot{}
	for i, v := range []string{"100", "120", "90", "130", "104"} {
		curve = append(curve, journal.EquitySnapshot{Time: t0.Add(time.Duration(i) * time.Hour), Equity: d(v)})
	}
	m := Compute([]journal.TradeRecord{trade(0, "4")}, Options{EquityCurve: curve})
	assert.InDelta(t, 25.0, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 4.0, m.TotalReturn, 1e-9)
}

func TestSharpe(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		periods float64
		want    float64
	}{
		{"empty", nil, 252, 0},
		{"one", []float64{0.05}, 252, 0},
		{"flat", []float64{0.01, 0.01, 0.01}, 252, 0},
		{"two", []float64{0.01, 0.03}, 252, math.Sqrt2 * math.Sqrt(252)},
		{"unscaled", []float64{0.01, 0.03}, 1, math.Sqrt2},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Sharpe(tt.returns, tt.periods), 1e-9, tt.name)
	}
}

func TestMaxDrawdown(t *testing.T) {
	vals := func(ss ...string) []decimal.Decimal {
		out := make([]decimal.Decimal, len(ss))
		for i, s := range ss {
			out[i] = d(s)
		}
		return out
	}
	assert.Zero(t, MaxDrawdown(nil))
	assert.Zero(t, MaxDrawdown(vals("100", "110", "120")))
	assert.InDelta(t, 50.0, MaxDrawdown(vals("100", "200", "100", "150")), 1e-9)
	assert.Zero(t, MaxDrawdown(vals("-10", "-5", "-20")))
	assert.InDelta(t, 50.0, MaxDrawdown(vals("0", "10", "5")), 1e-9)
}
