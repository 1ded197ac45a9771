package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/market"
	"github.com/rustyeddy/tradeledger/risk"
)

func TestSignalFractions(t *testing.T) {
	tests := []struct {
		name   string
		side   market.Side
		sl, tp string
		wantSL string
		wantTP string
	}{
		{"long both", market.Long, "95", "110", "0.05", "0.1"},
		{"long wrong side", market.Long, "105", "90", "0", "0"},
		{"short both", market.Short, "104", "92", "0.04", "0.08"},
		{"unset", market.Long, "0", "0", "0", "0"},
		{"at entry", market.Long, "100", "100", "0", "0"},
	}
	for _, tt := range tests {
		sig := market.Signal{StopLoss: d(tt.sl), TakeProfit: d(tt.tp)}
		sl, tp := SignalFractions(sig, tt.side, d("100"))
		assert.True(t, d(tt.wantSL).Equal(sl), "%s: sl %s", tt.name, sl)
		assert.True(t, d(tt.wantTP).Equal(tp), "%s: tp %s", tt.name, tp)
	}
}

func TestPlanFromSignal(t *testing.T) {
	e, _ := newEngine(t, testConfig())
	sz := risk.Sizing{RiskPerTrade: d("0.01"), MaxFraction: d("0.2"), Precision: 4}

	sig := market.Signal{Symbol: "AAPL", Action: market.Buy, Confidence: 0.9, StopLoss: d("95"), TakeProfit: d("110"), Source: "scripted"}
	_, err := e.PlanFromSignal(sig, sz)
	assert.ErrorIs(t, err, ErrMarketDataUnavailable)

	e.SetQuote(quote("AAPL", "100", t0))
	req, err := e.PlanFromSignal(sig, sz)
	require.NoError(t, err)
	assert.Equal(t, market.Long, req.Side)
	// 1000 at risk over a 5.00 stop is 200 units, capped at 20000/100.
	assertDec(t, "200", req.Quantity)
	assertDec(t, "0.05", req.StopLoss)
	assertDec(t, "0.1", req.TakeProfit)
	assert.Equal(t, 0.9, req.Confidence)
	assert.Equal(t, "scripted", req.Source)

	// Without levels the default 5% stop sizes the trade.
	req, err = e.PlanFromSignal(market.Signal{Symbol: "AAPL", Action: market.Sell}, sz)
	require.NoError(t, err)
	assert.Equal(t, market.Short, req.Side)
	assertDec(t, "200", req.Quantity)
	assert.True(t, req.StopLoss.IsZero())

	p, err := e.OpenPosition(req)
	require.NoError(t, err)
	assertDec(t, "105", p.StopLossPrice())

	_, err = e.PlanFromSignal(market.Signal{Symbol: "AAPL", Action: market.Hold}, sz)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestApplySignal(t *testing.T) {
	e, _ := newEngine(t, testConfig())
	sz := risk.Sizing{RiskPerTrade: d("0.01"), MaxFraction: d("0.2"), Precision: 4}
	e.SetQuote(quote("AAPL", "100", t0))

	buy := market.Signal{Symbol: "AAPL", Action: market.Buy, Confidence: 0.9}
	r, err := e.ApplySignal(buy, sz, 0.5)
	require.NoError(t, err)
	require.NotNil(t, r.Opened)
	assert.Nil(t, r.Closed)
	assert.Equal(t, market.Long, r.Opened.Side)

	// Same side again: nothing to do.
	r, err = e.ApplySignal(buy, sz, 0.5)
	require.NoError(t, err)
	assert.Equal(t, Routed{}, r)

	// A weak opposing signal still closes but does not reverse.
	r, err = e.ApplySignal(market.Signal{Symbol: "AAPL", Action: market.Sell, Confidence: 0.3}, sz, 0.5)
	require.NoError(t, err)
	require.NotNil(t, r.Closed)
	assert.Equal(t, journal.ReasonSignalChange, r.Closed.Reason)
	assert.Nil(t, r.Opened)
	assert.Empty(t, e.Positions())

	// The confidence threshold is exclusive.
	r, err = e.ApplySignal(market.Signal{Symbol: "AAPL", Action: market.Sell, Confidence: 0.5}, sz, 0.5)
	require.NoError(t, err)
	assert.Nil(t, r.Opened)

	r, err = e.ApplySignal(market.Signal{Symbol: "AAPL", Action: market.Sell, Confidence: 0.51}, sz, 0.5)
	require.NoError(t, err)
	require.NotNil(t, r.Opened)
	assert.Equal(t, market.Short, r.Opened.Side)

	r, err = e.ApplySignal(market.Signal{Symbol: "AAPL", Action: market.Hold, Confidence: 1}, sz, 0.5)
	require.NoError(t, err)
	assert.Equal(t, Routed{}, r)

	_, err = e.ApplySignal(market.Signal{Symbol: "MSFT", Action: market.Buy, Confidence: 0.9}, sz, 0.5)
	assert.ErrorIs(t, err, ErrMarketDataUnavailable)
}
