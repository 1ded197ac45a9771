package strategies

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/indicators"
	"github.com/rustyeddy/tradeledger/market"
)

// EMACross signals buy when the fast EMA crosses above the slow EMA on the
// latest bar and sell when it crosses below. Stops sit StopATR average true
// ranges from the close and targets RewardRisk times that distance away.
// With MinADX set, crosses are ignored unless the ADX shows at least that
// much trend strength.
//
// It is stateless: every call recomputes the indicators over the window, so
// the result depends only on the bars passed in.
type EMACross struct {
	EMACrossConfig
}

type EMACrossConfig struct {
	Fast       int     // 10
	Slow       int     // 30
	ATR        int     // 14
	StopATR    float64 // 2
	RewardRisk float64 // 2
	ADX        int     // 14
	MinADX     float64 // 0 disables the filter
}

func NewEMACross(cfg EMACrossConfig) (*EMACross, error) {
	if cfg.Fast == 0 {
		cfg.Fast = 10
	}
	if cfg.Slow == 0 {
		cfg.Slow = 30
	}
	if cfg.ATR == 0 {
		cfg.ATR = 14
	}
	if cfg.StopATR <= 0 {
		cfg.StopATR = 2
	}
	if cfg.RewardRisk <= 0 {
		cfg.RewardRisk = 2
	}
	if cfg.ADX == 0 {
		cfg.ADX = 14
	}
	if cfg.Fast < 1 || cfg.Fast >= cfg.Slow {
		return nil, fmt.Errorf("ema-cross: need 0 < fast < slow, got %d/%d", cfg.Fast, cfg.Slow)
	}
	return &EMACross{EMACrossConfig: cfg}, nil
}

// MinBars is the shortest window that can produce a cross.
func (s *EMACross) MinBars() int {
	n := max(s.Slow+1, s.ATR+1)
	if s.MinADX > 0 {
		n = max(n, 2*s.ADX)
	}
	return n
}

func (s *EMACross) Signal(ctx context.Context, symbol, _ string, window []market.Bar) (market.Signal, error) {
	if err := ctx.Err(); err != nil {
		return market.Signal{}, err
	}
	sig := market.Signal{Symbol: symbol, Action: market.Hold, Source: "ema-cross"}
	if len(window) < s.MinBars() {
		return sig, nil
	}

	fast, slow, atr := indicators.NewEMA(s.Fast), indicators.NewEMA(s.Slow), indicators.NewATR(s.ATR)
	adx := indicators.NewADX(s.ADX)
	var prevDiff float64
	for i, b := range window {
		fast.Update(b)
		slow.Update(b)
		atr.Update(b)
		adx.Update(b)
		if i == len(window)-2 {
			prevDiff = fast.Value() - slow.Value()
		}
	}
	diff := fast.Value() - slow.Value()

	last := window[len(window)-1]
	switch {
	case prevDiff <= 0 && diff > 0:
		sig.Action = market.Buy
	case prevDiff >= 0 && diff < 0:
		sig.Action = market.Sell
	default:
		return sig, nil
	}
	if s.MinADX > 0 && (!adx.Ready() || adx.Value() < s.MinADX) {
		sig.Action = market.Hold
		return sig, nil
	}

	// confidence grows with the EMA gap measured in ATRs
	dist := s.StopATR * atr.Value()
	sig.Confidence = 0.5
	if atr.Value() > 0 {
		sig.Confidence = math.Min(1, 0.5+math.Abs(diff)/atr.Value())
	}
	if dist <= 0 {
		return sig, nil
	}

	price := last.Close
	stop := decimal.NewFromFloat(dist)
	target := decimal.NewFromFloat(dist * s.RewardRisk)
	sig.Target = price
	if sig.Action == market.Buy {
		sig.StopLoss = price.Sub(stop)
		sig.TakeProfit = price.Add(target)
	} else {
		sig.StopLoss = price.Add(stop)
		sig.TakeProfit = price.Sub(target)
	}
	return sig, nil
}
