// Package indicators holds streaming technical indicators fed one bar at a
// time.
package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/tradeledger/market"
)

// ExponentialMA is a streaming Exponential Moving Average of closes,
// seeded with the simple average of the first period values.
type ExponentialMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *ExponentialMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

func (e *ExponentialMA) Warmup() int {
	return e.period
}

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.count = 0
	e.warmupSum = 0
}

func (e *ExponentialMA) Update(b market.Bar) {
	e.Add(b.Close.InexactFloat64())
}

// Add feeds a raw value.
func (e *ExponentialMA) Add(v float64) {
	if e.count < e.period {
		e.warmupSum += v
		e.count++
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = (v-e.ema)*e.multiplier + e.ema
}

func (e *ExponentialMA) Ready() bool {
	return e.count >= e.period
}

func (e *ExponentialMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

// ATR is a streaming Average True Range using Wilder smoothing.
type ATR struct {
	period    int
	atr       float64
	count     int
	warmupSum float64
	prevClose float64
	hasPrev   bool
}

func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR(%d)", a.period)
}

func (a *ATR) Warmup() int {
	return a.period + 1
}

func (a *ATR) Reset() {
	*a = ATR{period: a.period}
}

func (a *ATR) Update(b market.Bar) {
	high, low, cls := b.High.InexactFloat64(), b.Low.InexactFloat64(), b.Close.InexactFloat64()
	if !a.hasPrev {
		a.prevClose, a.hasPrev = cls, true
		return
	}
	tr := math.Max(high-low, math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))
	a.prevClose = cls

	if a.count < a.period {
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
		return
	}
	a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
}

func (a *ATR) Ready() bool {
	return a.count >= a.period
}

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}
