package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/tradeledger/market"
)

// ADX is the Average Directional Index (Wilder). It needs n periods to
// seed the smoothed TR/+DM/-DM and n DX values to seed the ADX itself; the
// first DX comes from the seeding period, so it is ready after 2n bars.
type ADX struct {
	n int

	prev    market.Bar
	hasPrev bool
	periods int
	ready   bool

	adx     float64
	plusDI  float64
	minusDI float64

	sumTR, sumPlusDM, sumMinusDM float64
	smTR, smPlusDM, smMinusDM    float64

	dxSum   float64
	dxCount int
}

func NewADX(period int) *ADX {
	return &ADX{n: period}
}

func (a *ADX) Name() string   { return fmt.Sprintf("ADX(%d)", a.n) }
func (a *ADX) Warmup() int    { return 2 * a.n }
func (a *ADX) Ready() bool    { return a.ready }
func (a *ADX) Value() float64 { return a.adx }

func (a *ADX) PlusDI() float64  { return a.plusDI }
func (a *ADX) MinusDI() float64 { return a.minusDI }

func (a *ADX) Reset() {
	*a = ADX{n: a.n}
}

func (a *ADX) Update(b market.Bar) {
	if !a.hasPrev {
		a.prev, a.hasPrev = b, true
		return
	}
	prevH, prevL, prevC := a.prev.High.InexactFloat64(), a.prev.Low.InexactFloat64(), a.prev.Close.InexactFloat64()
	h, l := b.High.InexactFloat64(), b.Low.InexactFloat64()
	a.prev = b

	tr := math.Max(h-l, math.Max(math.Abs(h-prevC), math.Abs(l-prevC)))
	up, down := h-prevH, prevL-l
	var plusDM, minusDM float64
	if up > down && up > 0 {
		plusDM = up
	}
	if down > up && down > 0 {
		minusDM = down
	}

	a.periods++
	nf := float64(a.n)

	if a.periods <= a.n {
		a.sumTR += tr
		a.sumPlusDM += plusDM
		a.sumMinusDM += minusDM
		if a.periods == a.n {
			a.smTR, a.smPlusDM, a.smMinusDM = a.sumTR, a.sumPlusDM, a.sumMinusDM
			a.plusDI, a.minusDI = directional(a.smPlusDM, a.smMinusDM, a.smTR)
			a.dxSum, a.dxCount = dx(a.plusDI, a.minusDI), 1
		}
		return
	}

	// smoothed = prior - prior/n + current
	a.smTR = a.smTR - a.smTR/nf + tr
	a.smPlusDM = a.smPlusDM - a.smPlusDM/nf + plusDM
	a.smMinusDM = a.smMinusDM - a.smMinusDM/nf + minusDM
	a.plusDI, a.minusDI = directional(a.smPlusDM, a.smMinusDM, a.smTR)
	v := dx(a.plusDI, a.minusDI)

	if !a.ready {
		a.dxSum += v
		a.dxCount++
		if a.dxCount >= a.n {
			a.adx = a.dxSum / nf
			a.ready = true
		}
		return
	}
	a.adx = (a.adx*(nf-1) + v) / nf
}

func directional(smPlusDM, smMinusDM, smTR float64) (plusDI, minusDI float64) {
	if smTR <= 0 {
		return 0, 0
	}
	return 100 * smPlusDM / smTR, 100 * smMinusDM / smTR
}

func dx(plusDI, minusDI float64) float64 {
	den := plusDI + minusDI
	if den <= 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / den
}
