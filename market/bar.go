package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one OHLCV candle for a symbol.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Validate checks the OHLC envelope.
func (b Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("bar: empty symbol")
	}
	if b.Time.IsZero() {
		return fmt.Errorf("bar %s: zero time", b.Symbol)
	}
	if !b.Low.IsPositive() {
		return fmt.Errorf("bar %s@%s: non-positive low %s", b.Symbol, b.Time.Format(time.RFC3339), b.Low)
	}
	if b.High.LessThan(b.Low) || b.Open.GreaterThan(b.High) || b.Open.LessThan(b.Low) ||
		b.Close.GreaterThan(b.High) || b.Close.LessThan(b.Low) {
		return fmt.Errorf("bar %s@%s: OHLC out of range", b.Symbol, b.Time.Format(time.RFC3339))
	}
	return nil
}

// BarSource yields historical bars for a symbol ordered by time.
type BarSource interface {
	History(ctx context.Context, symbol string, start, end time.Time, interval string) ([]Bar, error)
}

// MemoryBars is an in-memory BarSource keyed by symbol.
type MemoryBars map[string][]Bar

func (m MemoryBars) History(_ context.Context, symbol string, start, end time.Time, _ string) ([]Bar, error) {
	bars, ok := m[symbol]
	if !ok {
		return nil, fmt.Errorf("no bars for %q", symbol)
	}
	return FilterBars(bars, start, end), nil
}

// FilterBars returns the bars inside [start, end), sorted by time. Zero
// bounds are open.
func FilterBars(bars []Bar, start, end time.Time) []Bar {
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && !b.Time.Before(end) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
