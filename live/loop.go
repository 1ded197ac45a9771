// Package live drives a sim.Engine from a polled quote source: the host
// side timer the engine itself does not own.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradeledger/internal/logging"
	"github.com/rustyeddy/tradeledger/market"
	"github.com/rustyeddy/tradeledger/risk"
	"github.com/rustyeddy/tradeledger/sim"
	"github.com/rustyeddy/tradeledger/strategies"
)

const defaultWindow = 50

// Loop polls Quotes for every symbol each Interval, feeds them to the
// engine's Tick and, when Signals is set, routes a signal per quoted
// symbol. Quotes are folded into flat one-price bars so providers see the
// same window shape as in a backtest.
//
// A zero Interval polls back to back, which is how a recorded feed is
// replayed. Run returns when every symbol reports market.ErrFeedExhausted
// or when ctx is cancelled; either way open positions are closed through
// Engine.Shutdown.
type Loop struct {
	Engine  *sim.Engine
	Quotes  market.QuoteSource
	Symbols []string

	Interval time.Duration

	Signals       strategies.SignalProvider
	Timeframe     string
	Window        int
	Sizing        risk.Sizing
	MinConfidence float64

	Log *zap.Logger

	mu      sync.Mutex
	now     time.Time
	windows map[string][]market.Bar
	stats   Stats
}

// Stats counts what a run did.
type Stats struct {
	Cycles         int
	Quotes         int
	QuoteErrors    int
	Signals        int
	ProviderErrors int
	Opened         int
	Closed         int // stops, signal changes and the final shutdown
	Rejections     map[string]int
}

// Now is the time of the newest quote seen, or the wall clock before the
// first one. Pass it to sim.WithClock when replaying a recorded feed.
func (l *Loop) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.now.IsZero() {
		return time.Now().UTC()
	}
	return l.now
}

// Stats returns a copy of the counters so far.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.Rejections = make(map[string]int, len(l.stats.Rejections))
	for k, v := range l.stats.Rejections {
		s.Rejections[k] = v
	}
	return s
}

func (l *Loop) Run(ctx context.Context) (Stats, error) {
	if l.Engine == nil || l.Quotes == nil {
		return Stats{}, fmt.Errorf("live: engine and quote source are required")
	}
	if len(l.Symbols) == 0 {
		return Stats{}, fmt.Errorf("live: at least one symbol is required")
	}
	l.Log = logging.OrNop(l.Log)
	if l.Window <= 0 {
		l.Window = defaultWindow
	}
	l.mu.Lock()
	l.windows = make(map[string][]market.Bar)
	l.stats = Stats{Rejections: make(map[string]int)}
	l.mu.Unlock()

	var tick <-chan time.Time
	if l.Interval > 0 {
		t := time.NewTicker(l.Interval)
		defer t.Stop()
		tick = t.C
	}

	l.Log.Info("live loop started", zap.Strings("symbols", l.Symbols), zap.Duration("interval", l.Interval))
	for {
		done, err := l.cycle(ctx)
		if err != nil {
			return l.stop(err)
		}
		if done {
			l.Log.Info("quote feed exhausted")
			return l.stop(nil)
		}

		if tick == nil {
			if err := ctx.Err(); err != nil {
				return l.stop(err)
			}
			continue
		}
		select {
		case <-ctx.Done():
			return l.stop(ctx.Err())
		case <-tick:
		}
	}
}

func (l *Loop) stop(err error) (Stats, error) {
	closed := l.Engine.Shutdown()
	l.mu.Lock()
	l.stats.Closed += len(closed)
	l.mu.Unlock()

	s := l.Stats()
	l.Log.Info("live loop stopped",
		zap.Int("cycles", s.Cycles),
		zap.Int("opened", s.Opened),
		zap.Int("closed", s.Closed),
		zap.Error(err))
	return s, err
}

// cycle runs one poll. done reports that every symbol's feed is used up.
func (l *Loop) cycle(ctx context.Context) (done bool, err error) {
	quotes := make([]market.Quote, 0, len(l.Symbols))
	exhausted := 0
	for _, sym := range l.Symbols {
		q, err := l.Quotes.Quote(ctx, sym)
		switch {
		case err == nil:
			if q.Symbol == "" {
				q.Symbol = sym
			}
			quotes = append(quotes, q)
		case ctx.Err() != nil:
			return false, ctx.Err()
		case errors.Is(err, market.ErrFeedExhausted):
			exhausted++
		default:
			l.count(func(s *Stats) { s.QuoteErrors++ })
			l.Log.Warn("quote", zap.String("symbol", sym), zap.Error(err))
		}
	}
	if exhausted == len(l.Symbols) {
		return true, nil
	}

	l.advance(quotes)

	closed, err := l.Engine.Tick(quotes)
	if err != nil {
		l.Log.Warn("tick", zap.Error(err))
	}
	l.count(func(s *Stats) {
		s.Cycles++
		s.Quotes += len(quotes)
		s.Closed += len(closed)
	})
	for _, tr := range closed {
		l.Log.Info("position closed",
			zap.String("symbol", tr.Instrument),
			zap.String("reason", string(tr.Reason)),
			zap.String("pl", tr.RealizedPL.StringFixed(2)))
	}

	if l.Signals == nil {
		return false, nil
	}
	for _, q := range quotes {
		if !q.Price.IsPositive() {
			continue
		}
		l.route(ctx, q)
	}
	return false, nil
}

// advance moves the clock to the newest quote, rolls the accounting day on
// a UTC date change and appends each quote to its symbol's window.
func (l *Loop) advance(quotes []market.Quote) {
	l.mu.Lock()
	for _, q := range quotes {
		if q.Time.After(l.now) {
			l.now = q.Time
		}
		if !q.Price.IsPositive() {
			continue
		}
		w := append(l.windows[q.Symbol], flatBar(q))
		if len(w) > l.Window {
			w = w[len(w)-l.Window:]
		}
		l.windows[q.Symbol] = w
	}
	now := l.now
	l.mu.Unlock()

	if now.IsZero() {
		return
	}
	if day := now.UTC().Truncate(24 * time.Hour); day.After(l.Engine.Day()) {
		l.Engine.RollDay(now)
	}
}

func (l *Loop) route(ctx context.Context, q market.Quote) {
	l.mu.Lock()
	window := append([]market.Bar(nil), l.windows[q.Symbol]...)
	l.stats.Signals++
	l.mu.Unlock()

	sig, err := l.Signals.Signal(ctx, q.Symbol, l.Timeframe, window)
	if err != nil {
		l.count(func(s *Stats) { s.ProviderErrors++ })
		l.Log.Warn("signal provider", zap.String("symbol", q.Symbol), zap.Error(err))
		return
	}
	if sig.Symbol == "" {
		sig.Symbol = q.Symbol
	}

	r, err := l.Engine.ApplySignal(sig, l.Sizing, l.MinConfidence)
	l.count(func(s *Stats) {
		if r.Closed != nil {
			s.Closed++
		}
		if r.Opened != nil {
			s.Opened++
		}
	})
	if err != nil {
		code := sim.ReasonOf(err)
		if code == "" {
			code = "unknown"
		}
		l.count(func(s *Stats) { s.Rejections[code]++ })
		l.Log.Debug("entry rejected", zap.String("symbol", q.Symbol), zap.String("code", code), zap.Error(err))
		return
	}
	if r.Opened != nil {
		l.Log.Info("position opened",
			zap.String("symbol", r.Opened.Symbol),
			zap.String("side", string(r.Opened.Side)),
			zap.String("qty", r.Opened.Quantity.String()),
			zap.String("price", r.Opened.EntryPrice.String()))
	}
}

func (l *Loop) count(f func(*Stats)) {
	l.mu.Lock()
	f(&l.stats)
	l.mu.Unlock()
}

func flatBar(q market.Quote) market.Bar {
	return market.Bar{
		Symbol: q.Symbol,
		Time:   q.Time,
		Open:   q.Price,
		High:   q.Price,
		Low:    q.Price,
		Close:  q.Price,
		Volume: decimal.Zero,
	}
}
