package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/tradeledger/internal/id"
	"github.com/rustyeddy/tradeledger/internal/logging"
	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/market"
	"github.com/rustyeddy/tradeledger/metrics"
	"github.com/rustyeddy/tradeledger/sim"
	"github.com/rustyeddy/tradeledger/strategies"
)

// ErrNoData is returned when the bar source yields nothing in range.
var ErrNoData = errors.New("backtest: no bars in range")

// Request selects what to replay. Zero Start/End are open bounds.
type Request struct {
	Symbols  []string
	Start    time.Time
	End      time.Time
	Interval string // overrides Config.Interval when set
}

// Simulator runs backtests. It is single-threaded and holds no state
// between runs, so one Simulator may serve several sequential runs.
type Simulator struct {
	cfg     Config
	bars    market.BarSource
	signals strategies.SignalProvider
	journal journal.Journal
	log     *zap.Logger
}

type Option func(*Simulator)

// WithJournal persists trades and equity points as the run proceeds.
func WithJournal(j journal.Journal) Option {
	return func(s *Simulator) { s.journal = j }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.log = logging.OrNop(l) }
}

func NewSimulator(cfg Config, bars market.BarSource, signals strategies.SignalProvider, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest config: %w", err)
	}
	if bars == nil {
		return nil, fmt.Errorf("backtest: bar source is required")
	}
	if signals == nil {
		signals = strategies.Hold{}
	}
	s := &Simulator{
		cfg:     cfg,
		bars:    bars,
		signals: signals,
		journal: journal.Discard{},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// run is the state of one replay.
type run struct {
	*Simulator
	ctx      context.Context
	eng      *sim.Engine
	interval string
	now      time.Time

	history map[string][]market.Bar
	seen    map[string]int
	res     *Result
}

// Run replays every bar of every requested symbol in (time, symbol) order
// against one shared account. For each bar it rolls the accounting day on
// a UTC date change, marks the symbol at the close, fires intrabar exits,
// consults the signal provider at the configured cadence and records an
// equity point. Remaining positions close with session_end at the end.
func (s *Simulator) Run(ctx context.Context, req Request) (Result, error) {
	if len(req.Symbols) == 0 {
		return Result{}, fmt.Errorf("backtest: at least one symbol is required")
	}
	if !req.Start.IsZero() && !req.End.IsZero() && !req.End.After(req.Start) {
		return Result{}, fmt.Errorf("backtest: end %s is not after start %s", req.End, req.Start)
	}
	interval := req.Interval
	if interval == "" {
		interval = s.cfg.Interval
	}

	events, err := s.load(ctx, req, interval)
	if err != nil {
		return Result{}, err
	}

	r := &run{
		Simulator: s,
		ctx:       ctx,
		interval:  interval,
		now:       events[0].Time,
		history:   make(map[string][]market.Bar),
		seen:      make(map[string]int),
		res: &Result{
			Symbols:      append([]string(nil), req.Symbols...),
			Interval:     interval,
			StartBalance: s.cfg.Engine.InitialBalance,
			Start:        events[0].Time,
			End:          events[len(events)-1].Time,
			Rejections:   make(map[string]int),
		},
	}
	r.eng, err = sim.NewEngine(s.cfg.Engine,
		sim.WithJournal(s.journal),
		sim.WithLogger(s.log),
		sim.WithIDs(id.NewSource(s.cfg.Seed)),
		sim.WithStartTime(r.now),
		sim.WithClock(func() time.Time { return r.now }),
	)
	if err != nil {
		return Result{}, err
	}

	for _, bar := range events {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		r.step(bar)
	}

	r.eng.CloseAll(journal.ReasonSessionEnd)
	r.res.EquityCurve = append(r.res.EquityCurve, r.eng.RecordEquity(r.res.End))

	r.res.Trades = r.eng.Trades()
	r.res.EndBalance = r.eng.PortfolioStatus().Balance
	r.res.Metrics = metrics.Compute(r.res.Trades, metrics.Options{
		InitialEquity:       r.res.StartBalance,
		AnnualizationFactor: s.cfg.AnnualizationFactor,
		EquityCurve:         r.res.EquityCurve,
	})

	s.log.Info("backtest finished",
		zap.Strings("symbols", r.res.Symbols),
		zap.Int("bars", r.res.Bars),
		zap.Int("trades", len(r.res.Trades)),
		zap.String("end_balance", r.res.EndBalance.StringFixed(2)))
	return *r.res, nil
}

// load fetches and merges the bars into one (time, symbol) ordered stream.
func (s *Simulator) load(ctx context.Context, req Request, interval string) ([]market.Bar, error) {
	var events []market.Bar
	for _, sym := range req.Symbols {
		bars, err := s.bars.History(ctx, sym, req.Start, req.End, interval)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", sym, err)
		}
		for _, b := range bars {
			if b.Symbol == "" {
				b.Symbol = sym
			}
			if err := b.Validate(); err != nil {
				return nil, fmt.Errorf("load %s: %w", sym, err)
			}
			events = append(events, b)
		}
	}
	if len(events) == 0 {
		return nil, ErrNoData
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Time.Equal(events[j].Time) {
			return events[i].Time.Before(events[j].Time)
		}
		return events[i].Symbol < events[j].Symbol
	})
	return events, nil
}

func (r *run) step(bar market.Bar) {
	r.now = bar.Time
	r.res.Bars++

	if day := bar.Time.UTC().Truncate(24 * time.Hour); day.After(r.eng.Day()) {
		r.eng.RollDay(bar.Time)
	}

	r.eng.SetQuote(market.Quote{Symbol: bar.Symbol, Price: bar.Close, Time: bar.Time})
	r.eng.CheckBar(bar)

	hist := append(r.history[bar.Symbol], bar)
	if len(hist) > r.cfg.Lookback {
		hist = hist[len(hist)-r.cfg.Lookback:]
	}
	r.history[bar.Symbol] = hist

	n := r.seen[bar.Symbol]
	r.seen[bar.Symbol] = n + 1
	if n%r.cfg.SignalEvery == 0 {
		r.consult(bar, hist)
	}

	r.res.EquityCurve = append(r.res.EquityCurve, r.eng.RecordEquity(bar.Time))
}

func (r *run) consult(bar market.Bar, window []market.Bar) {
	r.res.Signals++
	w := append([]market.Bar(nil), window...)
	sig, err := r.signals.Signal(r.ctx, bar.Symbol, r.interval, w)
	if err != nil {
		r.res.ProviderErrors++
		r.log.Warn("signal provider", zap.String("symbol", bar.Symbol), zap.Error(err))
		return
	}
	if sig.Symbol == "" {
		sig.Symbol = bar.Symbol
	}

	if _, err := r.eng.ApplySignal(sig, r.cfg.Sizing(), r.cfg.MinConfidence); err != nil {
		r.reject(bar.Symbol, err)
	}
}

func (r *run) reject(symbol string, err error) {
	code := sim.ReasonOf(err)
	if code == "" {
		code = "unknown"
	}
	r.res.Rejections[code]++
	r.log.Debug("entry rejected", zap.String("symbol", symbol), zap.String("code", code), zap.Error(err))
}
