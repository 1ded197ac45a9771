// Package sim is the position and order manager: it owns one account's
// cash, open positions and trade log, applies slippage and commission on
// every fill, and runs the stop state machine on each price update.
//
// The engine has no goroutines or timers. Hosts drive it by calling Tick
// with fresh quotes; the backtester and live.Loop are two such hosts.
package sim

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradeledger/internal/id"
	"github.com/rustyeddy/tradeledger/internal/logging"
	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/market"
	"github.com/rustyeddy/tradeledger/pl"
	"github.com/rustyeddy/tradeledger/risk"
)

type account struct {
	balance  decimal.Decimal
	realized decimal.Decimal
	daily    decimal.Decimal
	dayStart decimal.Decimal
	day      time.Time
}

type Engine struct {
	cfg     Config
	risk    *risk.Manager
	quotes  *market.QuoteStore
	journal journal.Journal
	log     *zap.Logger
	ids     *id.Source
	clock   func() time.Time

	mu        sync.RWMutex
	acct      account
	positions map[string]*Position
	trades    []journal.TradeRecord
	shutdown  bool
}

type Option func(*Engine)

// WithJournal persists closed trades and equity snapshots to j.
func WithJournal(j journal.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = logging.OrNop(l) }
}

// WithIDs sets the trade ID source. Use id.NewSource(seed) for
// reproducible IDs.
func WithIDs(s *id.Source) Option {
	return func(e *Engine) { e.ids = s }
}

// WithStartTime sets the first accounting day.
func WithStartTime(t time.Time) Option {
	return func(e *Engine) { e.acct.day = dayOf(t) }
}

// WithClock sets the time used when a quote carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.clock = now }
}

func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	rm, err := risk.NewManager(cfg.RiskPolicy())
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		risk:      rm,
		quotes:    market.NewQuoteStore(),
		journal:   journal.Discard{},
		log:       zap.NewNop(),
		ids:       id.NewRandomSource(),
		clock:     time.Now,
		positions: make(map[string]*Position),
		acct: account{
			balance:  cfg.InitialBalance,
			dayStart: cfg.InitialBalance,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

// OpenRequest asks for a new position. Zero exit fractions fall back to the
// engine defaults.
type OpenRequest struct {
	Symbol   string
	Side     market.Side
	Quantity decimal.Decimal

	StopLoss     decimal.Decimal
	TakeProfit   decimal.Decimal
	TrailingStop decimal.Decimal

	Confidence float64
	Source     string
}

func (r OpenRequest) validate() *Error {
	const op = "open"
	one := decimal.NewFromInt(1)
	switch {
	case strings.TrimSpace(r.Symbol) == "":
		return newError(op, r.Symbol, ReasonInvalidSymbol, ErrValidation, "symbol is required")
	case !r.Side.Valid():
		return newError(op, r.Symbol, ReasonInvalidSide, ErrValidation, fmt.Sprintf("side %q", r.Side))
	case !r.Quantity.IsPositive():
		return newError(op, r.Symbol, ReasonInvalidQuantity, ErrValidation, fmt.Sprintf("quantity %s", r.Quantity))
	case r.StopLoss.IsNegative() || r.StopLoss.GreaterThanOrEqual(one):
		return newError(op, r.Symbol, ReasonInvalidStop, ErrValidation, fmt.Sprintf("stop loss %s", r.StopLoss))
	case r.TakeProfit.IsNegative():
		return newError(op, r.Symbol, ReasonInvalidStop, ErrValidation, fmt.Sprintf("take profit %s", r.TakeProfit))
	case r.TrailingStop.IsNegative() || r.TrailingStop.GreaterThanOrEqual(one):
		return newError(op, r.Symbol, ReasonInvalidStop, ErrValidation, fmt.Sprintf("trailing stop %s", r.TrailingStop))
	}
	return nil
}

// OpenPosition opens a position at the last quote adjusted for slippage.
// Eligibility, affordability and insertion happen under one lock, so two
// concurrent opens for the same symbol cannot both succeed. On error no
// state changes.
func (e *Engine) OpenPosition(req OpenRequest) (Position, error) {
	const op = "open"
	if err := req.validate(); err != nil {
		return Position{}, err
	}
	sym := req.Symbol

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		return Position{}, newError(op, sym, ReasonShutdown, ErrShutdown, "")
	}
	if _, ok := e.positions[sym]; ok {
		return Position{}, newError(op, sym, ReasonDuplicatePosition, ErrDuplicatePosition, "")
	}
	if d := e.risk.Validate(sym, e.accountSnapshotLocked(), e.snapshotsLocked()); !d.Allowed {
		e.log.Debug("open rejected", zap.String("symbol", sym), zap.String("code", d.Code))
		return Position{}, riskError(op, sym, d)
	}

	q, err := e.quotes.Get(sym)
	if err != nil {
		return Position{}, newError(op, sym, ReasonMarketDataUnavailable, ErrMarketDataUnavailable, err.Error())
	}

	price := pl.ExecutionPrice(q.Price, e.cfg.SlippageRate, pl.EntryIsBuy(req.Side))
	notional := pl.PositionValue(price, req.Quantity)
	comm := pl.Commission(notional, e.cfg.CommissionRate)
	total := notional.Add(comm)

	if total.GreaterThan(e.acct.balance) {
		return Position{}, newError(op, sym, ReasonInsufficientFunds, ErrInsufficientFunds,
			fmt.Sprintf("cost %s exceeds balance %s", total.StringFixed(2), e.acct.balance.StringFixed(2)))
	}
	if d := risk.CheckPerTrade(notional, e.acct.balance, e.cfg.MaxRiskPerTrade); !d.Allowed {
		return Position{}, riskError(op, sym, d)
	}

	when := e.quoteTime(q)
	p := &Position{
		ID:                 e.ids.At(when),
		Symbol:             sym,
		Side:               req.Side,
		Quantity:           req.Quantity,
		EntryPrice:         price,
		EntryTime:          when,
		EntryCommission:    comm,
		StopLossFraction:   orDefault(req.StopLoss, e.cfg.StopLoss),
		TakeProfitFraction: orDefault(req.TakeProfit, e.cfg.TakeProfit),
		TrailingFraction:   orDefault(req.TrailingStop, e.cfg.TrailingStop),
		LastPrice:          q.Price,
		Confidence:         req.Confidence,
		SignalSource:       req.Source,
	}
	p.TrailingBoundary = initialBoundary(p.Side, p.EntryPrice, p.TrailingFraction)

	e.positions[sym] = p
	e.acct.balance = e.acct.balance.Sub(total)

	e.log.Debug("position opened",
		zap.String("symbol", sym),
		zap.String("side", string(p.Side)),
		zap.String("qty", p.Quantity.String()),
		zap.String("price", p.EntryPrice.String()))
	return *p, nil
}

// ClosePosition closes the symbol's position at exitPrice, or at the last
// quote when exitPrice is nil. Slippage applies in the closing direction.
func (e *Engine) ClosePosition(symbol string, reason journal.CloseReason, exitPrice *decimal.Decimal) (journal.TradeRecord, error) {
	const op = "close"

	e.mu.Lock()
	p, ok := e.positions[symbol]
	if !ok {
		e.mu.Unlock()
		return journal.TradeRecord{}, newError(op, symbol, ReasonPositionNotFound, ErrPositionNotFound, "")
	}

	q, qerr := e.quotes.Get(symbol)
	var price decimal.Decimal
	switch {
	case exitPrice != nil:
		price = *exitPrice
	case qerr == nil:
		price = q.Price
	default:
		e.mu.Unlock()
		return journal.TradeRecord{}, newError(op, symbol, ReasonMarketDataUnavailable, ErrMarketDataUnavailable, qerr.Error())
	}
	if !price.IsPositive() {
		e.mu.Unlock()
		return journal.TradeRecord{}, newError(op, symbol, ReasonInvalidPrice, ErrValidation, fmt.Sprintf("exit price %s", price))
	}

	when := e.clock()
	if qerr == nil {
		when = e.quoteTime(q)
	}
	tr := e.closeLocked(p, price, when, reason)
	e.mu.Unlock()

	e.persist(tr)
	return tr, nil
}

// closeLocked settles p at price and moves it to the trade log.
func (e *Engine) closeLocked(p *Position, price decimal.Decimal, when time.Time, reason journal.CloseReason) journal.TradeRecord {
	exec := pl.ExecutionPrice(price, e.cfg.SlippageRate, pl.ExitIsBuy(p.Side))
	gross := p.Unrealized(exec)
	exitComm := pl.Commission(pl.PositionValue(exec, p.Quantity), e.cfg.CommissionRate)
	net := pl.Net(gross, p.EntryCommission, exitComm)

	e.acct.balance = e.acct.balance.Add(pl.Settlement(p.Notional(), gross, exitComm))
	e.acct.realized = e.acct.realized.Add(net)
	e.acct.daily = e.acct.daily.Add(net)
	delete(e.positions, p.Symbol)

	tr := journal.TradeRecord{
		TradeID:         p.ID,
		Instrument:      p.Symbol,
		Side:            p.Side,
		Units:           p.Quantity,
		EntryPrice:      p.EntryPrice,
		ExitPrice:       exec,
		OpenTime:        p.EntryTime,
		CloseTime:       when,
		EntryCommission: p.EntryCommission,
		ExitCommission:  exitComm,
		GrossPL:         gross,
		RealizedPL:      net,
		Reason:          reason,
		Confidence:      p.Confidence,
		SignalSource:    p.SignalSource,
	}
	e.trades = append(e.trades, tr)

	e.log.Debug("position closed",
		zap.String("symbol", p.Symbol),
		zap.String("reason", string(reason)),
		zap.String("net", net.String()))
	return tr
}

// CheckPositionRisk runs the stop state machine for symbol at price and
// closes the position when a stop fires. A zero price uses the last quote;
// when there is none the position is left alone and
// ErrMarketDataUnavailable is returned.
func (e *Engine) CheckPositionRisk(symbol string, price decimal.Decimal) (journal.TradeRecord, bool, error) {
	const op = "check"

	e.mu.Lock()
	p, ok := e.positions[symbol]
	if !ok {
		e.mu.Unlock()
		return journal.TradeRecord{}, false, newError(op, symbol, ReasonPositionNotFound, ErrPositionNotFound, "")
	}

	when := e.clock()
	q, qerr := e.quotes.Get(symbol)
	if qerr == nil {
		when = e.quoteTime(q)
	}
	if price.IsZero() {
		if qerr != nil {
			e.mu.Unlock()
			return journal.TradeRecord{}, false, newError(op, symbol, ReasonMarketDataUnavailable, ErrMarketDataUnavailable, qerr.Error())
		}
		price = q.Price
	}

	p.LastPrice = price
	dec := EvaluateStops(p, price)
	if !dec.Close {
		e.mu.Unlock()
		return journal.TradeRecord{}, false, nil
	}
	tr := e.closeLocked(p, price, when, dec.Reason)
	e.mu.Unlock()

	e.persist(tr)
	return tr, true, nil
}

// CheckBar evaluates symbol's position against a bar's range and closes it
// at the touched level. Used by bar-driven hosts.
func (e *Engine) CheckBar(bar market.Bar) (journal.TradeRecord, bool) {
	e.mu.Lock()
	p, ok := e.positions[bar.Symbol]
	if !ok {
		e.mu.Unlock()
		return journal.TradeRecord{}, false
	}
	p.LastPrice = bar.Close
	exit, reason, hit := EvaluateBar(p, bar)
	if !hit {
		e.mu.Unlock()
		return journal.TradeRecord{}, false
	}
	tr := e.closeLocked(p, exit, bar.Time, reason)
	e.mu.Unlock()

	e.persist(tr)
	return tr, true
}

// Tick records quotes and runs the stop state machine for every open
// position that received one. It returns the trades closed by stops.
// Invalid quotes are skipped and reported in the joined error.
func (e *Engine) Tick(quotes []market.Quote) ([]journal.TradeRecord, error) {
	var errs []error
	fresh := make([]market.Quote, 0, len(quotes))
	// the whole batch lands under e.mu so snapshots never mix two ticks
	e.mu.Lock()
	for _, q := range quotes {
		if q.Symbol == "" || !q.Price.IsPositive() {
			errs = append(errs, newError("tick", q.Symbol, ReasonMarketDataUnavailable, ErrMarketDataUnavailable,
				fmt.Sprintf("bad quote price %s", q.Price)))
			continue
		}
		e.quotes.Set(q)
		fresh = append(fresh, q)
	}
	e.mu.Unlock()

	var closed []journal.TradeRecord
	for _, q := range fresh {
		if _, ok := e.Position(q.Symbol); !ok {
			continue
		}
		tr, hit, err := e.CheckPositionRisk(q.Symbol, q.Price)
		if err != nil {
			if !errors.Is(err, ErrPositionNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		if hit {
			closed = append(closed, tr)
		}
	}
	return closed, errors.Join(errs...)
}

// SetQuote records a quote without evaluating stops.
func (e *Engine) SetQuote(q market.Quote) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quotes.Set(q)
}

// Quote returns the last quote seen for symbol.
func (e *Engine) Quote(symbol string) (market.Quote, error) {
	return e.quotes.Get(symbol)
}

// CloseAll closes every open position at its last seen price, in symbol
// order.
func (e *Engine) CloseAll(reason journal.CloseReason) []journal.TradeRecord {
	e.mu.Lock()
	syms := e.symbolsLocked()
	out := make([]journal.TradeRecord, 0, len(syms))
	for _, sym := range syms {
		p := e.positions[sym]
		when := e.clock()
		if q, err := e.quotes.Get(sym); err == nil {
			when = e.quoteTime(q)
		}
		out = append(out, e.closeLocked(p, e.markLocked(p), when, reason))
	}
	e.mu.Unlock()

	e.persist(out...)
	return out
}

// Shutdown refuses further opens and closes everything with session_end.
// It is safe to call more than once.
func (e *Engine) Shutdown() []journal.TradeRecord {
	e.mu.Lock()
	e.shutdown = true
	e.mu.Unlock()

	closed := e.CloseAll(journal.ReasonSessionEnd)
	e.log.Info("engine shut down", zap.Int("closed", len(closed)))
	return closed
}

// RollDay starts a new accounting day: daily P&L resets and the drawdown
// limit is measured from the current balance.
func (e *Engine) RollDay(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acct.day = dayOf(t)
	e.acct.daily = decimal.Zero
	e.acct.dayStart = e.acct.balance
}

// Day is the current accounting day (UTC midnight), zero until set.
func (e *Engine) Day() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.acct.day
}

// PortfolioStatus is a consistent read-only view of the account.
type PortfolioStatus struct {
	Balance         decimal.Decimal
	PositionsValue  decimal.Decimal // sum of price*qty at last seen prices
	Equity          decimal.Decimal // balance plus marked open positions
	UnrealizedPL    decimal.Decimal
	RealizedPL      decimal.Decimal
	DailyPL         decimal.Decimal
	DayStartBalance decimal.Decimal
	OpenPositions   int
	Positions       []Position
}

func (e *Engine) PortfolioStatus() PortfolioStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := PortfolioStatus{
		Balance:         e.acct.balance,
		Equity:          e.acct.balance,
		RealizedPL:      e.acct.realized,
		DailyPL:         e.acct.daily,
		DayStartBalance: e.acct.dayStart,
		OpenPositions:   len(e.positions),
	}
	for _, sym := range e.symbolsLocked() {
		p := e.positions[sym]
		mark := e.markLocked(p)
		st.PositionsValue = st.PositionsValue.Add(pl.PositionValue(mark, p.Quantity))
		st.UnrealizedPL = st.UnrealizedPL.Add(p.Unrealized(mark))
		st.Equity = st.Equity.Add(pl.MarkValue(p.Side, p.EntryPrice, mark, p.Quantity))
		st.Positions = append(st.Positions, *p)
	}
	return st
}

// Snapshot returns the equity point at t.
func (e *Engine) Snapshot(t time.Time) journal.EquitySnapshot {
	st := e.PortfolioStatus()
	return journal.EquitySnapshot{
		Time:          t,
		Balance:       st.Balance,
		Equity:        st.Equity,
		OpenPositions: st.OpenPositions,
	}
}

// RecordEquity takes a snapshot at t and hands it to the journal.
func (e *Engine) RecordEquity(t time.Time) journal.EquitySnapshot {
	snap := e.Snapshot(t)
	if err := e.journal.RecordEquity(snap); err != nil {
		e.log.Warn("record equity",
			zap.Error(newError("persist", "", ReasonPersistence, ErrPersistence, err.Error())))
	}
	return snap
}

// Positions returns copies of the open positions in symbol order.
func (e *Engine) Positions() []Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Position, 0, len(e.positions))
	for _, sym := range e.symbolsLocked() {
		out = append(out, *e.positions[sym])
	}
	return out
}

func (e *Engine) Position(symbol string) (Position, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Trades returns a copy of the trade log in close order.
func (e *Engine) Trades() []journal.TradeRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]journal.TradeRecord(nil), e.trades...)
}

func (e *Engine) persist(trades ...journal.TradeRecord) {
	for _, tr := range trades {
		if err := e.journal.RecordTrade(tr); err != nil {
			e.log.Warn("record trade",
				zap.String("trade_id", tr.TradeID),
				zap.Error(newError("persist", tr.Instrument, ReasonPersistence, ErrPersistence, err.Error())))
		}
	}
}

func (e *Engine) accountSnapshotLocked() risk.AccountSnapshot {
	return risk.AccountSnapshot{
		Balance:         e.acct.balance,
		DayStartBalance: e.acct.dayStart,
		DailyPL:         e.acct.daily,
	}
}

func (e *Engine) snapshotsLocked() []risk.PositionSnapshot {
	out := make([]risk.PositionSnapshot, 0, len(e.positions))
	for _, sym := range e.symbolsLocked() {
		out = append(out, e.positions[sym].snapshot())
	}
	return out
}

func (e *Engine) symbolsLocked() []string {
	syms := make([]string, 0, len(e.positions))
	for s := range e.positions {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

// markLocked is the latest quote, else the last evaluated price, else the
// entry price.
func (e *Engine) markLocked(p *Position) decimal.Decimal {
	if q, err := e.quotes.Get(p.Symbol); err == nil {
		return q.Price
	}
	if p.LastPrice.IsPositive() {
		return p.LastPrice
	}
	return p.EntryPrice
}

func (e *Engine) quoteTime(q market.Quote) time.Time {
	if q.Time.IsZero() {
		return e.clock()
	}
	return q.Time
}

func orDefault(v, def decimal.Decimal) decimal.Decimal {
	if v.IsZero() {
		return def
	}
	return v
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
