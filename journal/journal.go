// Package journal records closed trades and equity snapshots, and reads
// them back for reporting.
package journal

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/market"
)

// CloseReason says why a position was closed.
type CloseReason string

const (
	ReasonStopLoss     CloseReason = "stop_loss"
	ReasonTakeProfit   CloseReason = "take_profit"
	ReasonTrailingStop CloseReason = "trailing_stop"
	ReasonSignalChange CloseReason = "signal_change"
	ReasonManual       CloseReason = "manual"
	ReasonSessionEnd   CloseReason = "session_end"
)

func (r CloseReason) Valid() bool {
	switch r {
	case ReasonStopLoss, ReasonTakeProfit, ReasonTrailingStop,
		ReasonSignalChange, ReasonManual, ReasonSessionEnd:
		return true
	}
	return false
}

// TradeRecord is the immutable record of one closed position. RealizedPL
// is net of both commissions.
type TradeRecord struct {
	TradeID         string
	Instrument      string
	Side            market.Side
	Units           decimal.Decimal
	EntryPrice      decimal.Decimal
	ExitPrice       decimal.Decimal
	OpenTime        time.Time
	CloseTime       time.Time
	EntryCommission decimal.Decimal
	ExitCommission  decimal.Decimal
	GrossPL         decimal.Decimal
	RealizedPL      decimal.Decimal
	Reason          CloseReason
	Confidence      float64
	SignalSource    string
}

// Commission is the total paid on both legs.
func (t TradeRecord) Commission() decimal.Decimal {
	return t.EntryCommission.Add(t.ExitCommission)
}

// EntryNotional is EntryPrice * Units.
func (t TradeRecord) EntryNotional() decimal.Decimal {
	return t.EntryPrice.Mul(t.Units)
}

// EquitySnapshot is one point on the equity curve.
type EquitySnapshot struct {
	Time          time.Time
	Balance       decimal.Decimal
	Equity        decimal.Decimal
	OpenPositions int
}

// Journal persists trades and equity. Implementations need not be safe for
// concurrent use unless stated.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	LoadTrades() ([]TradeRecord, error)
	Close() error
}

// Memory is an in-process Journal. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	trades []TradeRecord
	equity []EquitySnapshot
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordTrade(t TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	return nil
}

func (m *Memory) RecordEquity(e EquitySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = append(m.equity, e)
	return nil
}

func (m *Memory) LoadTrades() ([]TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TradeRecord(nil), m.trades...), nil
}

func (m *Memory) Equity() []EquitySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EquitySnapshot(nil), m.equity...)
}

func (m *Memory) Close() error { return nil }

// Discard drops everything.
type Discard struct{}

func (Discard) RecordTrade(TradeRecord) error       { return nil }
func (Discard) RecordEquity(EquitySnapshot) error   { return nil }
func (Discard) LoadTrades() ([]TradeRecord, error) { return nil, nil }
func (Discard) Close() error                        { return nil }
