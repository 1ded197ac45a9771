package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const tradeColumns = `trade_id, instrument, side, units, entry_price, exit_price, open_time, close_time,
	entry_commission, exit_commission, gross_pl, realized_pl, reason, confidence, signal_source`

// SQLite is a Journal backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades (`+tradeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Instrument, string(t.Side), t.Units, t.EntryPrice, t.ExitPrice,
		t.OpenTime.UTC(), t.CloseTime.UTC(), t.EntryCommission, t.ExitCommission,
		t.GrossPL, t.RealizedPL, string(t.Reason), t.Confidence, t.SignalSource,
	)
	if err != nil {
		return fmt.Errorf("record trade %s: %w", t.TradeID, err)
	}
	return nil
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, balance, equity, open_positions)
		VALUES (?, ?, ?, ?)`,
		e.Time.UTC(), e.Balance, e.Equity, e.OpenPositions,
	)
	if err != nil {
		return fmt.Errorf("record equity: %w", err)
	}
	return nil
}

// LoadTrades returns every trade in insertion order.
func (j *SQLite) LoadTrades() ([]TradeRecord, error) {
	rows, err := j.db.Query(`SELECT ` + tradeColumns + ` FROM trades ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	return scanTrades(rows)
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.TradeID,
		&rec.Instrument,
		&rec.Side,
		&rec.Units,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.EntryCommission,
		&rec.ExitCommission,
		&rec.GrossPL,
		&rec.RealizedPL,
		&rec.Reason,
		&rec.Confidence,
		&rec.SignalSource,
	)
	return rec, err
}

func scanTrades(rows *sql.Rows) ([]TradeRecord, error) {
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
