package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC, seq ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	return scanTrades(rows)
}

// ListEquityBetween returns equity snapshots within [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, balance, equity, open_positions
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.Time, &e.Balance, &e.Equity, &e.OpenPositions); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordBacktest stores a run summary. Re-recording a run ID replaces it.
func (j *SQLite) RecordBacktest(r BacktestRun) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO backtest_runs
		(run_id, created, symbols, interval, dataset, strategy, start_time, end_time,
		 start_balance, end_balance, trades, wins, losses, win_rate, profit_factor,
		 sharpe, max_dd_pct, return_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created.UTC(), strings.Join(r.Symbols, ","), r.Interval, r.Dataset, r.Strategy,
		r.Start.UTC(), r.End.UTC(), r.StartBalance, r.EndBalance, r.Trades, r.Wins, r.Losses,
		r.WinRate, r.ProfitFactor, r.Sharpe, r.MaxDDPct, r.ReturnPct,
	)
	if err != nil {
		return fmt.Errorf("record backtest %s: %w", r.RunID, err)
	}
	return nil
}

// GetBacktestRun loads a run summary by ID.
func (j *SQLite) GetBacktestRun(runID string) (BacktestRun, error) {
	var (
		r       BacktestRun
		symbols string
	)
	err := j.db.QueryRow(`
		SELECT run_id, created, symbols, interval, dataset, strategy, start_time, end_time,
		       start_balance, end_balance, trades, wins, losses, win_rate, profit_factor,
		       sharpe, max_dd_pct, return_pct
		FROM backtest_runs WHERE run_id = ?`, runID).Scan(
		&r.RunID, &r.Created, &symbols, &r.Interval, &r.Dataset, &r.Strategy,
		&r.Start, &r.End, &r.StartBalance, &r.EndBalance, &r.Trades, &r.Wins, &r.Losses,
		&r.WinRate, &r.ProfitFactor, &r.Sharpe, &r.MaxDDPct, &r.ReturnPct,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BacktestRun{}, fmt.Errorf("backtest run %q not found", runID)
		}
		return BacktestRun{}, err
	}
	if symbols != "" {
		r.Symbols = strings.Split(symbols, ",")
	}
	return r, nil
}
