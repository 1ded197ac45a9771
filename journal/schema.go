package journal

// Schema creates the SQLite tables. Decimal columns are TEXT so values
// round-trip exactly.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	trade_id TEXT NOT NULL UNIQUE,
	instrument TEXT NOT NULL,
	side TEXT NOT NULL,
	units TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price TEXT NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	entry_commission TEXT NOT NULL,
	exit_commission TEXT NOT NULL,
	gross_pl TEXT NOT NULL,
	realized_pl TEXT NOT NULL,
	reason TEXT NOT NULL,
	confidence REAL NOT NULL,
	signal_source TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance TEXT NOT NULL,
	equity TEXT NOT NULL,
	open_positions INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);

CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	symbols TEXT NOT NULL,
	interval TEXT NOT NULL,
	dataset TEXT NOT NULL,
	strategy TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	start_balance TEXT NOT NULL,
	end_balance TEXT NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL,
	sharpe REAL NOT NULL,
	max_dd_pct REAL NOT NULL,
	return_pct REAL NOT NULL
);
`
