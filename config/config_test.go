package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/market/data"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.Equal(t, 100000.0, cfg.Account.Balance)
	assert.Equal(t, 0.01, cfg.Risk.RiskPerTrade)
	assert.Equal(t, 5, cfg.Risk.MaxPositions)
	assert.Equal(t, 252.0, cfg.Metrics.AnnualizationFactor)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing currency", func(c *Config) { c.Account.Currency = "" }, "account.currency is required"},
		{"negative balance", func(c *Config) { c.Account.Balance = -1000 }, "account.balance must be positive"},
		{"invalid risk per trade", func(c *Config) { c.Risk.RiskPerTrade = 1.5 }, "risk.risk_per_trade must be between 0 and 1"},
		{"unknown strategy", func(c *Config) { c.Backtest.Strategy = "martingale" }, "unknown strategy"},
		{"scripted without script", func(c *Config) { c.Backtest.Strategy = "scripted" }, "backtest.script is required"},
		{"min adx out of range", func(c *Config) { c.Backtest.MinADX = 120 }, "backtest.min_adx"},
		{"bad data format", func(c *Config) { c.Data.Format = "xlsx" }, "data.format"},
		{"csv journal without files", func(c *Config) { c.Journal.EquityFile = "" }, "trades_file and equity_file required"},
		{"sqlite without path", func(c *Config) { c.Journal.Type = "sqlite" }, "db_path required"},
		{"unknown journal", func(c *Config) { c.Journal.Type = "mongo" }, "journal.type"},
		{"zero annualization", func(c *Config) { c.Metrics.AnnualizationFactor = 0 }, "annualization_factor"},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"stop loss out of range", func(c *Config) { c.Risk.StopLoss = 1.2 }, "stop loss"},
		{"no positions allowed", func(c *Config) { c.Risk.MaxPositions = 0 }, "engine:"},
		{"zero lookback", func(c *Config) { c.Backtest.Lookback = 0 }, "lookback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.yaml")
	yml := `
account:
  balance: 25000
  commission_rate: 0
risk:
  max_positions: 2
  trailing_stop: 0.01
backtest:
  strategy: ema-cross
  fast_period: 5
  slow_period: 20
journal:
  type: none
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25000.0, cfg.Account.Balance)
	assert.Equal(t, "USD", cfg.Account.Currency, "unset keys keep defaults")
	assert.Zero(t, cfg.Account.CommissionRate)
	assert.Equal(t, 2, cfg.Risk.MaxPositions)
	assert.Equal(t, 5, cfg.Backtest.FastPeriod)
	assert.Equal(t, "none", cfg.Journal.Type)
}

func TestLoadFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"account": {"balance": 5000}, "log": {"format": "json"}}`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, cfg.Account.Balance)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("account: [unterminated"), 0o644))
	_, err = LoadFromFile(bad)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("account:\n  balance: -1\n"), 0o644))
	_, err = LoadFromFile(invalid)
	assert.ErrorContains(t, err, "invalid config")
}

func TestSaveToFileRoundTrip(t *testing.T) {
	for _, name := range []string{"trader.yaml", "trader.yml", "trader.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			want := Default()
			want.Account.Balance = 42000
			want.Backtest.Strategy = "hold"
			require.NoError(t, want.SaveToFile(path))

			got, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TRADER_ACCOUNT_BALANCE", "7500")
	t.Setenv("TRADER_RISK_MAX_POSITIONS", "3")
	t.Setenv("TRADER_BACKTEST_STOP_ATR", "1.5")
	t.Setenv("TRADER_JOURNAL_DB_PATH", "/tmp/trades.db")
	t.Setenv("TRADER_LOG_LEVEL", "debug")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(""))
	assert.Equal(t, 7500.0, cfg.Account.Balance)
	assert.Equal(t, 3, cfg.Risk.MaxPositions)
	assert.Equal(t, 1.5, cfg.Backtest.StopATR)
	assert.Equal(t, "/tmp/trades.db", cfg.Journal.DBPath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "USD", cfg.Account.Currency, "unset variables leave values alone")

	t.Setenv("TRADER_RISK_MAX_POSITIONS", "many")
	assert.ErrorContains(t, Default().ApplyEnv(""), "env overrides")
}

func TestApplyEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("TRADER_ACCOUNT_CURRENCY=EUR\nTRADER_BACKTEST_SEED=99\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("TRADER_ACCOUNT_CURRENCY")
		os.Unsetenv("TRADER_BACKTEST_SEED")
	})

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "EUR", cfg.Account.Currency)
	assert.Equal(t, int64(99), cfg.Backtest.Seed)

	_, err = Load("", filepath.Join(t.TempDir(), "nope.env"))
	assert.ErrorContains(t, err, "load env file")
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Account.Balance = 50000
	cfg.Risk.TrailingStop = 0.015
	cfg.Metrics.AnnualizationFactor = 365

	eng := cfg.SimConfig()
	assert.True(t, decimal.NewFromInt(50000).Equal(eng.InitialBalance))
	assert.Equal(t, "0.001", eng.CommissionRate.String())
	assert.Equal(t, "0.015", eng.TrailingStop.String())
	assert.NoError(t, eng.Validate())

	pol := cfg.RiskPolicy()
	assert.Equal(t, 5, pol.MaxPositions)
	assert.Equal(t, "0.8", pol.MaxConcentration.String())
	assert.Equal(t, 4, pol.ConcentrationMinPositions)

	bt := cfg.BacktestConfig()
	assert.Equal(t, eng, bt.Engine)
	assert.Equal(t, "0.01", bt.RiskPerTrade.String())
	assert.Equal(t, 365.0, bt.AnnualizationFactor)
	assert.Equal(t, "1h", bt.Interval)
	assert.NoError(t, bt.Validate())
}

func TestStrategyAndBars(t *testing.T) {
	cfg := Default()
	p, err := cfg.Strategy()
	require.NoError(t, err)
	assert.NotNil(t, p)

	assert.IsType(t, &data.CSVBars{}, cfg.Bars())
	cfg.Data.Format = "parquet"
	assert.IsType(t, &data.ParquetBars{}, cfg.Bars())
}

func TestOpenJournal(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()

	cfg.Journal.Type = "none"
	j, err := cfg.OpenJournal()
	require.NoError(t, err)
	assert.Equal(t, journal.Discard{}, j)

	cfg.Journal = JournalConfig{Type: "csv", TradesFile: filepath.Join(dir, "t.csv"), EquityFile: filepath.Join(dir, "e.csv")}
	j, err = cfg.OpenJournal()
	require.NoError(t, err)
	require.NoError(t, j.Close())
	assert.FileExists(t, cfg.Journal.TradesFile)

	cfg.Journal = JournalConfig{Type: "sqlite", DBPath: filepath.Join(dir, "trades.db")}
	j, err = cfg.OpenJournal()
	require.NoError(t, err)
	require.NoError(t, j.Close())

	cfg.Journal.Type = "mongo"
	_, err = cfg.OpenJournal()
	assert.Error(t, err)
}
