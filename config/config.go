// Package config loads the trader configuration from YAML or JSON with
// environment overrides, and converts it into the engine, risk and
// backtest settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradeledger/backtest"
	"github.com/rustyeddy/tradeledger/internal/logging"
	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/market"
	"github.com/rustyeddy/tradeledger/market/data"
	"github.com/rustyeddy/tradeledger/risk"
	"github.com/rustyeddy/tradeledger/sim"
	"github.com/rustyeddy/tradeledger/strategies"
)

// EnvPrefix prefixes every environment override, e.g.
// TRADER_ACCOUNT_BALANCE or TRADER_RISK_MAX_POSITIONS.
const EnvPrefix = "TRADER"

// Config represents the complete trader configuration. Rates and limits
// are fractions (0.01 = 1%).
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// AccountConfig contains account initialization and execution costs
type AccountConfig struct {
	ID             string  `json:"id" yaml:"id"`
	Currency       string  `json:"currency" yaml:"currency"`
	Balance        float64 `json:"balance" yaml:"balance"`
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate" split_words:"true"`
	SlippageRate   float64 `json:"slippage_rate" yaml:"slippage_rate" split_words:"true"`
}

// RiskConfig contains the eligibility limits and default exits
type RiskConfig struct {
	MaxPositions              int     `json:"max_positions" yaml:"max_positions" split_words:"true"`
	MaxDailyDrawdown          float64 `json:"max_daily_drawdown" yaml:"max_daily_drawdown" split_words:"true"`
	DrawdownFromDayStart      bool    `json:"drawdown_from_day_start,omitempty" yaml:"drawdown_from_day_start,omitempty" split_words:"true"`
	MaxConcentration          float64 `json:"max_concentration" yaml:"max_concentration" split_words:"true"`
	ConcentrationMinPositions int     `json:"concentration_min_positions" yaml:"concentration_min_positions" split_words:"true"`
	MaxRiskPerTrade           float64 `json:"max_risk_per_trade" yaml:"max_risk_per_trade" split_words:"true"`
	RiskPerTrade              float64 `json:"risk_per_trade" yaml:"risk_per_trade" split_words:"true"`
	StopLoss                  float64 `json:"stop_loss" yaml:"stop_loss" split_words:"true"`
	TakeProfit                float64 `json:"take_profit" yaml:"take_profit" split_words:"true"`
	TrailingStop              float64 `json:"trailing_stop" yaml:"trailing_stop" split_words:"true"`
}

// BacktestConfig contains the replay and strategy parameters
type BacktestConfig struct {
	Strategy            string  `json:"strategy" yaml:"strategy"`
	Interval            string  `json:"interval" yaml:"interval"`
	SignalEvery         int     `json:"signal_every" yaml:"signal_every" split_words:"true"`
	Lookback            int     `json:"lookback" yaml:"lookback"`
	MinConfidence       float64 `json:"min_confidence" yaml:"min_confidence" split_words:"true"`
	MaxPositionFraction float64 `json:"max_position_fraction" yaml:"max_position_fraction" split_words:"true"`
	QuantityPrecision   int32   `json:"quantity_precision" yaml:"quantity_precision" split_words:"true"`
	Seed                int64   `json:"seed" yaml:"seed"`

	FastPeriod int     `json:"fast_period,omitempty" yaml:"fast_period,omitempty" split_words:"true"`
	SlowPeriod int     `json:"slow_period,omitempty" yaml:"slow_period,omitempty" split_words:"true"`
	StopATR    float64 `json:"stop_atr,omitempty" yaml:"stop_atr,omitempty" split_words:"true"`
	RewardRisk float64 `json:"reward_risk,omitempty" yaml:"reward_risk,omitempty" split_words:"true"`
	MinADX     float64 `json:"min_adx,omitempty" yaml:"min_adx,omitempty" split_words:"true"`
	Script     string  `json:"script,omitempty" yaml:"script,omitempty"`
}

// DataConfig says where historical bars live
type DataConfig struct {
	Dir    string `json:"dir" yaml:"dir"`
	Format string `json:"format" yaml:"format"` // "csv" or "parquet"
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty" split_words:"true"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty" split_words:"true"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty" split_words:"true"`
	OrgDir     string `json:"org_dir,omitempty" yaml:"org_dir,omitempty" split_words:"true"`
}

type MetricsConfig struct {
	AnnualizationFactor float64 `json:"annualization_factor" yaml:"annualization_factor" split_words:"true"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "console" or "json"
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	eng := sim.Defaults()
	bt := backtest.Defaults()
	return &Config{
		Account: AccountConfig{
			ID:             "SIM-001",
			Currency:       "USD",
			Balance:        eng.InitialBalance.InexactFloat64(),
			CommissionRate: eng.CommissionRate.InexactFloat64(),
			SlippageRate:   eng.SlippageRate.InexactFloat64(),
		},
		Risk: RiskConfig{
			MaxPositions:              eng.MaxPositions,
			MaxDailyDrawdown:          eng.MaxDailyDrawdown.InexactFloat64(),
			MaxConcentration:          eng.MaxConcentration.InexactFloat64(),
			ConcentrationMinPositions: eng.ConcentrationMinPositions,
			MaxRiskPerTrade:           eng.MaxRiskPerTrade.InexactFloat64(),
			RiskPerTrade:              bt.RiskPerTrade.InexactFloat64(),
			StopLoss:                  eng.StopLoss.InexactFloat64(),
			TakeProfit:                eng.TakeProfit.InexactFloat64(),
		},
		Backtest: BacktestConfig{
			Strategy:            "ema-cross",
			Interval:            bt.Interval,
			SignalEvery:         bt.SignalEvery,
			Lookback:            bt.Lookback,
			MinConfidence:       bt.MinConfidence,
			MaxPositionFraction: bt.MaxPositionFraction.InexactFloat64(),
			QuantityPrecision:   bt.QuantityPrecision,
			Seed:                bt.Seed,
		},
		Data: DataConfig{
			Dir:    "./data",
			Format: "csv",
		},
		Journal: JournalConfig{
			Type:       "csv",
			TradesFile: "./trades.csv",
			EquityFile: "./equity.csv",
		},
		Metrics: MetricsConfig{AnnualizationFactor: bt.AnnualizationFactor},
		Log:     LogConfig{Level: "info", Format: "console"},
	}
}

// Load builds the effective configuration: defaults, then the file at path
// (skipped when empty), then .env and TRADER_* environment overrides.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(envFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (JSON or YAML) on top of
// the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(raw, c); err != nil {
		if jerr := json.Unmarshal(raw, c); jerr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}
	return nil
}

// ApplyEnv loads envFile (or ./.env when empty and present) into the
// process environment and then applies TRADER_* overrides. Variables
// already set in the environment win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON
// otherwise)
func (c *Config) SaveToFile(path string) error {
	var raw []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = yaml.Marshal(c)
	default:
		raw, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade > 1 {
		return fmt.Errorf("risk.risk_per_trade must be between 0 and 1")
	}
	switch strings.ToLower(c.Backtest.Strategy) {
	case "scripted", "script":
		// the script is read when the strategy is built
		if c.Backtest.Script == "" {
			return fmt.Errorf("backtest.script is required for the scripted strategy")
		}
	default:
		if _, err := c.Strategy(); err != nil {
			return fmt.Errorf("backtest.strategy: %w", err)
		}
	}

	if c.Backtest.MinADX < 0 || c.Backtest.MinADX > 100 {
		return fmt.Errorf("backtest.min_adx must be between 0 and 100")
	}

	switch c.Data.Format {
	case "csv", "parquet":
	default:
		return fmt.Errorf("data.format must be 'csv' or 'parquet'")
	}

	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if c.Metrics.AnnualizationFactor <= 0 {
		return fmt.Errorf("metrics.annualization_factor must be positive")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if f := strings.ToLower(c.Log.Format); f != "" && f != "console" && f != "json" {
		return fmt.Errorf("log.format must be 'console' or 'json'")
	}

	if err := c.BacktestConfig().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// SimConfig converts the account and risk sections into engine settings.
func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		InitialBalance:            dec(c.Account.Balance),
		CommissionRate:            dec(c.Account.CommissionRate),
		SlippageRate:              dec(c.Account.SlippageRate),
		MaxRiskPerTrade:           dec(c.Risk.MaxRiskPerTrade),
		MaxDailyDrawdown:          dec(c.Risk.MaxDailyDrawdown),
		DrawdownFromDayStart:      c.Risk.DrawdownFromDayStart,
		MaxPositions:              c.Risk.MaxPositions,
		MaxConcentration:          dec(c.Risk.MaxConcentration),
		ConcentrationMinPositions: c.Risk.ConcentrationMinPositions,
		StopLoss:                  dec(c.Risk.StopLoss),
		TakeProfit:                dec(c.Risk.TakeProfit),
		TrailingStop:              dec(c.Risk.TrailingStop),
	}
}

func (c *Config) RiskPolicy() risk.Policy {
	return c.SimConfig().RiskPolicy()
}

func (c *Config) BacktestConfig() backtest.Config {
	return backtest.Config{
		Engine:              c.SimConfig(),
		RiskPerTrade:        dec(c.Risk.RiskPerTrade),
		MaxPositionFraction: dec(c.Backtest.MaxPositionFraction),
		QuantityPrecision:   c.Backtest.QuantityPrecision,
		SignalEvery:         c.Backtest.SignalEvery,
		Lookback:            c.Backtest.Lookback,
		MinConfidence:       c.Backtest.MinConfidence,
		Interval:            c.Backtest.Interval,
		Seed:                c.Backtest.Seed,
		AnnualizationFactor: c.Metrics.AnnualizationFactor,
	}
}

func (c *Config) StrategyOptions() strategies.Options {
	return strategies.Options{
		Fast:       c.Backtest.FastPeriod,
		Slow:       c.Backtest.SlowPeriod,
		StopATR:    c.Backtest.StopATR,
		RewardRisk: c.Backtest.RewardRisk,
		MinADX:     c.Backtest.MinADX,
		ScriptPath: c.Backtest.Script,
	}
}

// Strategy builds the configured signal provider.
func (c *Config) Strategy() (strategies.SignalProvider, error) {
	return strategies.New(c.Backtest.Strategy, c.StrategyOptions())
}

// Bars returns the configured historical bar source.
func (c *Config) Bars() market.BarSource {
	if c.Data.Format == "parquet" {
		return data.NewParquetBars(c.Data.Dir)
	}
	return data.NewCSVBars(c.Data.Dir)
}

// OpenJournal opens the configured journal. Type "none" discards.
func (c *Config) OpenJournal() (journal.Journal, error) {
	switch c.Journal.Type {
	case "csv":
		j, err := journal.NewCSV(c.Journal.TradesFile, c.Journal.EquityFile)
		if err != nil {
			return nil, err
		}
		return j, nil
	case "sqlite":
		j, err := journal.NewSQLite(c.Journal.DBPath)
		if err != nil {
			return nil, err
		}
		return j, nil
	case "none", "":
		return journal.Discard{}, nil
	}
	return nil, fmt.Errorf("unknown journal type %q", c.Journal.Type)
}
