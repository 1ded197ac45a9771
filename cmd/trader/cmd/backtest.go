package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradeledger/backtest"
	"github.com/rustyeddy/tradeledger/config"
	"github.com/rustyeddy/tradeledger/internal/id"
	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/market/data"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest over historical bars",
	Long: `Backtest replays historical OHLCV bars for one or more symbols through the
paper engine, asking the configured signal provider for entries. All symbols
share one account and are processed in time order.

Bars are read from <data.dir>/<interval>/<SYMBOL>.csv (or .parquet), falling
back to <data.dir>/<SYMBOL>.csv.

Supported strategies:
  - hold: never trades (baseline)
  - ema-cross: fast/slow EMA crossover with ATR stops
  - scripted: replays signals from a CSV script

Example:
  trader backtest -s AAPL,MSFT --from 2024-01-01 --to 2024-06-30 --strategy ema-cross --fast 10 --slow 30`,
	RunE: runBacktest,
}

var (
	btSymbols  []string
	btFrom     string
	btTo       string
	btInterval string
	btStrategy string
	btScript   string
	btDataDir  string
	btFormat   string
	btFast     int
	btSlow     int
	btMinADX   float64
	btSeed     int64
	btDBPath   string
	btOrgPath  string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	f := backtestCmd.Flags()
	f.StringSliceVarP(&btSymbols, "symbols", "s", nil, "comma separated symbols (required)")
	f.StringVar(&btFrom, "from", "", "first day, YYYY-MM-DD or RFC3339 (default: all data)")
	f.StringVar(&btTo, "to", "", "end, exclusive (default: all data)")
	f.StringVarP(&btInterval, "interval", "i", "", "bar interval (overrides backtest.interval)")
	f.StringVar(&btStrategy, "strategy", "", "signal provider (overrides backtest.strategy)")
	f.StringVar(&btScript, "script", "", "scripted: signal script CSV")
	f.StringVar(&btDataDir, "data", "", "bar directory (overrides data.dir)")
	f.StringVar(&btFormat, "format", "", "bar format csv or parquet (overrides data.format)")
	f.IntVar(&btFast, "fast", 0, "ema-cross: fast EMA period")
	f.IntVar(&btSlow, "slow", 0, "ema-cross: slow EMA period")
	f.Float64Var(&btMinADX, "min-adx", 0, "ema-cross: skip crosses while ADX is below this")
	f.Int64Var(&btSeed, "seed", 0, "trade ID seed (overrides backtest.seed)")
	f.StringVar(&btDBPath, "db", "", "SQLite journal for trades and the run summary (overrides journal)")
	f.StringVar(&btOrgPath, "org", "", "write an Org-mode report to this path (or into journal.org_dir)")

	backtestCmd.MarkFlagRequired("symbols")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	overrideString(&cfg.Backtest.Interval, btInterval)
	overrideString(&cfg.Backtest.Strategy, btStrategy)
	overrideString(&cfg.Backtest.Script, btScript)
	overrideString(&cfg.Data.Dir, btDataDir)
	overrideString(&cfg.Data.Format, btFormat)
	if btFast > 0 {
		cfg.Backtest.FastPeriod = btFast
	}
	if btSlow > 0 {
		cfg.Backtest.SlowPeriod = btSlow
	}
	if btMinADX > 0 {
		cfg.Backtest.MinADX = btMinADX
	}
	if btSeed != 0 {
		cfg.Backtest.Seed = btSeed
	}
	if btDBPath != "" {
		cfg.Journal = config.JournalConfig{Type: "sqlite", DBPath: btDBPath, OrgDir: cfg.Journal.OrgDir}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var req backtest.Request
	var err error
	if req.Start, err = parseBound(btFrom); err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	if req.End, err = parseBound(btTo); err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	for _, s := range btSymbols {
		if s = strings.TrimSpace(s); s != "" {
			req.Symbols = append(req.Symbols, s)
		}
	}

	signals, err := cfg.Strategy()
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	j, err := cfg.OpenJournal()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	sim, err := backtest.NewSimulator(cfg.BacktestConfig(), cfg.Bars(), signals,
		backtest.WithJournal(j), backtest.WithLogger(logger))
	if err != nil {
		return err
	}

	logger.Info("backtest starting",
		zap.Strings("symbols", req.Symbols),
		zap.String("strategy", cfg.Backtest.Strategy),
		zap.String("interval", cfg.Backtest.Interval),
		zap.String("data", cfg.Data.Dir))

	res, err := sim.Run(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	run := res.Summary(id.New(), cfg.Backtest.Strategy, cfg.Data.Dir, time.Now())
	backtest.PrintRun(cmd.OutOrStdout(), run)

	if db, ok := j.(*journal.SQLite); ok {
		if err := db.RecordBacktest(run); err != nil {
			return err
		}
	}

	org := btOrgPath
	if org == "" && cfg.Journal.OrgDir != "" {
		org = filepath.Join(cfg.Journal.OrgDir, run.RunID+".org")
	}
	if org != "" {
		run.OrgPath = org
		if err := run.WriteBacktestOrg(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Org report: %s\n", org)
	}
	return nil
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseBound accepts an empty string (open bound), a date or RFC3339.
func parseBound(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return data.ParseTime(s)
}
