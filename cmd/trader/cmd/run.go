package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeledger/internal/id"
	"github.com/rustyeddy/tradeledger/live"
	"github.com/rustyeddy/tradeledger/market/data"
	"github.com/rustyeddy/tradeledger/metrics"
	"github.com/rustyeddy/tradeledger/sim"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Paper trade a recorded quote feed",
	Long: `Run replays a quote CSV (time,symbol,price) through the paper engine the way
a live feed would drive it: every poll ticks the engine, fires stops and asks
the signal provider for a decision per symbol. The run ends when the feed is
exhausted or on Ctrl-C; open positions are closed with session_end.

Example:
  trader run --quotes data/quotes.csv --strategy ema-cross --poll 250ms`,
	RunE: runRun,
}

var (
	runQuotes   string
	runSymbols  []string
	runPoll     time.Duration
	runStrategy string
	runSeed     int64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runQuotes, "quotes", "q", "", "quote CSV time,symbol,price (required)")
	runCmd.Flags().StringSliceVarP(&runSymbols, "symbols", "s", nil, "symbols to trade (default: every symbol in the feed)")
	runCmd.Flags().DurationVar(&runPoll, "poll", 0, "delay between polls (0 replays as fast as possible)")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "signal provider (overrides backtest.strategy)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "trade ID seed (0 for random IDs)")
	runCmd.MarkFlagRequired("quotes")
}

func runRun(cmd *cobra.Command, args []string) error {
	overrideString(&cfg.Backtest.Strategy, runStrategy)
	if err := cfg.Validate(); err != nil {
		return err
	}

	feed, err := data.OpenCSVQuoteFeed(runQuotes)
	if err != nil {
		return fmt.Errorf("open quotes: %w", err)
	}
	symbols := runSymbols
	if len(symbols) == 0 {
		symbols = feed.Symbols()
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

	bt := cfg.BacktestConfig()
	loop := &live.Loop{
		Quotes:        feed,
		Symbols:       symbols,
		Interval:      runPoll,
		Signals:       signals,
		Timeframe:     cfg.Backtest.Interval,
		Window:        cfg.Backtest.Lookback,
		Sizing:        bt.Sizing(),
		MinConfidence: bt.MinConfidence,
		Log:           logger,
	}
	ids := id.NewRandomSource()
	if runSeed != 0 {
		ids = id.NewSource(runSeed)
	}
	loop.Engine, err = sim.NewEngine(bt.Engine,
		sim.WithJournal(j),
		sim.WithLogger(logger),
		sim.WithIDs(ids),
		sim.WithClock(loop.Now),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Paper trading %d symbols from %s\n\n", len(symbols), runQuotes)
	stats, err := loop.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	status := loop.Engine.PortfolioStatus()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Polls:         %d (%d quotes, %d quote errors)\n", stats.Cycles, stats.Quotes, stats.QuoteErrors)
	fmt.Fprintf(w, "Signals:       %d (%d provider errors)\n", stats.Signals, stats.ProviderErrors)
	fmt.Fprintf(w, "Opened:        %d\n", stats.Opened)
	fmt.Fprintf(w, "Closed:        %d\n", stats.Closed)
	codes := make([]string, 0, len(stats.Rejections))
	for code := range stats.Rejections {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "Rejected:      %d %s\n", stats.Rejections[code], code)
	}
	fmt.Fprintf(w, "Balance:       %s\n", status.Balance.StringFixed(2))
	fmt.Fprintf(w, "Realized P/L:  %s\n\n", status.RealizedPL.StringFixed(2))

	printMetrics(w, metrics.Compute(loop.Engine.Trades(), metrics.Options{
		InitialEquity:       bt.Engine.InitialBalance,
		AnnualizationFactor: bt.AnnualizationFactor,
	}))
	return nil
}
