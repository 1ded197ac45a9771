package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/metrics"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display trade journal records.

Subcommands:
  trades   - List every recorded trade
  trade    - Get details of a specific trade by ID (SQLite)
  today    - List trades closed today (SQLite)
  day      - List trades closed on a specific day (SQLite)
  metrics  - Performance metrics over the recorded trades
  run      - Show a stored backtest run (SQLite)

Examples:
  trader journal trades
  trader journal trade <trade-id> --db trader.sqlite
  trader journal day 2024-01-15
  trader journal metrics --balance 100000`,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List every recorded trade",
	Args:  cobra.NoArgs,
	RunE:  runJournalTrades,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listDay(cmd, time.Now().In(time.Local).Format("2006-01-02"))
	},
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listDay(cmd, args[0])
	},
}

var journalMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Compute performance metrics from the journal",
	Args:  cobra.NoArgs,
	RunE:  runJournalMetrics,
}

var journalRunCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Show a stored backtest run as Org",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalRun,
}

var (
	journalDBPath  string
	journalBalance float64
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalMetricsCmd)
	journalCmd.AddCommand(journalRunCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default: the configured journal)")
	journalMetricsCmd.Flags().Float64Var(&journalBalance, "balance", 0, "starting balance for return and drawdown (default account.balance)")
}

func openJournal() (journal.Journal, error) {
	if journalDBPath != "" {
		return journal.NewSQLite(journalDBPath)
	}
	return cfg.OpenJournal()
}

func openSQLite() (*journal.SQLite, error) {
	j, err := openJournal()
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db, ok := j.(*journal.SQLite)
	if !ok {
		_ = j.Close()
		return nil, fmt.Errorf("this query needs a SQLite journal (use --db or journal.type: sqlite)")
	}
	return db, nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	recs, err := j.LoadTrades()
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func listDay(cmd *cobra.Command, day string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	recs, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalMetrics(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	recs, err := j.LoadTrades()
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}
	balance := cfg.Account.Balance
	if journalBalance > 0 {
		balance = journalBalance
	}
	printMetrics(cmd.OutOrStdout(), metrics.Compute(recs, metrics.Options{
		InitialEquity:       decimal.NewFromFloat(balance),
		AnnualizationFactor: cfg.Metrics.AnnualizationFactor,
	}))
	return nil
}

func runJournalRun(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	run, err := j.GetBacktestRun(args[0])
	if err != nil {
		return err
	}
	s, err := run.RenderOrg()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), s)
	return nil
}

func printMetrics(w io.Writer, m metrics.PerformanceMetrics) {
	fmt.Fprintln(w, "Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d (%d won, %d lost)\n", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", m.WinRate*100)
	fmt.Fprintf(w, "Net P/L:       %s\n", m.NetPL.StringFixed(2))
	fmt.Fprintf(w, "Gross:         +%s / -%s\n", m.GrossProfit.StringFixed(2), m.GrossLoss.StringFixed(2))
	fmt.Fprintf(w, "Average:       +%s / -%s\n", m.AverageWin.StringFixed(2), m.AverageLoss.StringFixed(2))
	fmt.Fprintf(w, "Largest:       +%s / %s\n", m.LargestWin.StringFixed(2), m.LargestLoss.StringFixed(2))
	fmt.Fprintf(w, "Commission:    %s\n", m.TotalCommission.StringFixed(2))
	fmt.Fprintf(w, "Profit Factor: %.2f\n", m.ProfitFactor)
	fmt.Fprintf(w, "Sharpe:        %.2f\n", m.SharpeRatio)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", m.MaxDrawdown)
	fmt.Fprintf(w, "Return:        %.2f%%\n", m.TotalReturn)
	fmt.Fprintf(w, "Streaks:       %d wins, %d losses\n", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)
	fmt.Fprintf(w, "Avg Holding:   %s\n", m.AverageHolding.Round(time.Second))
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
