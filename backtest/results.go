package backtest

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/journal"
	"github.com/rustyeddy/tradeledger/metrics"
)

// Result is everything a run produced.
type Result struct {
	Symbols  []string
	Interval string

	Trades      []journal.TradeRecord
	EquityCurve []journal.EquitySnapshot
	Metrics     metrics.PerformanceMetrics

	StartBalance decimal.Decimal
	EndBalance   decimal.Decimal
	Start        time.Time
	End          time.Time

	Bars           int
	Signals        int
	ProviderErrors int
	Rejections     map[string]int // by reason code
}

// Summary builds the stored run row. Percentages are converted to percent
// units.
func (r Result) Summary(runID, strategy, dataset string, created time.Time) journal.BacktestRun {
	m := r.Metrics
	run := journal.BacktestRun{
		RunID:        runID,
		Created:      created,
		Symbols:      r.Symbols,
		Interval:     r.Interval,
		Dataset:      dataset,
		Strategy:     strategy,
		Start:        r.Start,
		End:          r.End,
		StartBalance: r.StartBalance,
		EndBalance:   r.EndBalance,
		Trades:       m.TotalTrades,
		Wins:         m.WinningTrades,
		Losses:       m.LosingTrades,
		WinRate:      m.WinRate * 100,
		ProfitFactor: m.ProfitFactor,
		Sharpe:       m.SharpeRatio,
		MaxDDPct:     m.MaxDrawdown,
		ReturnPct:    m.TotalReturn,
	}
	for _, code := range sortedKeys(r.Rejections) {
		run.Notes = append(run.Notes, fmt.Sprintf("%d entries rejected: %s", r.Rejections[code], code))
	}
	if r.ProviderErrors > 0 {
		run.Notes = append(run.Notes, fmt.Sprintf("%d signal provider errors", r.ProviderErrors))
	}
	return run
}

func PrintRun(w io.Writer, r journal.BacktestRun) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	fmt.Fprintf(w, "Created:       %s\n", r.Created.Format(time.RFC3339))
	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	fmt.Fprintf(w, "Symbols:       %s\n", strings.Join(r.Symbols, ","))
	fmt.Fprintf(w, "Interval:      %s\n", r.Interval)
	if r.Dataset != "" {
		fmt.Fprintf(w, "Dataset:       %s\n", r.Dataset)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.WinRate)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Balance: %s\n", r.StartBalance.StringFixed(2))
	fmt.Fprintf(w, "End Balance:   %s\n", r.EndBalance.StringFixed(2))
	fmt.Fprintf(w, "Net P/L:       %s\n", r.NetPL().StringFixed(2))
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.ReturnPct)
	fmt.Fprintf(w, "Sharpe:        %.2f\n", r.Sharpe)

	if r.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", r.ProfitFactor)
	}
	if r.MaxDDPct > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.MaxDDPct)
	}

	if len(r.Notes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Notes")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, n := range r.Notes {
			fmt.Fprintf(w, "- %s\n", n)
		}
	}
	fmt.Fprintln(w, "==================================================")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
