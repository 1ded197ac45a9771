package journal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()

	trade := sampleTrade("01HQZX7K4M-abcd", time.Date(2024, 3, 15, 14, 20, 30, 0, time.UTC), "569.4")
	result := FormatTradeOrg(trade)

	assert.Contains(t, result, "** Trade: AAPL long (01HQZX7K)")
	assert.Contains(t, result, ":TRADE_ID: 01HQZX7K4M-abcd")
	assert.Contains(t, result, ":ENTRY_PRICE: 150.00000")
	assert.Contains(t, result, ":EXIT_PRICE: 156.00000")
	assert.Contains(t, result, ":CLOSE_TIME: 2024-03-15T14:20:30Z")
	assert.Contains(t, result, ":COMMISSION: 30.60")
	assert.Contains(t, result, ":REALIZED_PL: 569.40")
	assert.Contains(t, result, ":REASON: trailing_stop")
	assert.Contains(t, result, ":SIGNAL: scripted (0.75)")
	assert.Contains(t, result, "*** Review")
}

func TestFormatTradesOrg(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	out := FormatTradesOrg([]TradeRecord{
		sampleTrade("a", t0, "1"),
		sampleTrade("b", t0, "2"),
	})
	assert.Equal(t, 2, strings.Count(out, "** Trade:"))
	assert.Empty(t, FormatTradesOrg(nil))
}

func TestBacktestRunRenderOrg(t *testing.T) {
	t.Parallel()

	run := BacktestRun{
		RunID:        "run-7",
		Symbols:      []string{"AAPL", "MSFT"},
		Interval:     "1d",
		Strategy:     "ema-cross",
		Start:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		StartBalance: d("100000"),
		EndBalance:   d("98000"),
		Trades:       3,
		Wins:         1,
		Losses:       2,
		MaxDDPct:     4.25,
		Notes:        []string{"choppy market"},
	}

	out, err := run.RenderOrg()
	require.NoError(t, err)
	assert.Contains(t, out, "* BACKTEST: ema-cross AAPL,MSFT 1d")
	assert.Contains(t, out, ":NET_PL:      -2000.00")
	assert.Contains(t, out, ":MAX_DD_PCT:  4.25")
	assert.Contains(t, out, "- choppy market")

	assert.Error(t, run.WriteBacktestOrg())
}
