package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('trades','equity','backtest_runs')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["trades"])
	assert.True(t, found["equity"])
	assert.True(t, found["backtest_runs"])
}

func TestSQLiteTradesRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	t0 := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	a := sampleTrade("T1", t0, "569.4")
	b := sampleTrade("T2", t0.Add(24*time.Hour), "-12.5")

	require.NoError(t, j.RecordTrade(a))
	require.NoError(t, j.RecordTrade(b))

	all, err := j.LoadTrades()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assertSameTrade(t, a, all[0])
	assertSameTrade(t, b, all[1])

	got, err := j.GetTrade("T2")
	require.NoError(t, err)
	assertSameTrade(t, b, got)

	_, err = j.GetTrade("missing")
	assert.Error(t, err)

	// Duplicate IDs are rejected.
	assert.Error(t, j.RecordTrade(a))
}

func TestSQLiteListTradesClosedBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade(sampleTrade("before", day.Add(-time.Minute), "1")))
	require.NoError(t, j.RecordTrade(sampleTrade("inside", day.Add(10*time.Hour), "2")))
	require.NoError(t, j.RecordTrade(sampleTrade("after", day.Add(24*time.Hour), "3")))

	recs, err := j.ListTradesClosedBetween(day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "inside", recs[0].TradeID)
}

func TestSQLiteEquity(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: t0, Balance: d("100000"), Equity: d("100000")}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: t0.Add(time.Hour), Balance: d("84985"), Equity: d("100585"), OpenPositions: 1}))

	eq, err := j.ListEquityBetween(t0, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, eq, 2)
	assert.True(t, d("100585").Equal(eq[1].Equity))
	assert.Equal(t, 1, eq[1].OpenPositions)
	assert.True(t, t0.Add(time.Hour).Equal(eq[1].Time))
}

func TestSQLiteBacktestRun(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	run := BacktestRun{
		RunID:        "run-1",
		Created:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Symbols:      []string{"AAPL", "EUR_USD"},
		Interval:     "1h",
		Dataset:      "testdata",
		Strategy:     "scripted",
		Start:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		StartBalance: d("100000"),
		EndBalance:   d("101250.5"),
		Trades:       10,
		Wins:         6,
		Losses:       4,
		WinRate:      60,
		ProfitFactor: 1.8,
		Sharpe:       1.2,
		MaxDDPct:     3.5,
		ReturnPct:    1.2505,
	}
	require.NoError(t, j.RecordBacktest(run))

	got, err := j.GetBacktestRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Symbols, got.Symbols)
	assert.True(t, run.EndBalance.Equal(got.EndBalance))
	assert.Equal(t, run.Trades, got.Trades)
	assert.InDelta(t, run.Sharpe, got.Sharpe, 1e-12)
	assert.True(t, d("1250.5").Equal(got.NetPL()))

	_, err = j.GetBacktestRun("nope")
	assert.Error(t, err)
}
