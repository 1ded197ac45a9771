package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	tradesData, err := os.ReadFile(tradesPath)
	require.NoError(t, err)
	equityData, err := os.ReadFile(equityPath)
	require.NoError(t, err)

	tradesHeaderRow, err := csv.NewReader(strings.NewReader(string(tradesData))).Read()
	require.NoError(t, err)
	equityHeaderRow, err := csv.NewReader(strings.NewReader(string(equityData))).Read()
	require.NoError(t, err)

	assert.Equal(t, tradeHeader, tradesHeaderRow)
	assert.Equal(t, equityHeader, equityHeaderRow)
}

func TestCSVJournalRoundTripAcrossSessions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	t0 := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	first := sampleTrade("T1", t0, "569.4")
	second := sampleTrade("T2", t0.Add(time.Hour), "-30.6")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(first))
	require.NoError(t, j.Close())

	// A second session appends without repeating the header.
	j, err = NewCSV(tradesPath, equityPath)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(second))

	got, err := j.LoadTrades()
	require.NoError(t, err)
	require.NoError(t, j.Close())

	require.Len(t, got, 2)
	assertSameTrade(t, first, got[0])
	assertSameTrade(t, second, got[1])
}

func TestCSVJournalRecordEquity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)

	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time:          ts,
		Balance:       d("84985"),
		Equity:        d("100985"),
		OpenPositions: 1,
	}))
	require.NoError(t, j.Close())

	equityData, err := os.ReadFile(equityPath)
	require.NoError(t, err)

	reader := csv.NewReader(strings.NewReader(string(equityData)))
	_, err = reader.Read() // header
	require.NoError(t, err)
	row, err := reader.Read()
	require.NoError(t, err)

	assert.Equal(t, []string{ts.Format(time.RFC3339Nano), "84985", "100985", "1"}, row)
}

func TestReadTradesCSVRejectsBadDecimal(t *testing.T) {
	t.Parallel()

	in := strings.Join(tradeHeader, ",") + "\n" +
		"T1,AAPL,long,abc,150,156,2024-01-02T15:00:00Z,2024-01-02T16:00:00Z,15,15.6,600,569.4,manual,0.5,x\n"

	_, err := ReadTradesCSV(strings.NewReader(in))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
