package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeledger/market/data"
)

// execute runs the CLI with args after putting every flag back to its
// default, since cobra keeps parsed values in package variables.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				if sv, ok := f.Value.(pflag.SliceValue); ok {
					_ = sv.Replace(nil)
				} else {
					_ = f.Value.Set(f.DefValue)
				}
				f.Changed = false
			})
		}
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// fixture lays out bars, a signal script and a config with a SQLite
// journal and no trading costs.
func fixture(t *testing.T) (dir, cfgPath string) {
	dir = t.TempDir()
	writeFile(t, filepath.Join(dir, "bars", "1h", "AAPL.csv"), `time,open,high,low,close,volume
2024-01-02T10:00:00Z,100,101,99,100,1000
2024-01-02T11:00:00Z,100,101,99,100,1000
2024-01-02T12:00:00Z,100,104,96,103,1000
2024-01-02T13:00:00Z,103,111,102,108,1000
2024-01-02T14:00:00Z,108,109,99,100,1000
2024-01-02T15:00:00Z,100,101,99,100,1000
2024-01-02T16:00:00Z,100,101,98,99,1000
2024-01-02T17:00:00Z,99,100,98.5,99.5,1000
`)
	writeFile(t, filepath.Join(dir, "signals.csv"), `time,symbol,action,confidence,stop_loss,take_profit
2024-01-02T11:00:00Z,AAPL,buy,0.9,95,110
2024-01-02T15:00:00Z,AAPL,sell,0.8,104,90
2024-01-02T16:00:00Z,AAPL,buy,0.7
`)
	cfgPath = writeFile(t, filepath.Join(dir, "trader.yaml"), fmt.Sprintf(`account:
  balance: 100000
  commission_rate: 0
  slippage_rate: 0
risk:
  stop_loss: 0.04
  take_profit: 0.1
backtest:
  interval: 1h
  lookback: 5
  min_confidence: 0.5
data:
  dir: %s
  format: csv
journal:
  type: sqlite
  db_path: %s
log:
  level: error
`, filepath.Join(dir, "bars"), filepath.Join(dir, "trader.sqlite")))
	return dir, cfgPath
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "trader version "+version)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.yaml")

	out, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")
	assert.FileExists(t, path)

	out, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "Strategy: ema-cross on 1h bars")

	bad := writeFile(t, filepath.Join(t.TempDir(), "bad.yaml"), "account:\n  balance: 0\n")
	_, err = execute(t, "config", "validate", "-f", bad)
	assert.ErrorContains(t, err, "validation failed")
}

func TestBacktestAndJournal(t *testing.T) {
	dir, cfgPath := fixture(t)
	org := filepath.Join(dir, "run.org")

	out, err := execute(t, "backtest", "--config", cfgPath, "-s", "AAPL",
		"--strategy", "scripted", "--script", filepath.Join(dir, "signals.csv"), "--org", org)
	require.NoError(t, err)
	assert.Contains(t, out, "Backtest Result")
	assert.Contains(t, out, "Trades:        3")
	assert.Contains(t, out, "Net P/L:       2307.24")
	assert.FileExists(t, org)

	out, err = execute(t, "journal", "metrics", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Trades:        3 (3 won, 0 lost)")
	assert.Contains(t, out, "Net P/L:       2307.24")

	out, err = execute(t, "journal", "trades", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "** Trade: AAPL"))
	assert.Contains(t, out, ":REASON: take_profit")

	out, err = execute(t, "journal", "day", "2024-01-02", "--db", filepath.Join(dir, "trader.sqlite"))
	require.NoError(t, err)
	assert.Contains(t, out, ":REASON: session_end")
}

func TestBacktestErrors(t *testing.T) {
	_, cfgPath := fixture(t)

	_, err := execute(t, "backtest", "--config", cfgPath)
	assert.Error(t, err, "symbols are required")

	_, err = execute(t, "backtest", "--config", cfgPath, "-s", "TSLA")
	assert.ErrorContains(t, err, "TSLA")

	_, err = execute(t, "backtest", "--config", cfgPath, "-s", "AAPL", "--from", "yesterday")
	assert.ErrorContains(t, err, "--from")
}

func TestRunReplay(t *testing.T) {
	dir, cfgPath := fixture(t)
	quotes := writeFile(t, filepath.Join(dir, "quotes.csv"), `time,symbol,price
2024-01-02T10:00:00Z,AAPL,100
2024-01-02T10:01:00Z,AAPL,101
2024-01-02T10:02:00Z,AAPL,102
`)

	out, err := execute(t, "run", "--config", cfgPath, "--quotes", quotes, "--strategy", "hold", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Paper trading 1 symbols")
	assert.Contains(t, out, "Polls:         3 (3 quotes, 0 quote errors)")
	assert.Contains(t, out, "Opened:        0")
	assert.Contains(t, out, "Balance:       100000.00")
}

func TestDataConvert(t *testing.T) {
	dir, _ := fixture(t)
	out := filepath.Join(dir, "parquet")

	msg, err := execute(t, "data", "convert", filepath.Join(dir, "bars", "1h", "AAPL.csv"), "--out", out)
	require.NoError(t, err)
	assert.Contains(t, msg, "AAPL: 8 bars")

	bars, err := data.ReadParquetBars(filepath.Join(out, "AAPL.parquet"))
	require.NoError(t, err)
	require.Len(t, bars, 8)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, "99.5", bars[7].Close.String())
}
