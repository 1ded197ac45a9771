package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeledger/market/data"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Manage historical bar files",
}

var dataConvertCmd = &cobra.Command{
	Use:   "convert <bars.csv>...",
	Short: "Convert CSV bar files to Parquet",
	Long: `Convert OHLCV CSV files (time,open,high,low,close,volume) to Parquet. The
symbol is taken from the file name unless --symbol is given. Output files are
written next to the input unless --out names a directory.

Example:
  trader data convert data/1h/AAPL.csv data/1h/MSFT.csv --out data/parquet/1h`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDataConvert,
}

var (
	dataSymbol string
	dataOut    string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataConvertCmd)

	dataConvertCmd.Flags().StringVar(&dataSymbol, "symbol", "", "symbol for a single input file")
	dataConvertCmd.Flags().StringVarP(&dataOut, "out", "o", "", "output directory")
}

func runDataConvert(cmd *cobra.Command, args []string) error {
	if dataSymbol != "" && len(args) > 1 {
		return fmt.Errorf("--symbol only applies to a single input file")
	}
	for _, in := range args {
		sym := dataSymbol
		if sym == "" {
			sym = strings.ToUpper(strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)))
		}

		f, err := os.Open(in)
		if err != nil {
			return err
		}
		bars, err := data.ReadBarsCSV(f, sym)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}

		dir := dataOut
		if dir == "" {
			dir = filepath.Dir(in)
		}
		out := filepath.Join(dir, sym+".parquet")
		if err := data.WriteParquetBars(out, bars); err != nil {
			return fmt.Errorf("%s: %w", out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d bars -> %s\n", sym, len(bars), out)
	}
	return nil
}
