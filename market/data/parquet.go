package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/market"
)

// BarRecord is the on-disk Parquet schema for bars.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// ParquetBars serves bars from <Dir>/<interval>/<SYMBOL>.parquet, falling
// back to <Dir>/<SYMBOL>.parquet.
type ParquetBars struct {
	Dir string
}

func NewParquetBars(dir string) *ParquetBars { return &ParquetBars{Dir: dir} }

func (s *ParquetBars) History(ctx context.Context, symbol string, start, end time.Time, interval string) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := locate(s.Dir, symbol, interval, ".parquet")
	if err != nil {
		return nil, err
	}
	bars, err := ReadParquetBars(path)
	if err != nil {
		return nil, err
	}
	return market.FilterBars(bars, start, end), nil
}

// ReadParquetBars loads every bar in the file.
func ReadParquetBars(path string) ([]market.Bar, error) {
	rows, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	out := make([]market.Bar, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.Bar{
			Symbol: r.Symbol,
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   decimal.NewFromFloat(r.Open),
			High:   decimal.NewFromFloat(r.High),
			Low:    decimal.NewFromFloat(r.Low),
			Close:  decimal.NewFromFloat(r.Close),
			Volume: decimal.NewFromFloat(r.Volume),
		})
	}
	return out, nil
}

// WriteParquetBars writes bars sorted by time, creating parent directories.
func WriteParquetBars(path string, bars []market.Bar) error {
	records := make([]BarRecord, 0, len(bars))
	for _, b := range bars {
		records = append(records, BarRecord{
			Symbol:    b.Symbol,
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open.InexactFloat64(),
			High:      b.High.InexactFloat64(),
			Low:       b.Low.InexactFloat64(),
			Close:     b.Close.InexactFloat64(),
			Volume:    b.Volume.InexactFloat64(),
		})
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp < records[j].Timestamp })

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}
