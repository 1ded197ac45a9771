// Package data reads and writes bar and quote files for replay: CSV and
// Parquet bars laid out one file per symbol, and time,symbol,price quote
// CSVs.
package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/market"
)

var barHeader = []string{"time", "open", "high", "low", "close", "volume"}

// CSVBars serves bars from <Dir>/<interval>/<SYMBOL>.csv, falling back to
// <Dir>/<SYMBOL>.csv.
//
//	time,open,high,low,close,volume
type CSVBars struct {
	Dir string
}

func NewCSVBars(dir string) *CSVBars { return &CSVBars{Dir: dir} }

func (s *CSVBars) History(ctx context.Context, symbol string, start, end time.Time, interval string) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := locate(s.Dir, symbol, interval, ".csv")
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadBarsCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return market.FilterBars(bars, start, end), nil
}

// ReadBarsCSV parses bar rows for symbol. A header row is optional and
// blank lines are skipped.
func ReadBarsCSV(r io.Reader, symbol string) ([]market.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var out []market.Bar
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		if len(row) < 5 {
			return nil, fmt.Errorf("line %d: want at least 5 fields, got %d", line, len(row))
		}

		b := market.Bar{Symbol: symbol}
		if b.Time, err = ParseTime(row[0]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fields := []*decimal.Decimal{&b.Open, &b.High, &b.Low, &b.Close}
		if len(row) > 5 {
			fields = append(fields, &b.Volume)
		}
		for i, dst := range fields {
			v, err := decimal.NewFromString(strings.TrimSpace(row[i+1]))
			if err != nil {
				return nil, fmt.Errorf("line %d: %s %q: %w", line, barHeader[i+1], row[i+1], err)
			}
			*dst = v
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, b)
	}
}

// WriteBarsCSV writes bars with a header row.
func WriteBarsCSV(w io.Writer, bars []market.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(barHeader); err != nil {
		return err
	}
	for _, b := range bars {
		row := []string{
			b.Time.UTC().Format(time.RFC3339Nano),
			b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(), b.Volume.String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseTime accepts RFC3339 (with or without fractional seconds) and plain
// dates, which are taken as UTC midnight.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// locate finds the file for symbol, preferring the interval subdirectory.
func locate(dir, symbol, interval, ext string) (string, error) {
	name := strings.ToUpper(symbol) + ext
	var candidates []string
	if interval != "" {
		candidates = append(candidates, filepath.Join(dir, interval, name))
	}
	candidates = append(candidates, filepath.Join(dir, name))

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no %s data for %s in %s: %w", ext, symbol, dir, os.ErrNotExist)
}
