package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/market"
)

var (
	tradeHeader  = []string{"trade_id", "instrument", "side", "units", "entry_price", "exit_price", "open_time", "close_time", "entry_commission", "exit_commission", "gross_pl", "realized_pl", "reason", "confidence", "signal_source"}
	equityHeader = []string{"time", "balance", "equity", "open_positions"}
)

// CSVJournal appends trades and equity rows to two CSV files. Existing
// files are appended to, so LoadTrades sees earlier sessions too.
type CSVJournal struct {
	tradesPath string
	trades     *csv.Writer
	equity     *csv.Writer
	tf, ef     *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, tw, err := openAppend(tradesPath, tradeHeader)
	if err != nil {
		return nil, err
	}
	ef, ew, err := openAppend(equityPath, equityHeader)
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	return &CSVJournal{tradesPath: tradesPath, trades: tw, equity: ew, tf: tf, ef: ef}, nil
}

func openAppend(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(header); err != nil {
			_ = f.Close()
			return nil, nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, nil, err
		}
	}
	return f, w, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	err := j.trades.Write([]string{
		t.TradeID,
		t.Instrument,
		string(t.Side),
		t.Units.String(),
		t.EntryPrice.String(),
		t.ExitPrice.String(),
		t.OpenTime.UTC().Format(time.RFC3339Nano),
		t.CloseTime.UTC().Format(time.RFC3339Nano),
		t.EntryCommission.String(),
		t.ExitCommission.String(),
		t.GrossPL.String(),
		t.RealizedPL.String(),
		string(t.Reason),
		strconv.FormatFloat(t.Confidence, 'f', -1, 64),
		t.SignalSource,
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.Time.UTC().Format(time.RFC3339Nano),
		e.Balance.String(),
		e.Equity.String(),
		strconv.Itoa(e.OpenPositions),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

// LoadTrades re-reads the trades file from the start.
func (j *CSVJournal) LoadTrades() ([]TradeRecord, error) {
	j.trades.Flush()
	f, err := os.Open(j.tradesPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTradesCSV(f)
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

// ReadTradesCSV parses rows written by CSVJournal. The header row is
// required.
func ReadTradesCSV(r io.Reader) ([]TradeRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(tradeHeader)

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var out []TradeRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		rec, err := parseTradeRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
}

func parseTradeRow(row []string) (TradeRecord, error) {
	var (
		rec  TradeRecord
		errs []error
	)
	dec := func(s string) decimal.Decimal {
		v, err := decimal.NewFromString(s)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	ts := func(s string) time.Time {
		v, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	rec.TradeID = row[0]
	rec.Instrument = row[1]
	rec.Side = market.Side(row[2])
	rec.Units = dec(row[3])
	rec.EntryPrice = dec(row[4])
	rec.ExitPrice = dec(row[5])
	rec.OpenTime = ts(row[6])
	rec.CloseTime = ts(row[7])
	rec.EntryCommission = dec(row[8])
	rec.ExitCommission = dec(row[9])
	rec.GrossPL = dec(row[10])
	rec.RealizedPL = dec(row[11])
	rec.Reason = CloseReason(row[12])
	conf, err := strconv.ParseFloat(row[13], 64)
	if err != nil {
		errs = append(errs, err)
	}
	rec.Confidence = conf
	rec.SignalSource = row[14]

	if len(errs) > 0 {
		return TradeRecord{}, errs[0]
	}
	return rec, nil
}
