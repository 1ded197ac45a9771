package strategies

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/market"
	"github.com/rustyeddy/tradeledger/market/data"
)

type scriptKey struct {
	symbol string
	at     int64
}

// Scripted replays a fixed set of signals keyed by symbol and bar time.
// Bars without an entry get a hold. It is deterministic by construction.
type Scripted struct {
	signals map[scriptKey]market.Signal
	errs    map[scriptKey]error
}

func NewScripted() *Scripted {
	return &Scripted{
		signals: make(map[scriptKey]market.Signal),
		errs:    make(map[scriptKey]error),
	}
}

// Add schedules sig for the bar of sig.Symbol closing at at.
func (s *Scripted) Add(at time.Time, sig market.Signal) *Scripted {
	if sig.Source == "" {
		sig.Source = "scripted"
	}
	s.signals[scriptKey{sig.Symbol, at.UnixNano()}] = sig
	return s
}

// Fail makes the provider return err for symbol at at.
func (s *Scripted) Fail(symbol string, at time.Time, err error) *Scripted {
	s.errs[scriptKey{symbol, at.UnixNano()}] = err
	return s
}

func (s *Scripted) Signal(_ context.Context, symbol, _ string, window []market.Bar) (market.Signal, error) {
	hold := market.Signal{Symbol: symbol, Action: market.Hold, Source: "scripted"}
	if len(window) == 0 {
		return hold, nil
	}
	k := scriptKey{symbol, window[len(window)-1].Time.UnixNano()}
	if err, ok := s.errs[k]; ok {
		return market.Signal{}, err
	}
	if sig, ok := s.signals[k]; ok {
		return sig, nil
	}
	return hold, nil
}

// LoadScript reads a signal script:
//
//	time,symbol,action,confidence[,stop_loss,take_profit]
func LoadScript(path string) (*Scripted, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ReadScript(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func ReadScript(r io.Reader) (*Scripted, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	s := NewScripted()
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		if len(row) < 4 {
			return nil, fmt.Errorf("line %d: want time,symbol,action,confidence", line)
		}

		at, err := data.ParseTime(row[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		action, err := market.ParseAction(row[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: confidence %q: %w", line, row[3], err)
		}
		sig := market.Signal{Symbol: strings.TrimSpace(row[1]), Action: action, Confidence: conf}
		levels := []*decimal.Decimal{&sig.StopLoss, &sig.TakeProfit}
		for i, dst := range levels {
			if len(row) <= 4+i || strings.TrimSpace(row[4+i]) == "" {
				continue
			}
			if *dst, err = decimal.NewFromString(strings.TrimSpace(row[4+i])); err != nil {
				return nil, fmt.Errorf("line %d: level %q: %w", line, row[4+i], err)
			}
		}
		s.Add(at, sig)
	}
}
