package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeledger/market"
)

// CSVQuoteFeed replays quotes from a CSV file:
//
//	time,symbol,price
//
// Each call to Quote returns the symbol's next row in time order, then
// market.ErrFeedExhausted once the rows run out.
type CSVQuoteFeed struct {
	mu     sync.Mutex
	quotes map[string][]market.Quote
	next   map[string]int
}

func OpenCSVQuoteFeed(path string) (*CSVQuoteFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewCSVQuoteFeed(f)
}

func NewCSVQuoteFeed(r io.Reader) (*CSVQuoteFeed, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	feed := &CSVQuoteFeed{
		quotes: make(map[string][]market.Quote),
		next:   make(map[string]int),
	}
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 || (line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time")) {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("line %d: want time,symbol,price", line)
		}
		t, err := ParseTime(row[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		sym := strings.TrimSpace(row[1])
		price, err := decimal.NewFromString(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, fmt.Errorf("line %d: price %q: %w", line, row[2], err)
		}
		feed.quotes[sym] = append(feed.quotes[sym], market.Quote{Symbol: sym, Price: price, Time: t})
	}
	for sym := range feed.quotes {
		qs := feed.quotes[sym]
		sort.SliceStable(qs, func(i, j int) bool { return qs[i].Time.Before(qs[j].Time) })
	}
	return feed, nil
}

// Symbols lists the symbols present in the file, sorted.
func (f *CSVQuoteFeed) Symbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.quotes))
	for s := range f.quotes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (f *CSVQuoteFeed) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	if err := ctx.Err(); err != nil {
		return market.Quote{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	qs, ok := f.quotes[symbol]
	if !ok {
		return market.Quote{}, fmt.Errorf("%s: %w", symbol, market.ErrNoQuote)
	}
	i := f.next[symbol]
	if i >= len(qs) {
		return market.Quote{}, fmt.Errorf("%s: %w", symbol, market.ErrFeedExhausted)
	}
	f.next[symbol] = i + 1
	return qs[i], nil
}
