package market

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoQuote is returned when no price has been seen for a symbol.
	ErrNoQuote = errors.New("quote not found")
	// ErrFeedExhausted is returned by replay sources with nothing left.
	ErrFeedExhausted = errors.New("quote feed exhausted")
)

// Quote is the last traded or mid price for a symbol.
type Quote struct {
	Symbol string
	Price  decimal.Decimal
	Time   time.Time
}

// QuoteSource fetches live quotes. Implementations may block on I/O.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// QuoteStore keeps the latest quote per symbol.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]Quote)}
}

func (qs *QuoteStore) Set(q Quote) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes[q.Symbol] = q
}

func (qs *QuoteStore) Get(symbol string) (Quote, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	q, ok := qs.quotes[symbol]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}
