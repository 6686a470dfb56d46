// Package pricefeed supplies the current market price per ticker. A missing
// quote is not an error: callers value the holding at its average price.
package pricefeed

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Feed looks up current prices. Tickers without a quote are omitted from
// the result.
type Feed interface {
	Prices(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error)
}

// Writer stores the latest quote for a ticker
type Writer interface {
	SetPrice(ctx context.Context, ticker string, price decimal.Decimal, ts time.Time) error
}

// Cache is a Feed that can also be written to
type Cache interface {
	Feed
	Writer
}

// Quote is a price observed at a point in time
type Quote struct {
	Price decimal.Decimal
	AsOf  time.Time
}

// Memory is an in-process Feed and Writer
type Memory struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewMemory creates an empty in-memory feed
func NewMemory() *Memory {
	return &Memory{quotes: make(map[string]Quote)}
}

// SetPrice stores a quote, ignoring quotes older than the one held
func (m *Memory) SetPrice(_ context.Context, ticker string, price decimal.Decimal, ts time.Time) error {
	ticker = normalize(ticker)

	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.quotes[ticker]; ok && ts.Before(cur.AsOf) {
		return nil
	}
	m.quotes[ticker] = Quote{Price: price, AsOf: ts}
	return nil
}

// Prices returns the held quotes for tickers
func (m *Memory) Prices(_ context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		if q, ok := m.quotes[normalize(t)]; ok {
			out[normalize(t)] = q.Price
		}
	}
	return out, nil
}

func normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

var _ Cache = (*Memory)(nil)
