// Package ledger keeps the append-only history of executed paper trades.
package ledger

import (
	"sync"

	"github.com/trogers1052/papertrade/internal/models"
)

// Ledger stores trades in execution order. Records are never mutated or
// removed individually; Reset drops the whole history.
type Ledger struct {
	mu     sync.RWMutex
	trades []models.Trade
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{}
}

// Append records an executed trade
func (l *Ledger) Append(t models.Trade) {
	l.mu.Lock()
	l.trades = append(l.trades, t)
	l.mu.Unlock()
}

// List returns up to limit trades, newest first. A limit <= 0 returns all.
func (l *Ledger) List(limit int) []models.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.trades)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]models.Trade, 0, n)
	for i := len(l.trades) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.trades[i])
	}
	return out
}

// Len returns the number of recorded trades
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

// Load replaces the history with trades given oldest first. Used when
// restoring from persistence at startup.
func (l *Ledger) Load(trades []models.Trade) {
	cp := make([]models.Trade, len(trades))
	copy(cp, trades)

	l.mu.Lock()
	l.trades = cp
	l.mu.Unlock()
}

// Reset clears the history
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.trades = nil
	l.mu.Unlock()
}
