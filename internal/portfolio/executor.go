package portfolio

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/papertrade/internal/ledger"
	"github.com/trogers1052/papertrade/internal/models"
)

// BuyResult is returned by Executor.Buy
type BuyResult struct {
	Holding models.Holding
	Trade   models.Trade
	State   models.PortfolioState
}

// SellResult is returned by Executor.Sell. Holding is nil when the sell
// closed the position.
type SellResult struct {
	Holding *models.Holding
	Trade   models.Trade
	Outcome SellOutcome
	State   models.PortfolioState
}

// ExecutorOption customises an Executor
type ExecutorOption func(*Executor)

// WithClock overrides the trade timestamp source
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// WithIDGenerator overrides trade ID generation
func WithIDGenerator(newID func() string) ExecutorOption {
	return func(e *Executor) { e.newID = newID }
}

// Executor validates orders, applies them to the Store and records them in
// the Ledger. Buy, Sell, Deposit and Reset are serialised so the store
// mutation and the ledger append are observed together.
type Executor struct {
	mu     sync.Mutex
	store  *Store
	ledger *ledger.Ledger
	now    func() time.Time
	newID  func() string
}

// NewExecutor creates an executor over store and l
func NewExecutor(store *Store, l *ledger.Ledger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:  store,
		ledger: l,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying portfolio store
func (e *Executor) Store() *Store {
	return e.store
}

// Ledger returns the trade history
func (e *Executor) Ledger() *ledger.Ledger {
	return e.ledger
}

// Buy executes a paper buy at price
func (e *Executor) Buy(ticker, name string, price decimal.Decimal, quantity int64) (BuyResult, error) {
	ticker = normalizeTicker(ticker)
	if err := validateOrder(ticker, price, quantity); err != nil {
		return BuyResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out, err := e.store.ApplyBuy(ticker, name, price, quantity)
	if err != nil {
		return BuyResult{}, err
	}

	trade := models.Trade{
		ID:         e.newID(),
		Timestamp:  e.now(),
		Ticker:     ticker,
		Name:       out.Holding.Name,
		Action:     models.TradeTypeBuy,
		Price:      price,
		Quantity:   quantity,
		Commission: out.Commission,
		Tax:        decimal.Zero,
		Amount:     out.TotalDebit,
	}
	state := e.store.State()
	trade.Version = state.Version
	e.ledger.Append(trade)

	return BuyResult{
		Holding: out.Holding,
		Trade:   trade,
		State:   state,
	}, nil
}

// Sell executes a paper sell at price
func (e *Executor) Sell(ticker string, price decimal.Decimal, quantity int64) (SellResult, error) {
	ticker = normalizeTicker(ticker)
	if err := validateOrder(ticker, price, quantity); err != nil {
		return SellResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out, err := e.store.ApplySell(ticker, price, quantity)
	if err != nil {
		return SellResult{}, err
	}

	profit := out.Profit
	rate := out.ProfitRate
	trade := models.Trade{
		ID:         e.newID(),
		Timestamp:  e.now(),
		Ticker:     ticker,
		Name:       out.Name,
		Action:     models.TradeTypeSell,
		Price:      price,
		Quantity:   quantity,
		Commission: out.Commission,
		Tax:        out.Tax,
		Amount:     out.NetProceeds,
		Profit:     &profit,
		ProfitRate: &rate,
	}
	state := e.store.State()
	trade.Version = state.Version
	e.ledger.Append(trade)

	res := SellResult{
		Trade:   trade,
		Outcome: out,
		State:   state,
	}
	if !out.Closed {
		h := out.Holding
		res.Holding = &h
	}
	return res, nil
}

// Deposit adds cash to the account
func (e *Executor) Deposit(amount decimal.Decimal) (models.PortfolioState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Deposit(amount); err != nil {
		return models.PortfolioState{}, err
	}
	return e.store.State(), nil
}

// Reset restores the initial capital and clears holdings and the ledger.
// Each clear func runs under the same lock, so no order commits between the
// reset and the clearing of derived state. It is irreversible; callers must
// obtain confirmation first.
func (e *Executor) Reset(clear ...func()) models.PortfolioState {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.Reset()
	e.ledger.Reset()
	for _, fn := range clear {
		fn()
	}
	return e.store.State()
}

// Restore installs persisted state and trade history (oldest first)
func (e *Executor) Restore(state models.PortfolioState, trades []models.Trade) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Restore(state); err != nil {
		return err
	}
	e.ledger.Load(trades)
	return nil
}
