// Package portfolio implements the paper-trading account: the store that
// owns cash and holdings, and the executor that turns orders into store
// mutations and ledger entries.
package portfolio

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/papertrade/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Options configures a Store
type Options struct {
	InitialCapital decimal.Decimal
	Fees           FeeSchedule
	Currency       string
}

// DefaultOptions returns a KRW account funded with 100,000,000.
func DefaultOptions() Options {
	return Options{
		InitialCapital: DefaultInitialCapital,
		Fees:           DefaultFeeSchedule(),
		Currency:       "KRW",
	}
}

// BuyOutcome describes a committed buy
type BuyOutcome struct {
	Holding    models.Holding
	GrossCost  decimal.Decimal
	Commission decimal.Decimal
	TotalDebit decimal.Decimal
}

// SellOutcome describes a committed sell. Holding is the remaining
// position and is only meaningful when Closed is false.
type SellOutcome struct {
	Holding       models.Holding
	Closed        bool
	Name          string
	AvgPrice      decimal.Decimal
	GrossProceeds decimal.Decimal
	Commission    decimal.Decimal
	Tax           decimal.Decimal
	NetProceeds   decimal.Decimal
	Profit        decimal.Decimal
	ProfitRate    decimal.Decimal
}

// Store is the sole owner of cash and holdings. Every mutation runs under
// the write lock, so readers never see a half-applied order.
type Store struct {
	mu             sync.RWMutex
	cash           decimal.Decimal
	initialCapital decimal.Decimal
	holdings       map[string]*models.Holding
	fees           FeeSchedule
	money          MoneyFormatter
	version        int64
	updatedAt      time.Time
	now            func() time.Time
}

// NewStore creates a store holding opts.InitialCapital in cash
func NewStore(opts Options) *Store {
	if !opts.InitialCapital.IsPositive() {
		opts.InitialCapital = DefaultInitialCapital
	}
	if opts.Fees.CommissionRate.IsZero() && opts.Fees.TaxRate.IsZero() {
		opts.Fees = DefaultFeeSchedule()
	}

	s := &Store{
		initialCapital: opts.InitialCapital,
		fees:           opts.Fees,
		money:          NewMoneyFormatter(opts.Currency),
		now:            time.Now,
	}
	s.resetLocked()
	return s
}

// Fees returns the store's fee schedule
func (s *Store) Fees() FeeSchedule {
	return s.fees
}

// InitialCapital returns the reference capital used for profit figures
func (s *Store) InitialCapital() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialCapital
}

// Cash returns the current cash balance
func (s *Store) Cash() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cash
}

// Holding returns a copy of the holding for ticker
func (s *Store) Holding(ticker string) (models.Holding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holdings[normalizeTicker(ticker)]
	if !ok {
		return models.Holding{}, false
	}
	return *h, true
}

// ApplyBuy debits price*quantity plus commission and reweights the
// holding's average price.
func (s *Store) ApplyBuy(ticker, name string, price decimal.Decimal, quantity int64) (BuyOutcome, error) {
	ticker = normalizeTicker(ticker)
	if err := validateOrder(ticker, price, quantity); err != nil {
		return BuyOutcome{}, err
	}

	qty := decimal.NewFromInt(quantity)
	gross := price.Mul(qty)
	commission := s.fees.Commission(gross)
	debit := gross.Add(commission)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cash.LessThan(debit) {
		return BuyOutcome{}, newOrderError(ErrInsufficientFunds, ticker,
			"buying %d %s needs %s, available cash is %s",
			quantity, ticker, s.money.Format(debit), s.money.Format(s.cash))
	}

	h, ok := s.holdings[ticker]
	if !ok {
		h = &models.Holding{Ticker: ticker, Name: name, AvgPrice: price}
		s.holdings[ticker] = h
	} else {
		oldQty := decimal.NewFromInt(h.Quantity)
		h.AvgPrice = h.AvgPrice.Mul(oldQty).Add(gross).Div(oldQty.Add(qty))
		if name != "" {
			h.Name = name
		}
	}
	h.Quantity += quantity
	s.cash = s.cash.Sub(debit)
	s.commitLocked()

	return BuyOutcome{
		Holding:    *h,
		GrossCost:  gross,
		Commission: commission,
		TotalDebit: debit,
	}, nil
}

// ApplySell credits the net proceeds and books profit against the
// average cost. The average price of the remaining quantity is unchanged.
func (s *Store) ApplySell(ticker string, price decimal.Decimal, quantity int64) (SellOutcome, error) {
	ticker = normalizeTicker(ticker)
	if err := validateOrder(ticker, price, quantity); err != nil {
		return SellOutcome{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holdings[ticker]
	if !ok {
		return SellOutcome{}, newOrderError(ErrUnknownTicker, ticker, "no holding for %s", ticker)
	}
	if quantity > h.Quantity {
		return SellOutcome{}, newOrderError(ErrInsufficientShares, ticker,
			"cannot sell %d %s, only %d held", quantity, ticker, h.Quantity)
	}

	qty := decimal.NewFromInt(quantity)
	gross := price.Mul(qty)
	commission := s.fees.Commission(gross)
	tax := s.fees.Tax(gross)
	net := gross.Sub(commission).Sub(tax)

	cost := h.AvgPrice.Mul(qty)
	profit := price.Sub(h.AvgPrice).Mul(qty).Sub(commission).Sub(tax)
	rate := decimal.Zero
	if cost.IsPositive() {
		rate = profit.Div(cost).Mul(hundred)
	}

	out := SellOutcome{
		Name:          h.Name,
		AvgPrice:      h.AvgPrice,
		GrossProceeds: gross,
		Commission:    commission,
		Tax:           tax,
		NetProceeds:   net,
		Profit:        profit,
		ProfitRate:    rate,
	}

	h.Quantity -= quantity
	if h.Quantity == 0 {
		delete(s.holdings, ticker)
		out.Closed = true
	} else {
		out.Holding = *h
	}
	s.cash = s.cash.Add(net)
	s.commitLocked()

	return out, nil
}

// Deposit adds amount to cash. There is no deduplication.
func (s *Store) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return newOrderError(ErrInvalidAmount, "", "deposit must be positive, got %s", s.money.Format(amount))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cash = s.cash.Add(amount)
	s.commitLocked()
	return nil
}

// Reset drops all holdings and restores cash to the initial capital
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.commitLocked()
}

// Valuation prices every holding at prices[ticker], falling back to the
// holding's average price when no quote is available. It never mutates.
func (s *Store) Valuation(prices map[string]decimal.Decimal) models.Valuation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := models.Valuation{
		Cash:           s.cash,
		Holdings:       make([]models.HoldingValuation, 0, len(s.holdings)),
		HoldingsValue:  decimal.Zero,
		InitialCapital: s.initialCapital,
	}

	for _, ticker := range s.sortedTickersLocked() {
		h := s.holdings[ticker]
		current, ok := prices[ticker]
		if !ok || !current.IsPositive() {
			current = h.AvgPrice
		}

		qty := decimal.NewFromInt(h.Quantity)
		marketValue := current.Mul(qty)
		cost := h.CostBasis()
		pnl := marketValue.Sub(cost)
		rate := decimal.Zero
		if cost.IsPositive() {
			rate = pnl.Div(cost).Mul(hundred)
		}

		v.Holdings = append(v.Holdings, models.HoldingValuation{
			Ticker:       h.Ticker,
			Name:         h.Name,
			Quantity:     h.Quantity,
			AvgPrice:     h.AvgPrice,
			CurrentPrice: current,
			MarketValue:  marketValue,
			ProfitLoss:   pnl,
			ProfitRate:   rate,
		})
		v.HoldingsValue = v.HoldingsValue.Add(marketValue)
	}

	v.TotalAssetValue = v.Cash.Add(v.HoldingsValue)
	v.TotalProfit = v.TotalAssetValue.Sub(s.initialCapital)
	v.TotalProfitRate = v.TotalProfit.Div(s.initialCapital).Mul(hundred)
	return v
}

// Tickers returns the held tickers in sorted order
func (s *Store) Tickers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedTickersLocked()
}

// State returns a consistent copy of the account
func (s *Store) State() models.PortfolioState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holdings := make([]models.Holding, 0, len(s.holdings))
	for _, ticker := range s.sortedTickersLocked() {
		holdings = append(holdings, *s.holdings[ticker])
	}
	return models.PortfolioState{
		Cash:           s.cash,
		InitialCapital: s.initialCapital,
		Holdings:       holdings,
		Version:        s.version,
		UpdatedAt:      s.updatedAt,
	}
}

// Restore installs a persisted state. The state must satisfy the account
// invariants; a positive persisted initial capital overrides the configured one.
func (s *Store) Restore(state models.PortfolioState) error {
	if state.Cash.IsNegative() {
		return fmt.Errorf("failed to restore portfolio: negative cash %s", state.Cash)
	}

	holdings := make(map[string]*models.Holding, len(state.Holdings))
	for _, h := range state.Holdings {
		ticker := normalizeTicker(h.Ticker)
		if h.Quantity <= 0 {
			return fmt.Errorf("failed to restore portfolio: holding %s has quantity %d", ticker, h.Quantity)
		}
		if _, dup := holdings[ticker]; dup {
			return fmt.Errorf("failed to restore portfolio: duplicate holding %s", ticker)
		}
		cp := h
		cp.Ticker = ticker
		holdings[ticker] = &cp
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cash = state.Cash
	s.holdings = holdings
	if state.InitialCapital.IsPositive() {
		s.initialCapital = state.InitialCapital
	}
	s.version = state.Version
	s.updatedAt = state.UpdatedAt
	return nil
}

func (s *Store) resetLocked() {
	s.cash = s.initialCapital
	s.holdings = make(map[string]*models.Holding)
}

func (s *Store) commitLocked() {
	s.version++
	s.updatedAt = s.now()
}

func (s *Store) sortedTickersLocked() []string {
	tickers := make([]string, 0, len(s.holdings))
	for t := range s.holdings {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

func validateOrder(ticker string, price decimal.Decimal, quantity int64) error {
	if ticker == "" {
		return newOrderError(ErrInvalidOrder, ticker, "ticker is required")
	}
	if quantity <= 0 {
		return newOrderError(ErrInvalidOrder, ticker, "quantity must be positive, got %d", quantity)
	}
	if !price.IsPositive() {
		return newOrderError(ErrInvalidOrder, ticker, "price must be positive, got %s", price)
	}
	return nil
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
