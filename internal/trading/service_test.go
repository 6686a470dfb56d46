package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/papertrade/internal/database"
	"github.com/trogers1052/papertrade/internal/history"
	"github.com/trogers1052/papertrade/internal/ledger"
	"github.com/trogers1052/papertrade/internal/models"
	"github.com/trogers1052/papertrade/internal/portfolio"
	"github.com/trogers1052/papertrade/internal/pricefeed"
)

// MockRepository is an in-memory Repository
type MockRepository struct {
	mu        sync.Mutex
	state     *models.PortfolioState
	trades    []models.Trade
	snapshots map[string]models.AssetSnapshot
	saveErr   error
	resets    int
	resetAt   int64
}

func NewMockRepository() *MockRepository {
	return &MockRepository{snapshots: make(map[string]models.AssetSnapshot)}
}

func (m *MockRepository) LoadPortfolioState(context.Context) (*models.PortfolioState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, fmt.Errorf("portfolio account %w", database.ErrNotFound)
	}
	cp := *m.state
	return &cp, nil
}

func (m *MockRepository) SavePortfolioState(_ context.Context, state models.PortfolioState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return false, m.saveErr
	}
	if m.state != nil && m.state.Version >= state.Version {
		return false, nil
	}
	m.state = &state
	return true, nil
}

func (m *MockRepository) ResetPortfolio(_ context.Context, state models.PortfolioState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.state = &state
	m.resetAt = state.Version
	m.trades = nil
	m.snapshots = make(map[string]models.AssetSnapshot)
	return true, nil
}

func (m *MockRepository) CreateTrade(_ context.Context, t models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Version <= m.resetAt {
		return nil
	}
	m.trades = append(m.trades, t)
	return nil
}

func (m *MockRepository) AllTrades(context.Context) ([]models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Trade(nil), m.trades...), nil
}

func (m *MockRepository) UpsertAssetSnapshot(_ context.Context, snap models.AssetSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.Date] = snap
	return nil
}

func (m *MockRepository) ListAssetSnapshots(context.Context) ([]models.AssetSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AssetSnapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	return out, nil
}

// MockPublisher records published event types
type MockPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (m *MockPublisher) record(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *MockPublisher) PublishTradeExecuted(context.Context, models.Trade, int64) error {
	return m.record(models.EventTradeExecuted)
}

func (m *MockPublisher) PublishCashDeposited(context.Context, decimal.Decimal, int64) error {
	return m.record(models.EventCashDeposited)
}

func (m *MockPublisher) PublishPortfolioReset(context.Context, decimal.Decimal, int64) error {
	return m.record(models.EventPortfolioReset)
}

func (m *MockPublisher) PublishAssetSnapshot(context.Context, models.AssetSnapshot) error {
	return m.record(models.EventAssetSnapshot)
}

type failingFeed struct{}

func (failingFeed) Prices(context.Context, []string) (map[string]decimal.Decimal, error) {
	return nil, errors.New("redis down")
}

var fixedNow = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

type fixture struct {
	svc  *Service
	repo *MockRepository
	pub  *MockPublisher
	feed *pricefeed.Memory
}

func newFixture(t *testing.T, capital int64) *fixture {
	t.Helper()
	opts := portfolio.DefaultOptions()
	opts.InitialCapital = decimal.NewFromInt(capital)

	exec := portfolio.NewExecutor(portfolio.NewStore(opts), ledger.New(),
		portfolio.WithClock(func() time.Time { return fixedNow }))
	f := &fixture{
		repo: NewMockRepository(),
		pub:  &MockPublisher{},
		feed: pricefeed.NewMemory(),
	}
	f.svc = NewService(Config{
		Executor:  exec,
		Recorder:  history.NewRecorder(time.UTC),
		Prices:    f.feed,
		Repo:      f.repo,
		Publisher: f.pub,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return fixedNow },
	})
	return f
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestService_BuyPersistsPublishesAndSnapshots(t *testing.T) {
	f := newFixture(t, 100000000)
	ctx := context.Background()

	res, err := f.svc.Buy(ctx, "005930", "Samsung Electronics", d(50000), 10)
	require.NoError(t, err)
	assert.True(t, res.Trade.Commission.Equal(d(75)))
	assert.True(t, res.State.Cash.Equal(d(99499925)))

	require.NotNil(t, f.repo.state)
	assert.Equal(t, res.State.Version, f.repo.state.Version)
	assert.Len(t, f.repo.trades, 1)

	assert.Equal(t, []string{models.EventTradeExecuted, models.EventAssetSnapshot}, f.pub.events)

	snap, ok := f.repo.snapshots["2026-03-02"]
	require.True(t, ok, "trades upsert today's snapshot")
	assert.True(t, snap.TotalAsset.Equal(d(99999925)), "no quote: holding valued at avg price")
}

func TestService_RejectedOrderHasNoSideEffects(t *testing.T) {
	f := newFixture(t, 1000)

	_, err := f.svc.Buy(context.Background(), "AAPL", "", d(2000), 1)
	require.ErrorIs(t, err, portfolio.ErrInsufficientFunds)

	assert.Nil(t, f.repo.state)
	assert.Empty(t, f.repo.trades)
	assert.Empty(t, f.pub.events)
	assert.Empty(t, f.svc.TradeHistory(0))
}

func TestService_SellRoundTrip(t *testing.T) {
	f := newFixture(t, 100000000)
	ctx := context.Background()

	_, err := f.svc.Buy(ctx, "005930", "", d(50000), 10)
	require.NoError(t, err)
	res, err := f.svc.Sell(ctx, "005930", d(50000), 10)
	require.NoError(t, err)

	assert.Nil(t, res.Holding)
	assert.True(t, res.Outcome.Profit.Equal(d(-1075)), "sell commission 75 + tax 1000")
	assert.True(t, res.State.Cash.Equal(d(100000000-75-75-1000)))

	trades := f.svc.TradeHistory(10)
	require.Len(t, trades, 2)
	assert.Equal(t, models.TradeTypeSell, trades[0].Action)
	assert.Len(t, f.repo.trades, 2)
}

func TestService_PortfolioUsesFeedPrices(t *testing.T) {
	f := newFixture(t, 100000000)
	ctx := context.Background()

	_, err := f.svc.Buy(ctx, "005930", "Samsung Electronics", d(50000), 10)
	require.NoError(t, err)
	require.NoError(t, f.feed.SetPrice(ctx, "005930", d(55000), fixedNow))

	v := f.svc.Portfolio(ctx)
	require.Len(t, v.Holdings, 1)
	assert.True(t, v.Holdings[0].CurrentPrice.Equal(d(55000)))
	assert.True(t, v.Holdings[0].ProfitLoss.Equal(d(50000)))
	assert.True(t, v.TotalAssetValue.Equal(d(99499925+550000)))
}

func TestService_PortfolioSurvivesFeedFailure(t *testing.T) {
	f := newFixture(t, 100000000)
	ctx := context.Background()
	_, err := f.svc.Buy(ctx, "AAPL", "Apple", d(100), 3)
	require.NoError(t, err)

	f.svc.prices = failingFeed{}
	v := f.svc.Portfolio(ctx)
	require.Len(t, v.Holdings, 1)
	assert.True(t, v.Holdings[0].CurrentPrice.Equal(d(100)))
}

func TestService_PersistenceFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t, 100000000)
	f.repo.saveErr = errors.New("db down")
	f.pub.err = errors.New("kafka down")

	res, err := f.svc.Buy(context.Background(), "AAPL", "Apple", d(100), 3)
	require.NoError(t, err)
	assert.True(t, f.svc.exec.Store().Cash().Equal(res.State.Cash))
	assert.Len(t, f.svc.TradeHistory(0), 1)
}

func TestService_DepositAndReset(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	state, err := f.svc.Deposit(ctx, d(500))
	require.NoError(t, err)
	assert.True(t, state.Cash.Equal(d(1500)))

	_, err = f.svc.Deposit(ctx, d(0))
	require.ErrorIs(t, err, portfolio.ErrInvalidAmount)

	_, err = f.svc.Buy(ctx, "AAPL", "Apple", d(100), 3)
	require.NoError(t, err)

	state = f.svc.Reset(ctx)
	assert.True(t, state.Cash.Equal(d(1000)))
	assert.Empty(t, state.Holdings)
	assert.Empty(t, f.svc.TradeHistory(0))
	assert.Equal(t, 1, f.repo.resets)
	assert.Contains(t, f.pub.events, models.EventCashDeposited)
	assert.Contains(t, f.pub.events, models.EventPortfolioReset)

	series := f.svc.AssetHistory(30)
	require.Len(t, series, 2, "reset clears history; seed series is shown")
	assert.True(t, series[0].TotalAsset.Equal(d(1000)))
}

func TestService_TradeWrittenAfterResetIsNotRestored(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	res, err := f.svc.Buy(ctx, "AAPL", "Apple", d(100), 3)
	require.NoError(t, err)
	f.svc.Reset(ctx)

	require.NoError(t, f.repo.CreateTrade(ctx, res.Trade))

	after, err := f.svc.Buy(ctx, "MSFT", "Microsoft", d(100), 1)
	require.NoError(t, err)
	assert.Greater(t, after.Trade.Version, res.Trade.Version)

	restarted := NewService(Config{
		Executor: portfolio.NewExecutor(portfolio.NewStore(portfolio.DefaultOptions()), ledger.New()),
		Repo:     f.repo,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, restarted.Restore(ctx))

	trades := restarted.TradeHistory(0)
	require.Len(t, trades, 1)
	assert.Equal(t, after.Trade.ID, trades[0].ID)
}

func TestService_AssetHistorySeedsEmptySeries(t *testing.T) {
	f := newFixture(t, 100000000)

	series := f.svc.AssetHistory(30)
	require.Len(t, series, 2)
	assert.Equal(t, "2026-02-27", series[0].Date)
	assert.Equal(t, "2026-03-02", series[1].Date)
	assert.True(t, series[0].TotalAsset.Equal(d(100000000)))
	assert.True(t, series[1].TotalAsset.Equal(d(100000000)))
}

func TestService_RecordSnapshotIsIdempotentPerDay(t *testing.T) {
	f := newFixture(t, 100000000)
	ctx := context.Background()

	first, err := f.svc.RecordSnapshot(ctx)
	require.NoError(t, err)
	_, err = f.svc.Deposit(ctx, d(100))
	require.NoError(t, err)
	second, err := f.svc.RecordSnapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.Date, second.Date)
	series := f.svc.AssetHistory(0)
	require.Len(t, series, 1)
	assert.True(t, series[0].TotalAsset.Equal(d(100000100)))
	assert.Len(t, f.repo.snapshots, 1)
}

func TestService_MovingAverages(t *testing.T) {
	f := newFixture(t, 100)
	f.svc.recorder.Load([]models.AssetSnapshot{
		{Date: "2026-02-27", TotalAsset: d(10)},
		{Date: "2026-02-28", TotalAsset: d(20)},
		{Date: "2026-03-01", TotalAsset: d(30)},
		{Date: "2026-03-02", TotalAsset: d(40)},
	})

	res, err := f.svc.MovingAverages(30, []int{60, 2})
	require.NoError(t, err)
	require.Len(t, res.Series, 4)

	want60 := []float64{10, 15, 20, 25}
	for i, p := range res.Averages[60] {
		assert.InDelta(t, want60[i], p.Value, 1e-9)
	}
	assert.InDelta(t, 35.0, res.Averages[2][3].Value, 1e-9)

	_, err = f.svc.MovingAverages(30, []int{0})
	assert.Error(t, err)

	res, err = f.svc.MovingAverages(30, nil)
	require.NoError(t, err)
	assert.Len(t, res.Averages, len(DefaultMovingAveragePeriods))
}

func TestService_Restore(t *testing.T) {
	f := newFixture(t, 100000000)
	ctx := context.Background()

	t.Run("fresh database keeps initial state", func(t *testing.T) {
		require.NoError(t, f.svc.Restore(ctx))
		assert.True(t, f.svc.exec.Store().Cash().Equal(d(100000000)))
	})

	t.Run("restores persisted state", func(t *testing.T) {
		f.repo.state = &models.PortfolioState{
			Cash:           d(400),
			InitialCapital: d(1000),
			Holdings:       []models.Holding{{Ticker: "AAPL", Name: "Apple", Quantity: 6, AvgPrice: d(100)}},
			Version:        12,
		}
		f.repo.trades = []models.Trade{{ID: "a", Ticker: "AAPL", Action: models.TradeTypeBuy}}
		f.repo.snapshots["2026-03-01"] = models.AssetSnapshot{Date: "2026-03-01", TotalAsset: d(1000)}

		require.NoError(t, f.svc.Restore(ctx))

		st := f.svc.exec.Store().State()
		assert.True(t, st.Cash.Equal(d(400)))
		assert.Equal(t, int64(12), st.Version)
		assert.Len(t, f.svc.TradeHistory(0), 1)
		assert.Len(t, f.svc.AssetHistory(30), 1)

		res, err := f.svc.Buy(ctx, "AAPL", "", d(100), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(13), res.State.Version)
		assert.Equal(t, int64(13), f.repo.state.Version)
	})
}

func TestService_WithoutOptionalCollaborators(t *testing.T) {
	exec := portfolio.NewExecutor(portfolio.NewStore(portfolio.DefaultOptions()), ledger.New())
	svc := NewService(Config{Executor: exec, Logger: zerolog.Nop()})
	ctx := context.Background()

	require.NoError(t, svc.Restore(ctx))
	_, err := svc.Buy(ctx, "AAPL", "Apple", d(100), 1)
	require.NoError(t, err)
	v := svc.Portfolio(ctx)
	assert.Len(t, v.Holdings, 1)
	snap, err := svc.RecordSnapshot(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Date)
}
