// Package trading wires the portfolio engine to prices, persistence and
// event publication. Engine commits happen first; storage and Kafka are
// updated afterwards and their failures are logged, not returned.
package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/papertrade/internal/database"
	"github.com/trogers1052/papertrade/internal/history"
	"github.com/trogers1052/papertrade/internal/indicators"
	"github.com/trogers1052/papertrade/internal/models"
	"github.com/trogers1052/papertrade/internal/portfolio"
	"github.com/trogers1052/papertrade/internal/pricefeed"
)

// DefaultMovingAveragePeriods are the overlay lines drawn on the asset chart
var DefaultMovingAveragePeriods = []int{5, 20, 60}

const ioTimeout = 5 * time.Second

// Repository persists committed portfolio state
type Repository interface {
	LoadPortfolioState(ctx context.Context) (*models.PortfolioState, error)
	SavePortfolioState(ctx context.Context, state models.PortfolioState) (bool, error)
	ResetPortfolio(ctx context.Context, state models.PortfolioState) (bool, error)
	CreateTrade(ctx context.Context, t models.Trade) error
	AllTrades(ctx context.Context) ([]models.Trade, error)
	UpsertAssetSnapshot(ctx context.Context, snap models.AssetSnapshot) error
	ListAssetSnapshots(ctx context.Context) ([]models.AssetSnapshot, error)
}

// Publisher emits portfolio events
type Publisher interface {
	PublishTradeExecuted(ctx context.Context, trade models.Trade, version int64) error
	PublishCashDeposited(ctx context.Context, cash decimal.Decimal, version int64) error
	PublishPortfolioReset(ctx context.Context, cash decimal.Decimal, version int64) error
	PublishAssetSnapshot(ctx context.Context, snap models.AssetSnapshot) error
}

// Config holds the service collaborators. Prices, Repo and Publisher are
// optional.
type Config struct {
	Executor  *portfolio.Executor
	Recorder  *history.Recorder
	Prices    pricefeed.Feed
	Repo      Repository
	Publisher Publisher
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Service is the application layer used by the HTTP API and the scheduler
type Service struct {
	exec     *portfolio.Executor
	recorder *history.Recorder
	prices   pricefeed.Feed
	repo     Repository
	pub      Publisher
	log      zerolog.Logger
	now      func() time.Time
}

// MovingAverageResult is the asset series with its moving-average overlays
type MovingAverageResult struct {
	Series   []models.AssetSnapshot     `json:"series"`
	Averages map[int][]indicators.Point `json:"averages"`
}

// NewService creates a trading service
func NewService(cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = history.NewRecorder(time.UTC)
	}
	return &Service{
		exec:     cfg.Executor,
		recorder: recorder,
		prices:   cfg.Prices,
		repo:     cfg.Repo,
		pub:      cfg.Publisher,
		log:      cfg.Logger.With().Str("component", "trading").Logger(),
		now:      now,
	}
}

// Restore loads persisted state, trades and asset history. A database
// without an account row leaves the freshly funded account in place.
func (s *Service) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	state, err := s.repo.LoadPortfolioState(ctx)
	if errors.Is(err, database.ErrNotFound) {
		s.log.Info().Msg("No persisted portfolio, starting fresh")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load portfolio: %w", err)
	}

	trades, err := s.repo.AllTrades(ctx)
	if err != nil {
		return fmt.Errorf("failed to load trades: %w", err)
	}
	snaps, err := s.repo.ListAssetSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("failed to load asset history: %w", err)
	}

	if err := s.exec.Restore(*state, trades); err != nil {
		return err
	}
	s.recorder.Load(snaps)

	s.log.Info().
		Str("cash", state.Cash.String()).
		Int("holdings", len(state.Holdings)).
		Int("trades", len(trades)).
		Int("snapshots", len(snaps)).
		Int64("version", state.Version).
		Msg("Restored portfolio")
	return nil
}

// Portfolio values the account at current prices
func (s *Service) Portfolio(ctx context.Context) models.Valuation {
	store := s.exec.Store()
	return store.Valuation(s.lookupPrices(ctx, store.Tickers()))
}

// Buy executes a paper buy
func (s *Service) Buy(ctx context.Context, ticker, name string, price decimal.Decimal, quantity int64) (portfolio.BuyResult, error) {
	res, err := s.exec.Buy(ticker, name, price, quantity)
	if err != nil {
		s.log.Info().Err(err).Str("ticker", ticker).Int64("quantity", quantity).Msg("Buy rejected")
		return res, err
	}

	s.log.Info().
		Str("ticker", res.Trade.Ticker).
		Int64("quantity", quantity).
		Str("price", price.String()).
		Str("amount", res.Trade.Amount.String()).
		Msg("Buy executed")

	s.afterTrade(ctx, res.Trade, res.State)
	return res, nil
}

// Sell executes a paper sell
func (s *Service) Sell(ctx context.Context, ticker string, price decimal.Decimal, quantity int64) (portfolio.SellResult, error) {
	res, err := s.exec.Sell(ticker, price, quantity)
	if err != nil {
		s.log.Info().Err(err).Str("ticker", ticker).Int64("quantity", quantity).Msg("Sell rejected")
		return res, err
	}

	s.log.Info().
		Str("ticker", res.Trade.Ticker).
		Int64("quantity", quantity).
		Str("price", price.String()).
		Str("profit", res.Outcome.Profit.String()).
		Bool("closed", res.Outcome.Closed).
		Msg("Sell executed")

	s.afterTrade(ctx, res.Trade, res.State)
	return res, nil
}

// Deposit adds cash to the account
func (s *Service) Deposit(ctx context.Context, amount decimal.Decimal) (models.PortfolioState, error) {
	state, err := s.exec.Deposit(amount)
	if err != nil {
		return state, err
	}

	s.log.Info().Str("amount", amount.String()).Str("cash", state.Cash.String()).Msg("Cash deposited")

	ctx, cancel := s.ioContext(ctx)
	defer cancel()

	s.saveState(ctx, state)
	if s.pub != nil {
		if err := s.pub.PublishCashDeposited(ctx, state.Cash, state.Version); err != nil {
			s.log.Warn().Err(err).Msg("Failed to publish deposit")
		}
	}
	s.recordSnapshot(ctx)
	return state, nil
}

// Reset restores the initial capital and clears holdings, trades and asset
// history.
func (s *Service) Reset(ctx context.Context) models.PortfolioState {
	state := s.exec.Reset(s.recorder.Reset)

	s.log.Warn().Str("cash", state.Cash.String()).Int64("version", state.Version).Msg("Portfolio reset")

	ctx, cancel := s.ioContext(ctx)
	defer cancel()

	if s.repo != nil {
		if _, err := s.repo.ResetPortfolio(ctx, state); err != nil {
			s.log.Error().Err(err).Msg("Failed to persist reset")
		}
	}
	if s.pub != nil {
		if err := s.pub.PublishPortfolioReset(ctx, state.Cash, state.Version); err != nil {
			s.log.Warn().Err(err).Msg("Failed to publish reset")
		}
	}
	return state
}

// TradeHistory returns up to limit trades, newest first
func (s *Service) TradeHistory(limit int) []models.Trade {
	return s.exec.Ledger().List(limit)
}

// AssetHistory returns the last days of snapshots, oldest first. An empty
// window yields a flat seed series at the initial capital.
func (s *Service) AssetHistory(days int) []models.AssetSnapshot {
	now := s.now()
	series := s.recorder.Series(days, now)
	if len(series) == 0 {
		return s.recorder.SeedSeries(now, s.exec.Store().InitialCapital())
	}
	return series
}

// MovingAverages returns the asset series with one SMA line per period
func (s *Service) MovingAverages(days int, periods []int) (MovingAverageResult, error) {
	if len(periods) == 0 {
		periods = DefaultMovingAveragePeriods
	}

	series := s.AssetHistory(days)
	averages, err := indicators.MovingAverages(history.ChartPoints(series), periods)
	if err != nil {
		return MovingAverageResult{}, err
	}
	return MovingAverageResult{Series: series, Averages: averages}, nil
}

// RecordSnapshot stores today's total asset value. The in-memory history is
// always updated; a persistence failure is returned.
func (s *Service) RecordSnapshot(ctx context.Context) (models.AssetSnapshot, error) {
	v := s.Portfolio(ctx)
	snap := s.recorder.Snapshot(s.now(), v.TotalAssetValue)

	if s.repo != nil {
		if err := s.repo.UpsertAssetSnapshot(ctx, snap); err != nil {
			return snap, fmt.Errorf("failed to persist asset snapshot: %w", err)
		}
	}
	if s.pub != nil {
		if err := s.pub.PublishAssetSnapshot(ctx, snap); err != nil {
			s.log.Warn().Err(err).Str("date", snap.Date).Msg("Failed to publish asset snapshot")
		}
	}
	return snap, nil
}

func (s *Service) afterTrade(ctx context.Context, trade models.Trade, state models.PortfolioState) {
	ctx, cancel := s.ioContext(ctx)
	defer cancel()

	if s.repo != nil {
		if err := s.repo.CreateTrade(ctx, trade); err != nil {
			s.log.Error().Err(err).Str("trade_id", trade.ID).Msg("Failed to persist trade")
		}
	}
	s.saveState(ctx, state)

	if s.pub != nil {
		if err := s.pub.PublishTradeExecuted(ctx, trade, state.Version); err != nil {
			s.log.Warn().Err(err).Str("trade_id", trade.ID).Msg("Failed to publish trade")
		}
	}
	s.recordSnapshot(ctx)
}

func (s *Service) saveState(ctx context.Context, state models.PortfolioState) {
	if s.repo == nil {
		return
	}
	applied, err := s.repo.SavePortfolioState(ctx, state)
	if err != nil {
		s.log.Error().Err(err).Int64("version", state.Version).Msg("Failed to persist portfolio")
		return
	}
	if !applied {
		s.log.Debug().Int64("version", state.Version).Msg("Skipped stale portfolio write")
	}
}

func (s *Service) recordSnapshot(ctx context.Context) {
	if _, err := s.RecordSnapshot(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to record asset snapshot")
	}
}

func (s *Service) lookupPrices(ctx context.Context, tickers []string) map[string]decimal.Decimal {
	if s.prices == nil || len(tickers) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, ioTimeout)
	defer cancel()

	prices, err := s.prices.Prices(ctx, tickers)
	if err != nil {
		s.log.Warn().Err(err).Msg("Price lookup failed, valuing at average price")
		return nil
	}
	return prices
}

// ioContext detaches post-commit I/O from the caller's cancellation so a
// disconnected client does not leave storage behind the engine.
func (s *Service) ioContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), ioTimeout)
}
