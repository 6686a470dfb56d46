package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/trogers1052/papertrade/internal/api"
	"github.com/trogers1052/papertrade/internal/config"
	"github.com/trogers1052/papertrade/internal/database"
	"github.com/trogers1052/papertrade/internal/history"
	"github.com/trogers1052/papertrade/internal/kafka"
	"github.com/trogers1052/papertrade/internal/ledger"
	"github.com/trogers1052/papertrade/internal/logger"
	"github.com/trogers1052/papertrade/internal/portfolio"
	"github.com/trogers1052/papertrade/internal/pricefeed"
	"github.com/trogers1052/papertrade/internal/scheduler"
	"github.com/trogers1052/papertrade/internal/trading"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})
	logger.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	opts, err := cfg.Portfolio.Options()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid portfolio configuration")
	}
	loc, err := cfg.Portfolio.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid portfolio configuration")
	}

	log.Info().
		Str("initial_capital", opts.InitialCapital.String()).
		Str("currency", opts.Currency).
		Str("timezone", loc.String()).
		Msg("Starting paper trading service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Price cache
	var prices pricefeed.Cache = pricefeed.NewMemory()
	if cfg.Redis.Enabled {
		cache, err := pricefeed.NewRedisCache(ctx, pricefeed.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer cache.Close()
		prices = cache
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis price cache")
	}

	svcCfg := trading.Config{
		Executor: portfolio.NewExecutor(portfolio.NewStore(opts), ledger.New()),
		Recorder: history.NewRecorder(loc),
		Prices:   prices,
		Logger:   log,
	}

	// Persistence
	if cfg.Database.Enabled {
		db, err := database.New(cfg.Database.ConnectionString())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		svcCfg.Repo = db
	}

	// Kafka
	var consumer *kafka.PriceConsumer
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer producer.Close()
		svcCfg.Publisher = producer

		consumer = kafka.NewPriceConsumer(cfg.Kafka.Brokers, cfg.Kafka.PriceTopic, cfg.Kafka.GroupID, prices, log)
	}

	svc := trading.NewService(svcCfg)
	if err := svc.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to restore portfolio")
	}

	consumerDone := make(chan struct{})
	if consumer != nil {
		go func() {
			defer close(consumerDone)
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("Price consumer stopped")
			}
		}()
	} else {
		close(consumerDone)
	}

	// Scheduler
	sched := scheduler.New(log, loc)
	if err := sched.AddJob(cfg.Snapshot.Schedule, scheduler.NewSnapshotJob(log, svc, 30*time.Second)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()

	// HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      api.SetupRoutes(api.NewHandler(svc, log), log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Str("addr", srv.Addr).Msg("Server started successfully")

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdown(log, srv, sched, consumerDone)
	log.Info().Msg("Server stopped")
}

func shutdown(log zerolog.Logger, srv *http.Server, sched *scheduler.Scheduler, consumerDone <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	sched.Stop()

	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warn().Msg("Price consumer did not stop in time")
	}
}
