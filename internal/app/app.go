// Package app wires the stores, scrapers and services shared by the augur
// binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/cache"
	"github.com/fortuna/augur/internal/config"
	"github.com/fortuna/augur/internal/ingest"
	"github.com/fortuna/augur/internal/ingest/fetch"
	"github.com/fortuna/augur/internal/model"
	"github.com/fortuna/augur/internal/notify"
	"github.com/fortuna/augur/internal/publisher"
	"github.com/fortuna/augur/internal/reconciliation"
	"github.com/fortuna/augur/internal/service"
	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
	"github.com/fortuna/augur/internal/store/dataset"
	"github.com/fortuna/augur/internal/store/repository"
)

// Options controls optional parts of the wiring.
type Options struct {
	// RequireRedis fails Build when Redis is unreachable instead of running
	// without the cache and streams.
	RequireRedis bool
	// RedisAttempts is the number of connection attempts.
	RedisAttempts int
	RetryDelay    time.Duration
	// Sinks receive predictions and settlements besides the Redis streams.
	Sinks []publisher.Sink
}

// App holds the long-lived components of a process.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB      *store.Database
	Cache   *cache.RedisCache
	Fetch   *fetch.Client
	Dataset *dataset.Store
	Models  *model.Registry

	History  *repository.HistoryRepository
	Fights   *repository.FightRepository
	Profiles *repository.ProfileRepository
	Odds     *repository.OddsRepository
	Events   *repository.EventRepository

	Collector   *ingest.Collector
	Predictions *service.PredictionService
	Settlement  *service.SettlementService
	EventReads  *service.EventService
	Publisher   publisher.Fanout
	Telegram    *notify.Telegram
}

// Build connects the stores and constructs every service. Close releases
// what Build opened.
func Build(ctx context.Context, cfg *config.Config, opts Options, logger *zap.Logger) (*App, error) {
	if opts.RedisAttempts <= 0 {
		opts.RedisAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	a := &App{Config: cfg, Logger: logger}

	db, err := store.NewDatabase(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.DB = db
	logger.Info("✓ Connected to database")

	if err := db.RunMigrations(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("✓ Database migrations applied")

	a.Cache, err = connectRedis(ctx, cfg.RedisURL, opts, logger)
	if err != nil {
		if opts.RequireRedis {
			a.Close()
			return nil, err
		}
		logger.Warn("⚠ running without Redis", zap.Error(err))
	}

	a.Dataset, err = dataset.Open(cfg.DatasetPath, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open dataset: %w", err)
	}

	fetchOpts := fetch.Options{
		RatePerSec: cfg.ScrapeRatePerSec,
		Burst:      cfg.ScrapeBurst,
		Headless:   cfg.Headless,
		CacheTTL:   cfg.PageCacheTTL,
		Logger:     logger,
	}
	if a.Cache != nil {
		fetchOpts.Cache = a.Cache
	}
	a.Fetch = fetch.NewClient(fetchOpts)

	a.History = repository.NewHistoryRepository(db)
	a.Fights = repository.NewFightRepository(db)
	a.Profiles = repository.NewProfileRepository(db)
	a.Odds = repository.NewOddsRepository(db)
	a.Events = repository.NewEventRepository(db)

	a.Collector = ingest.NewCollector(cfg, a.Fetch, ingest.Stores{
		History:  a.History,
		Fights:   a.Fights,
		Profiles: a.Profiles,
		Quotes:   a.Odds,
	}, logger)

	a.Models = model.NewRegistry(logger)
	loaded := 0
	for _, s := range sport.All {
		if sc := cfg.For(s); sc.Enabled {
			loaded += a.Models.LoadAll(s, sc.Models)
		}
	}
	logger.Info("✓ Models loaded", zap.Int("models", loaded))

	a.Telegram, err = notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		logger.Warn("⚠ telegram disabled", zap.Error(err))
	}

	if a.Cache != nil {
		a.Publisher = append(a.Publisher, publisher.NewRedisStreamPublisher(a.Cache.Client()))
	}
	a.Publisher = append(a.Publisher, opts.Sinks...)

	deps := service.PredictionDeps{
		Rows:      service.NewRowBuilder(a.History, a.Fights, a.Profiles),
		Quotes:    a.Odds,
		Events:    a.Events,
		Models:    a.Models,
		Joiner:    reconciliation.NewJoiner(reconciliation.NewNameMatcher(nil), logger),
		Publisher: a.Publisher,
		Notifier:  a.Telegram,
		Dataset:   a.Dataset,
	}
	var cached service.CachedPredictions
	if a.Cache != nil {
		deps.Cache = a.Cache
		cached = a.Cache
	}

	a.Predictions, err = service.NewPredictionService(cfg, deps, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Settlement = service.NewSettlementService(cfg, a.Events, a.History, a.Fights, a.Publisher, logger)
	a.EventReads = service.NewEventService(a.Events, a.History, cached, logger)

	return a, nil
}

// Close releases every connection Build opened.
func (a *App) Close() {
	if a.Fetch != nil {
		a.Fetch.Close()
	}
	if a.Dataset != nil {
		if err := a.Dataset.Close(); err != nil {
			a.Logger.Warn("dataset close", zap.Error(err))
		}
	}
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func connectRedis(ctx context.Context, url string, opts Options, logger *zap.Logger) (*cache.RedisCache, error) {
	var err error
	for i := 1; i <= opts.RedisAttempts; i++ {
		var rc *cache.RedisCache
		rc, err = cache.NewRedisCache(ctx, url)
		if err == nil {
			logger.Info("✓ Connected to Redis")
			return rc, nil
		}
		if i == opts.RedisAttempts {
			break
		}
		logger.Warn("Redis connection attempt failed",
			zap.Int("attempt", i),
			zap.Int("max_attempts", opts.RedisAttempts),
			zap.Duration("retry_in", opts.RetryDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, errors.Join(err, ctx.Err())
		case <-time.After(opts.RetryDelay):
		}
	}
	return nil, fmt.Errorf("connect redis after %d attempts: %w", opts.RedisAttempts, err)
}
