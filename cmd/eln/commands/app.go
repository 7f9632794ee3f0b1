package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/eln-backtest/internal/backtest"
	"github.com/wonny/eln-backtest/internal/contracts"
	"github.com/wonny/eln-backtest/internal/metrics"
	"github.com/wonny/eln-backtest/internal/pricedata"
	"github.com/wonny/eln-backtest/pkg/config"
	"github.com/wonny/eln-backtest/pkg/database"
	"github.com/wonny/eln-backtest/pkg/logger"
	"github.com/wonny/eln-backtest/pkg/redis"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB // nil when DATABASE_URL is not set
	redis   *redis.Client
	cache   *redis.Cache
	metrics *metrics.Recorder // nil unless requested
	source  contracts.PriceSource
	runs    *backtest.RunRepository // nil without a database
	engine  *backtest.Engine
	runner  *backtest.Runner
}

// appOptions selects the optional parts of the wiring
type appOptions struct {
	metrics  bool
	cacheTTL time.Duration // overrides CACHE_TTL when > 0
}

// newApp loads config and connects the backing services.
// ⭐ SSOT: 의존성 조립은 여기서만
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if priceDir != "" {
		cfg.PriceDir = priceDir
	}
	if opts.cacheTTL > 0 {
		cfg.Backtest.CacheTTL = opts.cacheTTL
	}

	// 2. Initialize logger
	log := logger.New(cfg)
	a := &app{cfg: cfg, log: log}

	// 3. Connect to database (optional for CSV input)
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			if cfg.PriceSource == config.PriceSourcePostgres {
				return nil, fmt.Errorf("connect to database: %w", err)
			}
			log.WithError(err).Warn("Database unavailable, run history disabled")
		} else {
			a.db = db
			a.runs = backtest.NewRunRepository(db.Pool)
			if err := a.runs.EnsureSchema(ctx); err != nil {
				log.WithError(err).Warn("Failed to ensure run history schema")
			}
		}
	}

	// 4. Connect to Redis (optional)
	a.redis = redis.Disabled()
	if cfg.Redis.Enabled {
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, result cache disabled")
		} else {
			a.redis = client
		}
	}
	a.cache = redis.NewCache(a.redis, "eln")

	// 5. Price source
	switch cfg.PriceSource {
	case config.PriceSourcePostgres:
		a.source = pricedata.NewPriceRepository(a.db.Pool)
	default:
		a.source = pricedata.NewCSVSource(cfg.PriceDir)
	}

	// 6. Engine and runner
	var engineOpts []backtest.Option
	if a.redis.Enabled() {
		engineOpts = append(engineOpts, backtest.WithCache(a.cache, cfg.Backtest.CacheTTL))
	}
	if a.runs != nil {
		engineOpts = append(engineOpts, backtest.WithRunStore(a.runs))
	}
	if opts.metrics && cfg.MetricsEnabled {
		a.metrics = metrics.New()
		engineOpts = append(engineOpts, backtest.WithObserver(a.metrics))
	}

	a.engine = backtest.NewEngine(a.source, log.WithField("module", "backtest"), engineOpts...)
	a.runner = backtest.NewRunner(a.engine, backtest.RunnerConfig{Workers: cfg.Backtest.Workers}, log)

	log.WithFields(map[string]interface{}{
		"price_source": cfg.PriceSource,
		"database":     a.db != nil,
		"redis":        a.redis.Enabled(),
		"workers":      cfg.Backtest.Workers,
	}).Debug("Dependencies initialized")

	return a, nil
}

// defaultTerms returns the note terms configured through ELN_* variables
func (a *app) defaultTerms() backtest.Config {
	return backtest.Config{
		KnockOutPct:   a.cfg.Backtest.KnockOutPct,
		StrikePct:     a.cfg.Backtest.StrikePct,
		KnockInPct:    a.cfg.Backtest.KnockInPct,
		HorizonMonths: a.cfg.Backtest.HorizonMonths,
	}
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.db.Close()
}
