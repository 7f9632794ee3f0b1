package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/eln-backtest/internal/contracts"
	"github.com/wonny/eln-backtest/internal/series"
	"github.com/wonny/eln-backtest/pkg/logger"
)

// ResultCache stores finished results. pkg/redis.Cache satisfies it.
type ResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// RunStore persists run summaries
type RunStore interface {
	SaveRun(ctx context.Context, run *RunRecord) error
}

// Observer receives run telemetry
type Observer interface {
	ObserveRun(ticker string, cached bool, elapsed time.Duration, stats Stats)
	ObserveFailure(ticker string, kind string)
}

// Engine runs backtests for tickers
// ⭐ SSOT: 백테스팅 실행은 여기서만
type Engine struct {
	source   contracts.PriceSource
	cache    ResultCache
	store    RunStore
	observer Observer
	cacheTTL time.Duration
	logger   *logger.Logger
}

// Option configures optional Engine collaborators
type Option func(*Engine)

// WithCache enables result caching
func WithCache(cache ResultCache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = cache
		e.cacheTTL = ttl
	}
}

// WithRunStore persists a summary of every fresh run
func WithRunStore(store RunStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithObserver reports run telemetry
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// Report is what a ticker run hands to presentation
type Report struct {
	RunID      string         `json:"run_id"`
	Ticker     string         `json:"ticker"`
	SeriesHash string         `json:"series_hash"`
	FirstDate  time.Time      `json:"first_date"`
	LastDate   time.Time      `json:"last_date"`
	Levels     Levels         `json:"levels"`
	Result     *Result        `json:"result"`
	Cached     bool           `json:"cached"`
	Series     *series.Series `json:"-"`
}

// NewEngine creates a new backtest engine
func NewEngine(source contracts.PriceSource, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		logger: log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run loads, prepares and backtests one ticker
func (e *Engine) Run(ctx context.Context, ticker string, cfg Config) (*Report, error) {
	ticker = NormalizeTicker(ticker)
	log := e.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"terms":  cfg.String(),
	})

	if err := cfg.Validate(); err != nil {
		e.fail(ticker, err)
		return nil, err
	}

	start := time.Now()

	raw, err := e.source.LoadPrices(ctx, ticker)
	if err != nil {
		e.fail(ticker, err)
		return nil, fmt.Errorf("load prices for %s: %w", ticker, err)
	}

	s, err := series.Prepare(raw)
	if err != nil {
		e.fail(ticker, err)
		return nil, fmt.Errorf("prepare %s: %w", ticker, err)
	}

	levels, err := LevelsAt(s, cfg)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:      GenerateRunID(),
		Ticker:     ticker,
		SeriesHash: s.Hash(),
		FirstDate:  s.At(0).Date,
		LastDate:   s.Latest().Date,
		Levels:     levels,
		Series:     s,
	}

	key := CacheKey(report.SeriesHash, cfg)
	if e.cache != nil {
		var cached Result
		found, err := e.cache.Get(ctx, key, &cached)
		if err != nil {
			log.WithError(err).Warn("Result cache read failed")
		} else if found {
			report.Result = &cached
			report.Cached = true
			e.observe(ticker, true, time.Since(start), cached.Stats)
			log.Debug("Backtest served from cache")
			return report, nil
		}
	}

	result, err := Simulate(s, cfg)
	if err != nil {
		e.fail(ticker, err)
		return nil, fmt.Errorf("simulate %s: %w", ticker, err)
	}
	report.Result = result

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, result, e.cacheTTL); err != nil {
			log.WithError(err).Warn("Result cache write failed")
		}
	}

	if e.store != nil {
		if err := e.store.SaveRun(ctx, NewRunRecord(report)); err != nil {
			// a missing summary row does not invalidate the result
			log.WithError(err).Warn("Failed to persist run summary")
		}
	}

	elapsed := time.Since(start)
	e.observe(ticker, false, elapsed, result.Stats)

	log.WithFields(map[string]interface{}{
		"run_id":       report.RunID,
		"prices":       s.Len(),
		"horizon_days": result.HorizonDays,
		"periods":      result.Stats.TotalPeriods,
		"safety":       fmt.Sprintf("%.1f%%", result.Stats.SafetyProbability),
		"losses":       result.Stats.LossCount,
		"stuck":        result.Stats.StuckCount,
		"avg_recovery": fmt.Sprintf("%.0f", result.Stats.AverageRecoveryDays),
		"duration_ms":  elapsed.Milliseconds(),
	}).Info("Backtest completed")

	return report, nil
}

// Levels returns the note levels against the latest close of ticker
// without running the simulation.
func (e *Engine) Levels(ctx context.Context, ticker string, cfg Config) (Levels, error) {
	ticker = NormalizeTicker(ticker)
	if err := cfg.Validate(); err != nil {
		return Levels{}, err
	}

	raw, err := e.source.LoadPrices(ctx, ticker)
	if err != nil {
		return Levels{}, fmt.Errorf("load prices for %s: %w", ticker, err)
	}

	s, err := series.Prepare(raw)
	if err != nil {
		return Levels{}, fmt.Errorf("prepare %s: %w", ticker, err)
	}

	return LevelsAt(s, cfg)
}

func (e *Engine) observe(ticker string, cached bool, elapsed time.Duration, stats Stats) {
	if e.observer != nil {
		e.observer.ObserveRun(ticker, cached, elapsed, stats)
	}
}

func (e *Engine) fail(ticker string, err error) {
	if e.observer != nil {
		e.observer.ObserveFailure(ticker, ErrorKind(err))
	}
}

// ErrorKind names the failure class of err for logs, metrics and API codes
func ErrorKind(err error) string {
	var (
		dataErr    *series.InsufficientDataError
		historyErr *InsufficientHistoryError
		emptyErr   *EmptyResultSetError
		cfgErr     *ConfigError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &dataErr):
		return "insufficient_data"
	case errors.As(err, &historyErr):
		return "insufficient_history"
	case errors.As(err, &emptyErr):
		return "empty_result"
	case errors.As(err, &cfgErr):
		return "invalid_config"
	case errors.Is(err, contracts.ErrUnknownTicker):
		return "unknown_ticker"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

// CacheKey addresses a result by series content and terms
func CacheKey(seriesHash string, cfg Config) string {
	return fmt.Sprintf("backtest:%s:%g:%g:%g:%g", seriesHash, cfg.KnockOutPct, cfg.StrikePct, cfg.KnockInPct, cfg.HorizonMonths)
}

// NormalizeTicker trims and upper-cases a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ParseTickers splits a comma separated ticker list, dropping blanks and
// repeats while keeping order.
func ParseTickers(list string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(list, ",") {
		t := NormalizeTicker(part)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// GenerateRunID returns a new random run identifier. It is unique per call,
// so concurrent runs of one ticker under different terms never share it.
func GenerateRunID() string {
	return uuid.New().String()
}
