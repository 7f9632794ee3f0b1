package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eln-backtest/internal/contracts"
	"github.com/wonny/eln-backtest/internal/series"
	"github.com/wonny/eln-backtest/pkg/logger"
)

type fakeSource struct {
	mu     sync.Mutex
	prices map[string][]contracts.RawPrice
	calls  int
}

func (f *fakeSource) LoadPrices(ctx context.Context, ticker string) ([]contracts.RawPrice, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, ok := f.prices[ticker]
	if !ok {
		return nil, contracts.ErrUnknownTicker
	}
	return raw, nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = b
	c.sets++
	return nil
}

type fakeStore struct {
	mu   sync.Mutex
	runs []*RunRecord
	err  error
}

func (s *fakeStore) SaveRun(_ context.Context, run *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.runs = append(s.runs, run)
	return nil
}

type fakeObserver struct {
	mu       sync.Mutex
	runs     int
	cached   int
	failures []string
}

func (o *fakeObserver) ObserveRun(_ string, cached bool, _ time.Duration, _ Stats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
	if cached {
		o.cached++
	}
}

func (o *fakeObserver) ObserveFailure(_ string, kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, kind)
}

// rawOf renders closes as raw samples on consecutive calendar days
func rawOf(closes []float64) []contracts.RawPrice {
	raw := make([]contracts.RawPrice, len(closes))
	for i, c := range closes {
		raw[i] = contracts.RawPrice{
			Date:  seriesStart.AddDate(0, 0, i),
			Close: strconv.FormatFloat(c, 'f', -1, 64),
		}
	}
	return raw
}

func rising(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return closes
}

func TestEngine_Run(t *testing.T) {
	src := &fakeSource{prices: map[string][]contracts.RawPrice{"AAPL": rawOf(rising(30))}}
	store := &fakeStore{}
	obs := &fakeObserver{}
	engine := NewEngine(src, logger.Nop(), WithRunStore(store), WithObserver(obs))

	report, err := engine.Run(context.Background(), " aapl ", termsFor(5, 65, 80))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", report.Ticker)
	assert.False(t, report.Cached)
	assert.Equal(t, seriesStart, report.FirstDate)
	assert.Equal(t, seriesStart.AddDate(0, 0, 29), report.LastDate)
	assert.Equal(t, 129.0, report.Levels.ReferencePrice)
	require.NotNil(t, report.Result)
	assert.Len(t, report.Result.Rows, 25)
	assert.Equal(t, 100.0, report.Result.Stats.SafetyProbability)
	assert.Equal(t, 100.0, report.Result.Stats.PositiveReturnProbability)

	require.Len(t, store.runs, 1)
	assert.Equal(t, report.RunID, store.runs[0].RunID)
	assert.Equal(t, report.SeriesHash, store.runs[0].SeriesHash)
	assert.Equal(t, 5, store.runs[0].HorizonDays)
	assert.Equal(t, 1, obs.runs)
	assert.Empty(t, obs.failures)
}

func TestEngine_Run_UnknownTicker(t *testing.T) {
	obs := &fakeObserver{}
	engine := NewEngine(&fakeSource{}, logger.Nop(), WithObserver(obs))

	_, err := engine.Run(context.Background(), "NOPE", termsFor(5, 65, 80))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrUnknownTicker))
	assert.Equal(t, "unknown_ticker", ErrorKind(err))
	assert.Equal(t, []string{"unknown_ticker"}, obs.failures)
}

func TestEngine_Run_InvalidConfigSkipsLoading(t *testing.T) {
	src := &fakeSource{prices: map[string][]contracts.RawPrice{"AAPL": rawOf(rising(30))}}
	engine := NewEngine(src, logger.Nop())

	_, err := engine.Run(context.Background(), "AAPL", Config{KnockOutPct: 100, StrikePct: 80, KnockInPct: 0, HorizonMonths: 6})

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "knock_in_pct", cfgErr.Field)
	assert.Equal(t, 0, src.calls)
}

func TestEngine_Run_TypedErrorsSurviveWrapping(t *testing.T) {
	src := &fakeSource{prices: map[string][]contracts.RawPrice{
		"SHORT": rawOf(rising(50)),
		"JUNK":  {{Date: seriesStart, Close: "n/a"}, {Date: seriesStart.AddDate(0, 0, 1), Close: ""}},
	}}
	engine := NewEngine(src, logger.Nop())

	_, err := engine.Run(context.Background(), "SHORT", termsFor(200, 65, 80))
	var histErr *InsufficientHistoryError
	require.ErrorAs(t, err, &histErr)
	assert.Equal(t, 200, histErr.HorizonDays)
	assert.Equal(t, 50, histErr.Available)
	assert.Equal(t, "insufficient_history", ErrorKind(err))

	_, err = engine.Run(context.Background(), "JUNK", termsFor(5, 65, 80))
	var dataErr *series.InsufficientDataError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, "insufficient_data", ErrorKind(err))
}

func TestEngine_Run_Cache(t *testing.T) {
	src := &fakeSource{prices: map[string][]contracts.RawPrice{"AAPL": rawOf(randomCloses(7, 120))}}
	cache := newFakeCache()
	store := &fakeStore{}
	obs := &fakeObserver{}
	engine := NewEngine(src, logger.Nop(), WithCache(cache, time.Hour), WithRunStore(store), WithObserver(obs))
	cfg := termsFor(21, 80, 90)

	first, err := engine.Run(context.Background(), "AAPL", cfg)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, cache.sets)

	second, err := engine.Run(context.Background(), "AAPL", cfg)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Result.Stats, second.Result.Stats)
	assert.Len(t, second.Result.Rows, len(first.Result.Rows))

	// cached runs are not persisted again
	assert.Len(t, store.runs, 1)
	assert.Equal(t, 2, obs.runs)
	assert.Equal(t, 1, obs.cached)

	// different terms miss the cache
	third, err := engine.Run(context.Background(), "AAPL", termsFor(21, 70, 90))
	require.NoError(t, err)
	assert.False(t, third.Cached)
}

func TestEngine_Run_StoreFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{prices: map[string][]contracts.RawPrice{"AAPL": rawOf(rising(30))}}
	engine := NewEngine(src, logger.Nop(), WithRunStore(&fakeStore{err: errors.New("db down")}))

	report, err := engine.Run(context.Background(), "AAPL", termsFor(5, 65, 80))
	require.NoError(t, err)
	assert.NotNil(t, report.Result)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&series.InsufficientDataError{Reason: "x"}, "insufficient_data"},
		{&InsufficientHistoryError{HorizonDays: 5, Available: 3}, "insufficient_history"},
		{&EmptyResultSetError{}, "empty_result"},
		{&ConfigError{Field: "strike_pct", Message: "must be > 0"}, "invalid_config"},
		{contracts.ErrUnknownTicker, "unknown_ticker"},
		{context.Canceled, "canceled"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), "%v", tt.err)
	}
}

func TestParseTickers(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "005930.KS", "MSFT"}, ParseTickers(" aapl, 005930.ks ,,AAPL,msft"))
	assert.Empty(t, ParseTickers(" , "))
}

func TestCacheKey(t *testing.T) {
	cfg := Config{KnockOutPct: 100, StrikePct: 80, KnockInPct: 65, HorizonMonths: 6}
	assert.Equal(t, "backtest:abc:100:80:65:6", CacheKey("abc", cfg))
	cfg.HorizonMonths = 6.5
	assert.Equal(t, "backtest:abc:100:80:65:6.5", CacheKey("abc", cfg))
}

func randomCloses(seed int64, n int) []float64 {
	return randomWalk(rand.New(rand.NewSource(seed)), n)
}

func TestEngine_Levels(t *testing.T) {
	src := &fakeSource{prices: map[string][]contracts.RawPrice{"AAPL": rawOf(rising(30))}}
	engine := NewEngine(src, logger.Nop())

	levels, err := engine.Levels(context.Background(), "aapl", termsFor(5, 65, 80))
	require.NoError(t, err)
	assert.Equal(t, 129.0, levels.ReferencePrice)
	assert.InDelta(t, 129*0.65, levels.KnockIn, 1e-9)
	assert.InDelta(t, 129*0.80, levels.Strike, 1e-9)

	_, err = engine.Levels(context.Background(), "NOPE", termsFor(5, 65, 80))
	assert.Equal(t, "unknown_ticker", ErrorKind(err))
}
