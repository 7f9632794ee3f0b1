package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/eln-backtest/pkg/logger"
	"github.com/wonny/eln-backtest/pkg/redis"
)

// CachePurger deletes cached entries by pattern
type CachePurger interface {
	Purge(ctx context.Context, pattern string) (int, error)
}

// CacheCleanupJob drops every cached backtest result once a week
type CacheCleanupJob struct {
	cache  CachePurger
	logger *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(cache CachePurger, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache:  cache,
		logger: log,
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the cron schedule (Sunday 03:00)
func (j *CacheCleanupJob) Schedule() string {
	return "0 0 3 * * 0"
}

// Run executes the cache cleanup
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled cache cleanup")

	count, err := j.cache.Purge(ctx, redis.BacktestPattern)
	if err != nil {
		return fmt.Errorf("purge results: %w", err)
	}

	if count > 0 {
		j.logger.WithField("removed", count).Info("Cache cleanup completed")
	}

	return nil
}
