package jobs

import (
	"context"
	"time"

	"github.com/wonny/exitlab/internal/realtime/cache"
	"github.com/wonny/exitlab/pkg/logger"
)

// CacheCleanupJob drops quotes of symbols the feed stopped sending
type CacheCleanupJob struct {
	cache  *cache.PriceCache
	maxAge time.Duration
	logger *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(priceCache *cache.PriceCache, maxAge time.Duration, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache:  priceCache,
		maxAge: maxAge,
		logger: log,
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the cron schedule (every 10 minutes)
func (j *CacheCleanupJob) Schedule() string {
	return "*/10 * * * *"
}

// Run executes the cache cleanup
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled cache cleanup")

	count := j.cache.CleanStale(j.maxAge)

	if count > 0 {
		j.logger.WithField("removed", count).Info("Cache cleanup completed")
	}

	return nil
}
