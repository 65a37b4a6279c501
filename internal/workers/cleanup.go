package workers

import (
	"context"
	"time"

	"reward-giveaway-backend/internal/common/logger"
	"reward-giveaway-backend/internal/concurrency"

	"github.com/rs/zerolog"
)

// CleanupWorker periodically purges aged lock bookkeeping and rate-limit
// entries from the concurrency manager so process-local state stays bounded.
type CleanupWorker struct {
	locks    *concurrency.Manager
	interval time.Duration
	maxAge   time.Duration
	logger   zerolog.Logger
}

func NewCleanupWorker(locks *concurrency.Manager, interval, maxAge time.Duration) *CleanupWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	return &CleanupWorker{
		locks:    locks,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger.With("cleanup"),
	}
}

// Start runs the cleanup loop until the context is cancelled.
func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", w.interval).Msg("Cleanup worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Cleanup worker stopping")
			return
		case <-ticker.C:
			removed := w.locks.CleanupStale(w.maxAge)
			if removed > 0 {
				w.logger.Debug().Int("removed", removed).Msg("Purged stale entries")
			}
		}
	}
}
