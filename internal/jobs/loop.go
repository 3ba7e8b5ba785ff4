package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Run drives the maintenance cycle on the given interval until the
// context is cancelled. Each cycle's failures are logged, not fatal;
// the next tick retries from scratch.
func (r *Runner) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Ctx(ctx).Info().Dur("interval", interval).Msg("maintenance loop started")
	for {
		select {
		case <-ctx.Done():
			log.Ctx(ctx).Info().Msg("maintenance loop stopped")
			return
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

func (r *Runner) cycle(ctx context.Context) {
	if _, err := r.CleanupExpiredTombstones(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("tombstone cleanup failed")
	}
	if _, err := r.CleanupOldSyncLogs(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("sync log cleanup failed")
	}
	if _, err := r.GenerateSyncMetrics(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("sync metrics rollup failed")
	}
}
