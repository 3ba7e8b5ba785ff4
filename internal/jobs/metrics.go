package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taskmesh/taskmesh-api/internal/store"
)

// GenerateSyncMetrics aggregates the last 24 hours of sync logs and
// logs the rollup as one structured event.
func (r *Runner) GenerateSyncMetrics(ctx context.Context) (*store.SyncMetrics, error) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	m, err := store.AggregateSyncMetrics(ctx, r.DB, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate sync metrics: %w", err)
	}

	log.Ctx(ctx).Info().
		Time("windowStart", m.WindowStart).
		Int64("totalSyncs", m.TotalSyncs).
		Int64("successful", m.Successful).
		Int64("failed", m.Failed).
		Float64("avgDurationMs", m.AvgDurationMs).
		Int64("conflictsDetected", m.ConflictsDetected).
		Int64("conflictsResolved", m.ConflictsResolved).
		Int64("pushes", m.Pushes).
		Int64("pulls", m.Pulls).
		Msg("sync metrics")
	return m, nil
}
