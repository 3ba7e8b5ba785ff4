package store

import (
	"context"
	"fmt"
	"time"

	"github.com/taskmesh/taskmesh-api/internal/model"
)

// InsertSyncLog writes the log row with whatever state it carries;
// an in-flight row has NULL status and completed_at, a failed row
// written after rollback arrives already complete.
func InsertSyncLog(ctx context.Context, q Querier, l *model.SyncLog) error {
	_, err := q.Exec(ctx, `
		INSERT INTO sync_logs (id, user_id, device_id, sync_type, entities_pushed,
			entities_pulled, conflicts_detected, conflicts_resolved, duration_ms,
			status, error_message, metadata, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		l.ID, l.User, l.Device, string(l.SyncType), l.EntitiesPushed,
		l.EntitiesPulled, l.ConflictsDetected, l.ConflictsResolved, l.DurationMs,
		nullIfEmpty(string(l.Status)), l.ErrorMessage, snapshotOrEmpty(l.Metadata),
		l.CreatedAt, l.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sync log: %w", err)
	}
	return nil
}

// CompleteSyncLog stamps counters and terminal state on an open row.
func CompleteSyncLog(ctx context.Context, q Querier, l *model.SyncLog) error {
	_, err := q.Exec(ctx, `
		UPDATE sync_logs SET entities_pushed = $2, entities_pulled = $3,
			conflicts_detected = $4, conflicts_resolved = $5, duration_ms = $6,
			status = $7, error_message = $8, metadata = $9, completed_at = $10
		WHERE id = $1`,
		l.ID, l.EntitiesPushed, l.EntitiesPulled, l.ConflictsDetected,
		l.ConflictsResolved, l.DurationMs, nullIfEmpty(string(l.Status)),
		l.ErrorMessage, snapshotOrEmpty(l.Metadata), l.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("complete sync log: %w", err)
	}
	return nil
}

// DeleteSyncLogsBefore removes audit rows older than the cutoff and
// reports how many were dropped.
func DeleteSyncLogsBefore(ctx context.Context, q Querier, cutoff time.Time) (int64, error) {
	tag, err := q.Exec(ctx, `DELETE FROM sync_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old sync logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountSyncLogsBefore is the dry-run counterpart of
// DeleteSyncLogsBefore.
func CountSyncLogsBefore(ctx context.Context, q Querier, cutoff time.Time) (int64, error) {
	var n int64
	if err := q.QueryRow(ctx, `SELECT count(*) FROM sync_logs WHERE created_at < $1`, cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("count old sync logs: %w", err)
	}
	return n, nil
}

// SyncMetrics aggregates sync log rows over a window.
type SyncMetrics struct {
	WindowStart       time.Time
	TotalSyncs        int64
	Successful        int64
	Failed            int64
	AvgDurationMs     float64
	ConflictsDetected int64
	ConflictsResolved int64
	Pushes            int64
	Pulls             int64
}

// AggregateSyncMetrics computes the rollup since the given instant.
// The average duration counts successful syncs only.
func AggregateSyncMetrics(ctx context.Context, q Querier, since time.Time) (*SyncMetrics, error) {
	m := &SyncMetrics{WindowStart: since}
	err := q.QueryRow(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE status = 'success'),
			count(*) FILTER (WHERE status = 'failed'),
			COALESCE(avg(duration_ms) FILTER (WHERE status = 'success'), 0),
			COALESCE(sum(conflicts_detected), 0),
			COALESCE(sum(conflicts_resolved), 0),
			count(*) FILTER (WHERE sync_type = 'push'),
			count(*) FILTER (WHERE sync_type = 'pull')
		FROM sync_logs
		WHERE created_at >= $1`, since).
		Scan(&m.TotalSyncs, &m.Successful, &m.Failed, &m.AvgDurationMs,
			&m.ConflictsDetected, &m.ConflictsResolved, &m.Pushes, &m.Pulls)
	if err != nil {
		return nil, fmt.Errorf("aggregate sync metrics: %w", err)
	}
	return m, nil
}
