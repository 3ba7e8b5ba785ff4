// Package jobs holds the background maintenance work the server runs
// on a ticker and taskmeshctl runs on demand: expired-tombstone and
// stale-sync-log cleanup plus the daily sync metrics rollup.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/taskmesh/taskmesh-api/internal/store"
)

// Runner executes maintenance against the shared pool.
type Runner struct {
	DB *pgxpool.Pool

	// SyncLogRetention bounds how long sync logs are kept. Zero means
	// the 30-day default.
	SyncLogRetention time.Duration
}

const defaultSyncLogRetention = 30 * 24 * time.Hour

func (r *Runner) syncLogCutoff(now time.Time) time.Time {
	ret := r.SyncLogRetention
	if ret <= 0 {
		ret = defaultSyncLogRetention
	}
	return now.Add(-ret)
}

// retryPolicy covers transient database hiccups. Three tries, short
// waits; a cleanup that keeps failing waits for the next tick instead.
func retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, 2), ctx)
}

// CleanupExpiredTombstones deletes tombstones past their expiry and
// returns the count removed.
func (r *Runner) CleanupExpiredTombstones(ctx context.Context) (int64, error) {
	var removed int64
	op := func() error {
		n, err := store.DeleteExpiredTombstones(ctx, r.DB, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("delete expired tombstones: %w", err)
		}
		removed = n
		return nil
	}
	if err := backoff.Retry(op, retryPolicy(ctx)); err != nil {
		return 0, err
	}
	log.Ctx(ctx).Info().Int64("removed", removed).Msg("expired tombstones cleaned")
	return removed, nil
}

// CleanupOldSyncLogs deletes sync logs older than the retention window
// and returns the count removed.
func (r *Runner) CleanupOldSyncLogs(ctx context.Context) (int64, error) {
	cutoff := r.syncLogCutoff(time.Now().UTC())
	var removed int64
	op := func() error {
		n, err := store.DeleteSyncLogsBefore(ctx, r.DB, cutoff)
		if err != nil {
			return fmt.Errorf("delete old sync logs: %w", err)
		}
		removed = n
		return nil
	}
	if err := backoff.Retry(op, retryPolicy(ctx)); err != nil {
		return 0, err
	}
	log.Ctx(ctx).Info().
		Int64("removed", removed).
		Time("cutoff", cutoff).
		Msg("old sync logs cleaned")
	return removed, nil
}

// PendingCleanup reports how many rows the two cleanups would remove,
// without deleting anything. Backs taskmeshctl cleanup --dry-run.
func (r *Runner) PendingCleanup(ctx context.Context) (tombstones, syncLogs int64, err error) {
	tombstones, err = store.CountExpiredTombstones(ctx, r.DB, time.Now().UTC())
	if err != nil {
		return 0, 0, fmt.Errorf("count expired tombstones: %w", err)
	}
	syncLogs, err = store.CountSyncLogsBefore(ctx, r.DB, r.syncLogCutoff(time.Now().UTC()))
	if err != nil {
		return 0, 0, fmt.Errorf("count old sync logs: %w", err)
	}
	return tombstones, syncLogs, nil
}
