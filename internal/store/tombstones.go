package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh-api/internal/model"
)

// InsertTombstone records a deletion for pull propagation.
func InsertTombstone(ctx context.Context, q Querier, ts *model.Tombstone) error {
	_, err := q.Exec(ctx, `
		INSERT INTO tombstones (id, entity_type, entity_id, organization_id, deleted_by,
			deleted_from_device, vector_clock, entity_snapshot, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ts.ID, string(ts.EntityType), ts.EntityID, ts.Organization, ts.DeletedBy,
		ts.DeletedFromDevice, ts.VectorClock.Copy(), snapshotOrEmpty(ts.EntitySnapshot),
		ts.CreatedAt, ts.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert tombstone: %w", err)
	}
	return nil
}

// ListTombstonesSince returns unexpired tombstones created after the
// cutoff from devices other than the excluded one, oldest first.
func ListTombstonesSince(ctx context.Context, q Querier, org uuid.UUID, since time.Time, excludeDevice uuid.UUID, limit int) ([]*model.Tombstone, error) {
	rows, err := q.Query(ctx, `
		SELECT id, entity_type, entity_id, organization_id, deleted_by,
			deleted_from_device, vector_clock, entity_snapshot, created_at, expires_at
		FROM tombstones
		WHERE organization_id = $1 AND created_at > $2 AND expires_at > now()
		  AND deleted_from_device IS DISTINCT FROM $3
		ORDER BY created_at ASC
		LIMIT $4`, org, since, excludeDevice, limit)
	if err != nil {
		return nil, fmt.Errorf("list tombstones since: %w", err)
	}
	defer rows.Close()

	var out []*model.Tombstone
	for rows.Next() {
		var ts model.Tombstone
		var entityType string
		if err := rows.Scan(&ts.ID, &entityType, &ts.EntityID, &ts.Organization, &ts.DeletedBy,
			&ts.DeletedFromDevice, &ts.VectorClock, &ts.EntitySnapshot, &ts.CreatedAt, &ts.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan tombstone: %w", err)
		}
		ts.EntityType = model.EntityType(entityType)
		out = append(out, &ts)
	}
	return out, rows.Err()
}

// DeleteExpiredTombstones removes rows past their expiry and reports
// how many were dropped.
func DeleteExpiredTombstones(ctx context.Context, q Querier, now time.Time) (int64, error) {
	tag, err := q.Exec(ctx, `DELETE FROM tombstones WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired tombstones: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountExpiredTombstones is the dry-run counterpart of
// DeleteExpiredTombstones.
func CountExpiredTombstones(ctx context.Context, q Querier, now time.Time) (int64, error) {
	var n int64
	if err := q.QueryRow(ctx, `SELECT count(*) FROM tombstones WHERE expires_at < $1`, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expired tombstones: %w", err)
	}
	return n, nil
}

func snapshotOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
