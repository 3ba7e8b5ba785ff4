package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskmesh/taskmesh-api/internal/model"
)

const conflictColumns = `id, entity_type, entity_id, user_id, device_id, local_version,
	server_version, local_vector_clock, server_vector_clock, conflict_reason,
	resolution_strategy, resolved_version, resolved_by, created_at, resolved_at`

func scanConflict(row pgx.Row) (*model.Conflict, error) {
	var c model.Conflict
	var entityType string
	var strategy *string
	err := row.Scan(
		&c.ID, &entityType, &c.EntityID, &c.User, &c.Device, &c.LocalVersion,
		&c.ServerVersion, &c.LocalVectorClock, &c.ServerVectorClock, &c.ConflictReason,
		&strategy, &c.ResolvedVersion, &c.ResolvedBy, &c.CreatedAt, &c.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	c.EntityType = model.EntityType(entityType)
	if strategy != nil {
		s := model.ResolutionStrategy(*strategy)
		c.Strategy = &s
	}
	return &c, nil
}

// InsertConflict persists a detected concurrent modification, resolved
// or not.
func InsertConflict(ctx context.Context, q Querier, c *model.Conflict) error {
	var strategy *string
	if c.Strategy != nil {
		s := string(*c.Strategy)
		strategy = &s
	}
	_, err := q.Exec(ctx, `
		INSERT INTO conflicts (id, entity_type, entity_id, user_id, device_id, local_version,
			server_version, local_vector_clock, server_vector_clock, conflict_reason,
			resolution_strategy, resolved_version, resolved_by, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, string(c.EntityType), c.EntityID, c.User, c.Device,
		snapshotOrEmpty(c.LocalVersion), snapshotOrEmpty(c.ServerVersion),
		c.LocalVectorClock.Copy(), c.ServerVectorClock.Copy(), c.ConflictReason,
		strategy, c.ResolvedVersion, c.ResolvedBy, c.CreatedAt, c.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conflict: %w", err)
	}
	return nil
}

// ListUnresolvedConflicts returns the caller's open conflicts, newest
// first.
func ListUnresolvedConflicts(ctx context.Context, q Querier, user uuid.UUID, limit int) ([]*model.Conflict, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.Query(ctx, `SELECT `+conflictColumns+` FROM conflicts
		WHERE user_id = $1 AND resolved_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2`, user, limit)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var out []*model.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetUnresolvedConflict fetches one open conflict in the caller's
// scope, locked for the resolution write. Returns (nil, nil) when the
// id is absent, resolved, or belongs to another user.
func GetUnresolvedConflict(ctx context.Context, q Querier, user, id uuid.UUID) (*model.Conflict, error) {
	row := q.QueryRow(ctx, `SELECT `+conflictColumns+` FROM conflicts
		WHERE id = $1 AND user_id = $2 AND resolved_at IS NULL
		FOR UPDATE`, id, user)
	c, err := scanConflict(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conflict: %w", err)
	}
	return c, nil
}

// MarkConflictResolved stamps strategy, resolved payload, resolver,
// and instant on an open conflict.
func MarkConflictResolved(ctx context.Context, q Querier, id uuid.UUID, strategy model.ResolutionStrategy, resolved map[string]any, by uuid.UUID, at time.Time) error {
	tag, err := q.Exec(ctx, `
		UPDATE conflicts SET resolution_strategy = $2, resolved_version = $3,
			resolved_by = $4, resolved_at = $5
		WHERE id = $1 AND resolved_at IS NULL`,
		id, string(strategy), snapshotOrEmpty(resolved), by, at,
	)
	if err != nil {
		return fmt.Errorf("mark conflict resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark conflict resolved %s: no open row", id)
	}
	return nil
}
