// Package store is the persistence layer. Every function takes a
// Querier so the sync engine can run them inside its push transaction
// while handlers and jobs use the pool directly. All task and comment
// access is organization-scoped: a cross-org id simply finds no row.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskmesh/taskmesh-api/internal/vclock"
)

// Querier is satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OrgVectorClock merges the clocks of every live task and comment in
// the organization. Comments count while live even if their parent
// task is soft-deleted; the tombstone carries the task's own clock.
func OrgVectorClock(ctx context.Context, q Querier, org uuid.UUID) (vclock.Clock, error) {
	rows, err := q.Query(ctx, `
		SELECT vector_clock FROM tasks
		WHERE organization_id = $1 AND deleted_at IS NULL
		UNION ALL
		SELECT c.vector_clock FROM comments c
		JOIN tasks t ON t.id = c.task_id
		WHERE t.organization_id = $1 AND c.deleted_at IS NULL`, org)
	if err != nil {
		return nil, fmt.Errorf("query org clocks: %w", err)
	}
	defer rows.Close()

	merged := vclock.Clock{}
	for rows.Next() {
		var c vclock.Clock
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan clock: %w", err)
		}
		merged = merged.Merge(c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate org clocks: %w", err)
	}
	return merged, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
