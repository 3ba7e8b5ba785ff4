package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/taskmesh/taskmesh-api/internal/model"
)

const taskColumns = `id, organization_id, project_id, title, description, status, priority,
	due_date, completed_at, position::text, created_by, assigned_to, tags, custom_fields,
	version, vector_clock, last_modified_by, last_modified_device, checksum,
	created_at, updated_at, deleted_at`

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	var status, priority, position string
	err := row.Scan(
		&t.ID, &t.Organization, &t.Project, &t.Title, &t.Description, &status, &priority,
		&t.DueDate, &t.CompletedAt, &position, &t.CreatedBy, &t.AssignedTo, &t.Tags, &t.CustomFields,
		&t.Version, &t.VectorClock, &t.LastModifiedBy, &t.LastModifiedDevice, &t.Checksum,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = model.Status(status)
	t.Priority = model.Priority(priority)
	pos, err := decimal.NewFromString(position)
	if err != nil {
		return nil, fmt.Errorf("parse position %q: %w", position, err)
	}
	t.Position = pos
	return &t, nil
}

// GetTaskLive fetches a non-deleted task. Returns (nil, nil) when the
// row is absent, soft-deleted, or belongs to another organization.
func GetTaskLive(ctx context.Context, q Querier, org, id uuid.UUID) (*model.Task, error) {
	row := q.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`, id, org)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// GetTaskAny fetches a task including soft-deleted rows. Sync-engine
// only: conflict detection and orphan checks need to see deletions.
func GetTaskAny(ctx context.Context, q Querier, org, id uuid.UUID) (*model.Task, error) {
	row := q.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE id = $1 AND organization_id = $2`, id, org)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task any: %w", err)
	}
	return t, nil
}

// GetTaskAnyForUpdate is GetTaskAny plus a row lock, used during push
// so concurrent pushes on the same task serialize under READ COMMITTED.
func GetTaskAnyForUpdate(ctx context.Context, q Querier, org, id uuid.UUID) (*model.Task, error) {
	row := q.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE id = $1 AND organization_id = $2 FOR UPDATE`, id, org)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task for update: %w", err)
	}
	return t, nil
}

// InsertTask writes a new task row with every sync field the caller
// has assembled.
func InsertTask(ctx context.Context, q Querier, t *model.Task) error {
	_, err := q.Exec(ctx, `
		INSERT INTO tasks (id, organization_id, project_id, title, description, status,
			priority, due_date, completed_at, position, created_by, assigned_to, tags,
			custom_fields, version, vector_clock, last_modified_by, last_modified_device,
			checksum, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		t.ID, t.Organization, t.Project, t.Title, t.Description, string(t.Status),
		string(t.Priority), t.DueDate, t.CompletedAt, t.Position.String(), t.CreatedBy,
		t.AssignedTo, t.Tags, customOrEmpty(t.CustomFields), t.Version, t.VectorClock.Copy(),
		t.LastModifiedBy, t.LastModifiedDevice, t.Checksum, t.CreatedAt, t.UpdatedAt, t.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateTask overwrites all mutable fields of an existing row.
func UpdateTask(ctx context.Context, q Querier, t *model.Task) error {
	tag, err := q.Exec(ctx, `
		UPDATE tasks SET project_id = $3, title = $4, description = $5, status = $6,
			priority = $7, due_date = $8, completed_at = $9, position = $10::numeric,
			assigned_to = $11, tags = $12, custom_fields = $13, version = $14,
			vector_clock = $15, last_modified_by = $16, last_modified_device = $17,
			checksum = $18, updated_at = $19, deleted_at = $20
		WHERE id = $1 AND organization_id = $2`,
		t.ID, t.Organization, t.Project, t.Title, t.Description, string(t.Status),
		string(t.Priority), t.DueDate, t.CompletedAt, t.Position.String(), t.AssignedTo,
		t.Tags, customOrEmpty(t.CustomFields), t.Version, t.VectorClock.Copy(),
		t.LastModifiedBy, t.LastModifiedDevice, t.Checksum, t.UpdatedAt, t.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update task %s: no row", t.ID)
	}
	return nil
}

// ListTasksSince returns tasks, including soft-deleted ones, changed
// after the cutoff by some device other than the excluded one. Rows
// whose last modifier is unknown (NULL) are included.
func ListTasksSince(ctx context.Context, q Querier, org uuid.UUID, since time.Time, excludeDevice uuid.UUID, limit int) ([]*model.Task, error) {
	rows, err := q.Query(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE organization_id = $1 AND updated_at > $2
		  AND last_modified_device IS DISTINCT FROM $3
		ORDER BY updated_at ASC
		LIMIT $4`, org, since, excludeDevice, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks since: %w", err)
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TaskFilter narrows ListTasksLive. Zero values mean no filter.
type TaskFilter struct {
	Status   model.Status
	Priority model.Priority
	Tag      string
	Project  *uuid.UUID
	Limit    int
	Offset   int
}

// ListTasksLive returns non-deleted tasks for application reads,
// newest change first.
func ListTasksLive(ctx context.Context, q Querier, org uuid.UUID, f TaskFilter) ([]*model.Task, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	rows, err := q.Query(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE organization_id = $1 AND deleted_at IS NULL
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR priority = $3)
		  AND ($4 = '' OR $4 = ANY(tags))
		  AND ($5::uuid IS NULL OR project_id = $5)
		ORDER BY updated_at DESC
		LIMIT $6 OFFSET $7`,
		org, string(f.Status), string(f.Priority), f.Tag, f.Project, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func customOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
