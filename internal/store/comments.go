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

const commentColumns = `c.id, c.task_id, c.author_id, c.parent_id, c.content, c.edited,
	c.version, c.vector_clock, c.last_modified_by, c.last_modified_device,
	c.created_at, c.updated_at, c.deleted_at`

func scanComment(row pgx.Row) (*model.Comment, error) {
	var c model.Comment
	err := row.Scan(
		&c.ID, &c.Task, &c.Author, &c.Parent, &c.Content, &c.Edited,
		&c.Version, &c.VectorClock, &c.LastModifiedBy, &c.LastModifiedDevice,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCommentAny fetches a comment including soft-deleted rows. The org
// scope rides on the parent task join; a cross-org id finds nothing.
func GetCommentAny(ctx context.Context, q Querier, org, id uuid.UUID) (*model.Comment, error) {
	row := q.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments c
		JOIN tasks t ON t.id = c.task_id
		WHERE c.id = $1 AND t.organization_id = $2`, id, org)
	c, err := scanComment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get comment any: %w", err)
	}
	return c, nil
}

// GetCommentAnyForUpdate adds a row lock on the comment for push-time
// conflict detection.
func GetCommentAnyForUpdate(ctx context.Context, q Querier, org, id uuid.UUID) (*model.Comment, error) {
	row := q.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments c
		JOIN tasks t ON t.id = c.task_id
		WHERE c.id = $1 AND t.organization_id = $2
		FOR UPDATE OF c`, id, org)
	c, err := scanComment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get comment for update: %w", err)
	}
	return c, nil
}

// InsertComment writes a new comment row.
func InsertComment(ctx context.Context, q Querier, c *model.Comment) error {
	_, err := q.Exec(ctx, `
		INSERT INTO comments (id, task_id, author_id, parent_id, content, edited, version,
			vector_clock, last_modified_by, last_modified_device, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.Task, c.Author, c.Parent, c.Content, c.Edited, c.Version,
		c.VectorClock.Copy(), c.LastModifiedBy, c.LastModifiedDevice,
		c.CreatedAt, c.UpdatedAt, c.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// UpdateComment overwrites all mutable fields of an existing row.
func UpdateComment(ctx context.Context, q Querier, c *model.Comment) error {
	tag, err := q.Exec(ctx, `
		UPDATE comments SET parent_id = $2, content = $3, edited = $4, version = $5,
			vector_clock = $6, last_modified_by = $7, last_modified_device = $8,
			updated_at = $9, deleted_at = $10
		WHERE id = $1`,
		c.ID, c.Parent, c.Content, c.Edited, c.Version, c.VectorClock.Copy(),
		c.LastModifiedBy, c.LastModifiedDevice, c.UpdatedAt, c.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update comment %s: no row", c.ID)
	}
	return nil
}

// ListCommentsSince returns comments, including soft-deleted ones,
// changed after the cutoff by some device other than the excluded one.
func ListCommentsSince(ctx context.Context, q Querier, org uuid.UUID, since time.Time, excludeDevice uuid.UUID, limit int) ([]*model.Comment, error) {
	rows, err := q.Query(ctx, `SELECT `+commentColumns+` FROM comments c
		JOIN tasks t ON t.id = c.task_id
		WHERE t.organization_id = $1 AND c.updated_at > $2
		  AND c.last_modified_device IS DISTINCT FROM $3
		ORDER BY c.updated_at ASC
		LIMIT $4`, org, since, excludeDevice, limit)
	if err != nil {
		return nil, fmt.Errorf("list comments since: %w", err)
	}
	defer rows.Close()

	var out []*model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListCommentsForTask returns live comments on a task, oldest first,
// for application reads.
func ListCommentsForTask(ctx context.Context, q Querier, org, taskID uuid.UUID, limit int) ([]*model.Comment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.Query(ctx, `SELECT `+commentColumns+` FROM comments c
		JOIN tasks t ON t.id = c.task_id
		WHERE c.task_id = $1 AND t.organization_id = $2 AND c.deleted_at IS NULL
		ORDER BY c.created_at ASC
		LIMIT $3`, taskID, org, limit)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []*model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
