package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh-api/internal/model"
)

// InsertTaskHistory appends an audit entry. History rows are never
// updated or deleted.
func InsertTaskHistory(ctx context.Context, q Querier, h *model.TaskHistory) error {
	_, err := q.Exec(ctx, `
		INSERT INTO task_history (id, task_id, user_id, device_id, change_type,
			changes, previous_state, vector_clock, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		h.ID, h.Task, h.User, h.Device, string(h.ChangeType),
		snapshotOrEmpty(h.Changes), h.PreviousState, h.VectorClock.Copy(), h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task history: %w", err)
	}
	return nil
}

// ListTaskHistory returns a task's audit trail, newest first. The org
// scope rides on the task join.
func ListTaskHistory(ctx context.Context, q Querier, org, taskID uuid.UUID, limit int) ([]*model.TaskHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.Query(ctx, `
		SELECT h.id, h.task_id, h.user_id, h.device_id, h.change_type,
			h.changes, h.previous_state, h.vector_clock, h.created_at
		FROM task_history h
		JOIN tasks t ON t.id = h.task_id
		WHERE h.task_id = $1 AND t.organization_id = $2
		ORDER BY h.created_at DESC
		LIMIT $3`, taskID, org, limit)
	if err != nil {
		return nil, fmt.Errorf("list task history: %w", err)
	}
	defer rows.Close()

	var out []*model.TaskHistory
	for rows.Next() {
		var h model.TaskHistory
		var changeType string
		if err := rows.Scan(&h.ID, &h.Task, &h.User, &h.Device, &changeType,
			&h.Changes, &h.PreviousState, &h.VectorClock, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task history: %w", err)
		}
		h.ChangeType = model.ChangeType(changeType)
		out = append(out, &h)
	}
	return out, rows.Err()
}
