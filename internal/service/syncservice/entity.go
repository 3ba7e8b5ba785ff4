package syncservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh-api/internal/auth"
	"github.com/taskmesh/taskmesh-api/internal/model"
	"github.com/taskmesh/taskmesh-api/internal/store"
	"github.com/taskmesh/taskmesh-api/internal/vclock"
)

// ErrNotFound is returned when an entity is absent, soft-deleted, or
// outside the caller's organization. Handlers map it to 404.
var ErrNotFound = errors.New("not found")

// CreateTask creates a task through the application surface. The write
// follows the same discipline as sync: origin-device clock component,
// version 1, checksum, attribution, and a history row.
func (s *Service) CreateTask(ctx context.Context, p auth.Principal, device *model.Device, data map[string]any) (*model.Task, error) {
	now := time.Now().UTC()
	t := &model.Task{
		ID:                 uuid.New(),
		Organization:       p.Organization,
		Status:             model.StatusTodo,
		Priority:           model.PriorityMedium,
		Position:           model.DefaultPosition,
		CreatedBy:          p.UserID,
		Version:            1,
		VectorClock:        vclock.Clock{}.Increment(device.ID.String()),
		LastModifiedBy:     &p.UserID,
		LastModifiedDevice: &device.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	applyTaskPayload(t, data)
	t.Checksum = model.ComputeTaskChecksum(t)

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create task tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := store.InsertTask(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := store.InsertTaskHistory(ctx, tx, &model.TaskHistory{
		ID:          uuid.New(),
		Task:        t.ID,
		User:        p.UserID,
		Device:      &device.ID,
		ChangeType:  model.ChangeCreated,
		Changes:     map[string]any{},
		VectorClock: t.VectorClock,
		CreatedAt:   now,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create task: %w", err)
	}
	return t, nil
}

// PatchTask applies a partial update to a live task.
func (s *Service) PatchTask(ctx context.Context, p auth.Principal, device *model.Device, id uuid.UUID, data map[string]any) (*model.Task, error) {
	now := time.Now().UTC()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin patch task tx: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := store.GetTaskAnyForUpdate(ctx, tx, p.Organization, id)
	if err != nil {
		return nil, err
	}
	if t == nil || t.Deleted() {
		return nil, ErrNotFound
	}

	before := model.TaskProjection(t)
	applyTaskPayload(t, data)
	t.VectorClock = t.VectorClock.Increment(device.ID.String())
	t.Version++
	t.LastModifiedBy = &p.UserID
	t.LastModifiedDevice = &device.ID
	t.UpdatedAt = now
	t.Checksum = model.ComputeTaskChecksum(t)

	if err := store.UpdateTask(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := store.InsertTaskHistory(ctx, tx, &model.TaskHistory{
		ID:            uuid.New(),
		Task:          t.ID,
		User:          p.UserID,
		Device:        &device.ID,
		ChangeType:    model.ChangeUpdated,
		Changes:       taskDiff(before, model.TaskProjection(t)),
		PreviousState: before,
		VectorClock:   t.VectorClock,
		CreatedAt:     now,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit patch task: %w", err)
	}
	return t, nil
}

// DeleteTask soft-deletes a live task and emits a tombstone, same as a
// sync-side delete.
func (s *Service) DeleteTask(ctx context.Context, p auth.Principal, device *model.Device, id uuid.UUID) error {
	now := time.Now().UTC()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete task tx: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := store.GetTaskAnyForUpdate(ctx, tx, p.Organization, id)
	if err != nil {
		return err
	}
	if t == nil || t.Deleted() {
		return ErrNotFound
	}

	before := model.TaskProjection(t)
	t.DeletedAt = &now
	t.VectorClock = t.VectorClock.Increment(device.ID.String())
	t.Version++
	t.LastModifiedBy = &p.UserID
	t.LastModifiedDevice = &device.ID
	t.UpdatedAt = now

	if err := store.UpdateTask(ctx, tx, t); err != nil {
		return err
	}
	if err := store.InsertTombstone(ctx, tx, &model.Tombstone{
		ID:                uuid.New(),
		EntityType:        model.EntityTask,
		EntityID:          t.ID,
		Organization:      p.Organization,
		DeletedBy:         p.UserID,
		DeletedFromDevice: &device.ID,
		VectorClock:       t.VectorClock.Copy(),
		EntitySnapshot:    before,
		CreatedAt:         now,
		ExpiresAt:         now.Add(model.TombstoneRetention),
	}); err != nil {
		return err
	}
	if err := store.InsertTaskHistory(ctx, tx, &model.TaskHistory{
		ID:            uuid.New(),
		Task:          t.ID,
		User:          p.UserID,
		Device:        &device.ID,
		ChangeType:    model.ChangeDeleted,
		Changes:       taskDiff(before, model.TaskProjection(t)),
		PreviousState: before,
		VectorClock:   t.VectorClock,
		CreatedAt:     now,
	}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete task: %w", err)
	}
	return nil
}

// AddComment creates a comment on a live task.
func (s *Service) AddComment(ctx context.Context, p auth.Principal, device *model.Device, taskID uuid.UUID, data map[string]any) (*model.Comment, error) {
	now := time.Now().UTC()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin add comment tx: %w", err)
	}
	defer tx.Rollback(ctx)

	parent, err := store.GetTaskLive(ctx, tx, p.Organization, taskID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, ErrNotFound
	}

	c := &model.Comment{
		ID:                 uuid.New(),
		Task:               parent.ID,
		Author:             p.UserID,
		Version:            1,
		VectorClock:        vclock.Clock{}.Increment(device.ID.String()),
		LastModifiedBy:     &p.UserID,
		LastModifiedDevice: &device.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	applyCommentPayload(c, data)

	if err := store.InsertComment(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit add comment: %w", err)
	}
	return c, nil
}
