package syncservice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskmesh/taskmesh-api/internal/auth"
	"github.com/taskmesh/taskmesh-api/internal/model"
	"github.com/taskmesh/taskmesh-api/internal/store"
	"github.com/taskmesh/taskmesh-api/internal/syncx"
	"github.com/taskmesh/taskmesh-api/internal/vclock"
)

// taskChange routes one task change. The row is read with a lock
// (including soft-deleted rows) so concurrent pushes on the same task
// serialize and the later one detects against the earlier one's write.
func (s *Service) taskChange(ctx context.Context, q store.Querier, p auth.Principal, device *model.Device, ch Change, id uuid.UUID, now time.Time) (changeResult, error) {
	existing, err := store.GetTaskAnyForUpdate(ctx, q, p.Organization, id)
	if err != nil {
		return changeResult{}, err
	}

	if ch.Operation == OpDelete {
		return s.deleteTask(ctx, q, p, device, ch, existing, now)
	}
	if existing == nil {
		// create, and create-on-update for offline clients whose
		// creation push was lost.
		return s.createTask(ctx, q, p, device, ch, id, now)
	}
	// create on an existing id degrades to update.
	return s.updateTask(ctx, q, p, device, ch, existing, now)
}

func (s *Service) createTask(ctx context.Context, q store.Querier, p auth.Principal, device *model.Device, ch Change, id uuid.UUID, now time.Time) (changeResult, error) {
	clock := vclock.FromAny(ch.Data["vector_clock"])
	if len(clock) == 0 {
		clock = vclock.Clock{}.Increment(device.ID.String())
	}
	createdAt := now
	if ms, ok := syncx.GetTimeMs(ch.Data, "created_at"); ok {
		createdAt = syncx.TimeOf(ms)
	}

	t := &model.Task{
		ID:                 id,
		Organization:       p.Organization,
		Status:             model.StatusTodo,
		Priority:           model.PriorityMedium,
		Position:           model.DefaultPosition,
		CreatedBy:          p.UserID,
		Version:            payloadVersion(ch.Data),
		VectorClock:        clock,
		LastModifiedBy:     &p.UserID,
		LastModifiedDevice: &device.ID,
		CreatedAt:          createdAt,
		UpdatedAt:          now,
	}
	applyTaskPayload(t, ch.Data)
	t.Checksum = model.ComputeTaskChecksum(t)

	if err := store.InsertTask(ctx, q, t); err != nil {
		return changeResult{}, err
	}
	if err := store.InsertTaskHistory(ctx, q, &model.TaskHistory{
		ID:          uuid.New(),
		Task:        t.ID,
		User:        p.UserID,
		Device:      &device.ID,
		ChangeType:  model.ChangeCreated,
		Changes:     map[string]any{},
		VectorClock: t.VectorClock,
		CreatedAt:   now,
	}); err != nil {
		return changeResult{}, err
	}
	return changeResult{kind: resultApplied}, nil
}

func (s *Service) updateTask(ctx context.Context, q store.Querier, p auth.Principal, device *model.Device, ch Change, existing *model.Task, now time.Time) (changeResult, error) {
	incClock := vclock.FromAny(ch.Data["vector_clock"])

	switch DetectConflict(incClock, existing.VectorClock) {
	case OutcomeDrop:
		log.Ctx(ctx).Debug().Str("task", existing.ID.String()).Msg("incoming task update is causally older, dropped")
		return changeResult{kind: resultDropped}, nil

	case OutcomeNoop:
		// Same causal state: refresh attribution only, no content
		// write and no history row, so replayed creates stay
		// idempotent.
		existing.LastModifiedBy = &p.UserID
		existing.LastModifiedDevice = &device.ID
		existing.UpdatedAt = now
		if err := store.UpdateTask(ctx, q, existing); err != nil {
			return changeResult{}, err
		}
		return changeResult{kind: resultApplied}, nil

	case OutcomeAccept:
		return s.overwriteTask(ctx, q, p, device, ch, existing, incClock, now)

	default:
		return s.resolveTaskChange(ctx, q, p, device, ch, existing, incClock, now)
	}
}

// overwriteTask applies a causally newer payload over the stored row.
func (s *Service) overwriteTask(ctx context.Context, q store.Querier, p auth.Principal, device *model.Device, ch Change, existing *model.Task, incClock vclock.Clock, now time.Time) (changeResult, error) {
	before := model.TaskProjection(existing)
	wasDeleted := existing.Deleted()

	applyTaskPayload(existing, ch.Data)
	if raw, ok := ch.Data["deleted_at"]; ok {
		existing.DeletedAt = timeFromPayload(raw)
	}
	existing.VectorClock = existing.VectorClock.Merge(incClock)
	if pv := payloadVersion(ch.Data); pv > existing.Version {
		existing.Version = pv
	} else {
		existing.Version++
	}
	existing.LastModifiedBy = &p.UserID
	existing.LastModifiedDevice = &device.ID
	existing.UpdatedAt = now
	existing.Checksum = model.ComputeTaskChecksum(existing)

	if err := store.UpdateTask(ctx, q, existing); err != nil {
		return changeResult{}, err
	}

	changeType := model.ChangeUpdated
	switch {
	case wasDeleted && !existing.Deleted():
		changeType = model.ChangeRestored
	case !wasDeleted && existing.Deleted():
		changeType = model.ChangeDeleted
	}
	if err := store.InsertTaskHistory(ctx, q, &model.TaskHistory{
		ID:            uuid.New(),
		Task:          existing.ID,
		User:          p.UserID,
		Device:        &device.ID,
		ChangeType:    changeType,
		Changes:       taskDiff(before, model.TaskProjection(existing)),
		PreviousState: before,
		VectorClock:   existing.VectorClock,
		CreatedAt:     now,
	}); err != nil {
		return changeResult{}, err
	}
	return changeResult{kind: resultApplied}, nil
}

// resolveTaskChange handles a concurrent edit: field-level merge when
// every field is resolvable, otherwise a surfaced conflict with the
// server row left untouched.
func (s *Service) resolveTaskChange(ctx context.Context, q store.Querier, p auth.Principal, device *model.Device, ch Change, existing *model.Task, incClock vclock.Clock, now time.Time) (changeResult, error) {
	serverProj := model.TaskProjection(existing)
	res := ResolveTaskConflict(ch.Data, serverProj)

	conflict := &model.Conflict{
		ID:                uuid.New(),
		EntityType:        model.EntityTask,
		EntityID:          existing.ID,
		User:              p.UserID,
		Device:            &device.ID,
		LocalVersion:      ch.Data,
		ServerVersion:     serverProj,
		LocalVectorClock:  incClock,
		ServerVectorClock: existing.VectorClock.Copy(),
		CreatedAt:         now,
	}

	if !res.Resolvable() {
		conflict.ConflictReason = res.Reason()
		if err := store.InsertConflict(ctx, q, conflict); err != nil {
			return changeResult{}, err
		}
		return changeResult{
			kind: resultSurfaced,
			conflict: &ConflictOut{
				EntityType:        string(model.EntityTask),
				EntityID:          existing.ID.String(),
				ConflictReason:    conflict.ConflictReason,
				ServerVersion:     serverProj,
				ServerVectorClock: conflict.ServerVectorClock,
			},
		}, nil
	}

	applyTaskPayload(existing, res.Merged)
	existing.VectorClock = incClock.Merge(existing.VectorClock)
	existing.Version = max(payloadVersion(ch.Data), existing.Version) + 1
	existing.LastModifiedBy = &p.UserID
	existing.LastModifiedDevice = &device.ID
	existing.UpdatedAt = now
	existing.Checksum = model.ComputeTaskChecksum(existing)
	if err := store.UpdateTask(ctx, q, existing); err != nil {
		return changeResult{}, err
	}

	strategy := model.ResolutionAutoResolved
	resolvedProj := model.TaskProjection(existing)
	conflict.ConflictReason = "Concurrent modification detected"
	conflict.Strategy = &strategy
	conflict.ResolvedVersion = resolvedProj
	conflict.ResolvedBy = &p.UserID
	conflict.ResolvedAt = &now
	if err := store.InsertConflict(ctx, q, conflict); err != nil {
		return changeResult{}, err
	}

	if err := store.InsertTaskHistory(ctx, q, &model.TaskHistory{
		ID:            uuid.New(),
		Task:          existing.ID,
		User:          p.UserID,
		Device:        &device.ID,
		ChangeType:    model.ChangeUpdated,
		Changes:       taskDiff(serverProj, resolvedProj),
		PreviousState: serverProj,
		VectorClock:   existing.VectorClock,
		CreatedAt:     now,
	}); err != nil {
		return changeResult{}, err
	}
	return changeResult{kind: resultAutoResolved}, nil
}

// deleteTask soft-deletes the row and emits a tombstone. Absent or
// already-deleted rows are accepted as no-ops so replayed deletes stay
// idempotent.
func (s *Service) deleteTask(ctx context.Context, q store.Querier, p auth.Principal, device *model.Device, ch Change, existing *model.Task, now time.Time) (changeResult, error) {
	if existing == nil || existing.Deleted() {
		return changeResult{kind: resultApplied}, nil
	}

	before := model.TaskProjection(existing)
	incClock := vclock.FromAny(ch.Data["vector_clock"])
	tombClock := incClock
	if len(tombClock) == 0 {
		tombClock = existing.VectorClock.Copy()
	}

	existing.DeletedAt = &now
	existing.VectorClock = existing.VectorClock.Merge(incClock)
	existing.Version++
	existing.LastModifiedBy = &p.UserID
	existing.LastModifiedDevice = &device.ID
	existing.UpdatedAt = now
	if err := store.UpdateTask(ctx, q, existing); err != nil {
		return changeResult{}, err
	}

	if err := store.InsertTombstone(ctx, q, &model.Tombstone{
		ID:                uuid.New(),
		EntityType:        model.EntityTask,
		EntityID:          existing.ID,
		Organization:      p.Organization,
		DeletedBy:         p.UserID,
		DeletedFromDevice: &device.ID,
		VectorClock:       tombClock,
		EntitySnapshot:    before,
		CreatedAt:         now,
		ExpiresAt:         now.Add(model.TombstoneRetention),
	}); err != nil {
		return changeResult{}, err
	}

	if err := store.InsertTaskHistory(ctx, q, &model.TaskHistory{
		ID:            uuid.New(),
		Task:          existing.ID,
		User:          p.UserID,
		Device:        &device.ID,
		ChangeType:    model.ChangeDeleted,
		Changes:       map[string]any{"deleted_at": map[string]any{"from": nil, "to": syncx.MsOf(now)}},
		PreviousState: before,
		VectorClock:   existing.VectorClock,
		CreatedAt:     now,
	}); err != nil {
		return changeResult{}, err
	}
	return changeResult{kind: resultApplied}, nil
}
