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

// commentChange routes one comment change. Creates and updates require
// a live parent task; when the parent is absent or soft-deleted the
// change is an orphan, counted as processed with no write so the
// client drops it. No conflict is raised for orphans.
func (s *Service) commentChange(ctx context.Context, q store.Querier, p auth.Principal, device *model.Device, ch Change, id uuid.UUID, now time.Time) (changeResult, error) {
	existing, err := store.GetCommentAnyForUpdate(ctx, q, p.Organization, id)
	if err != nil {
		return changeResult{}, err
	}

	if ch.Operation == OpDelete {
		return s.deleteComment(ctx, q, p, device, ch, existing, now)
	}

	if existing == nil {
		return s.createComment(ctx, q, p, device, ch, id, now)
	}
	return s.updateComment(ctx, q, p, device, ch, existing, now)
}

// liveParentTask returns the parent when it exists and is not
// soft-deleted.
func liveParentTask(ctx context.Context, q store.Querier, org, taskID uuid.UUID) (*model.Task, error) {
	parent, err := store.GetTaskAny(ctx, q, org, taskID)
	if err != nil {
		return nil, err
	}
	if parent == nil || parent.Deleted() {
		return nil, nil
	}
	return parent, nil
}

func (s *Service) createComment(ctx context.Context, q store.Querier, p auth.Principal, device *model.Device, ch Change, id uuid.UUID, now time.Time) (changeResult, error) {
	taskID, ok := syncx.GetUUID(ch.Data, "task")
	if !ok {
		log.Ctx(ctx).Warn().Str("comment", id.String()).Msg("comment create missing task reference, treated as orphan")
		return changeResult{kind: resultApplied}, nil
	}
	parent, err := liveParentTask(ctx, q, p.Organization, taskID)
	if err != nil {
		return changeResult{}, err
	}
	if parent == nil {
		log.Ctx(ctx).Info().
			Str("comment", id.String()).
			Str("task", taskID.String()).
			Msg("orphan comment create, parent task missing or deleted")
		return changeResult{kind: resultApplied}, nil
	}

	clock := vclock.FromAny(ch.Data["vector_clock"])
	if len(clock) == 0 {
		clock = vclock.Clock{}.Increment(device.ID.String())
	}
	createdAt := now
	if ms, ok := syncx.GetTimeMs(ch.Data, "created_at"); ok {
		createdAt = syncx.TimeOf(ms)
	}
	author := p.UserID
	if a, ok := syncx.GetUUID(ch.Data, "author"); ok {
		author = a
	}

	c := &model.Comment{
		ID:                 id,
		Task:               parent.ID,
		Author:             author,
		Version:            payloadVersion(ch.Data),
		VectorClock:        clock,
		LastModifiedBy:     &p.UserID,
		LastModifiedDevice: &device.ID,
		CreatedAt:          createdAt,
		UpdatedAt:          now,
	}
	applyCommentPayload(c, ch.Data)
	if err := store.InsertComment(ctx, q, c); err != nil {
		return changeResult{}, err
	}
	return changeResult{kind: resultApplied}, nil
}

func (s *Service) updateComment(ctx context.Context, q store.Querier, p auth.Principal, device *model.Device, ch Change, existing *model.Comment, now time.Time) (changeResult, error) {
	parent, err := liveParentTask(ctx, q, p.Organization, existing.Task)
	if err != nil {
		return changeResult{}, err
	}
	if parent == nil {
		log.Ctx(ctx).Info().
			Str("comment", existing.ID.String()).
			Str("task", existing.Task.String()).
			Msg("orphan comment update, parent task missing or deleted")
		return changeResult{kind: resultApplied}, nil
	}

	incClock := vclock.FromAny(ch.Data["vector_clock"])

	switch DetectConflict(incClock, existing.VectorClock) {
	case OutcomeDrop:
		return changeResult{kind: resultDropped}, nil

	case OutcomeNoop:
		existing.LastModifiedBy = &p.UserID
		existing.LastModifiedDevice = &device.ID
		existing.UpdatedAt = now
		if err := store.UpdateComment(ctx, q, existing); err != nil {
			return changeResult{}, err
		}
		return changeResult{kind: resultApplied}, nil

	case OutcomeAccept:
		applyCommentPayload(existing, ch.Data)
		if raw, ok := ch.Data["deleted_at"]; ok {
			existing.DeletedAt = timeFromPayload(raw)
		}
		if _, ok := syncx.GetString(ch.Data, "content"); ok {
			existing.Edited = true
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
		if err := store.UpdateComment(ctx, q, existing); err != nil {
			return changeResult{}, err
		}
		return changeResult{kind: resultApplied}, nil

	default:
		return s.resolveCommentChange(ctx, q, p, device, ch, existing, incClock, now)
	}
}

func (s *Service) resolveCommentChange(ctx context.Context, q store.Querier, p auth.Principal, device *model.Device, ch Change, existing *model.Comment, incClock vclock.Clock, now time.Time) (changeResult, error) {
	serverProj := model.CommentProjection(existing)

	conflict := &model.Conflict{
		ID:                uuid.New(),
		EntityType:        model.EntityComment,
		EntityID:          existing.ID,
		User:              p.UserID,
		Device:            &device.ID,
		LocalVersion:      ch.Data,
		ServerVersion:     serverProj,
		LocalVectorClock:  incClock,
		ServerVectorClock: existing.VectorClock.Copy(),
		CreatedAt:         now,
	}

	if _, ok := ResolveCommentConflict(ch.Data, serverProj); !ok {
		conflict.ConflictReason = CommentConflictReason
		if err := store.InsertConflict(ctx, q, conflict); err != nil {
			return changeResult{}, err
		}
		return changeResult{
			kind: resultSurfaced,
			conflict: &ConflictOut{
				EntityType:        string(model.EntityComment),
				EntityID:          existing.ID.String(),
				ConflictReason:    conflict.ConflictReason,
				ServerVersion:     serverProj,
				ServerVectorClock: conflict.ServerVectorClock,
			},
		}, nil
	}

	// Content agrees; only the clocks diverged. Merge them and move on.
	existing.VectorClock = incClock.Merge(existing.VectorClock)
	existing.Version = max(payloadVersion(ch.Data), existing.Version) + 1
	existing.LastModifiedBy = &p.UserID
	existing.LastModifiedDevice = &device.ID
	existing.UpdatedAt = now
	if err := store.UpdateComment(ctx, q, existing); err != nil {
		return changeResult{}, err
	}

	strategy := model.ResolutionAutoResolved
	conflict.ConflictReason = "Concurrent modification detected"
	conflict.Strategy = &strategy
	conflict.ResolvedVersion = model.CommentProjection(existing)
	conflict.ResolvedBy = &p.UserID
	conflict.ResolvedAt = &now
	if err := store.InsertConflict(ctx, q, conflict); err != nil {
		return changeResult{}, err
	}
	return changeResult{kind: resultAutoResolved}, nil
}

// deleteComment soft-deletes and emits a tombstone. A missing or
// already-deleted comment, or one whose parent task is gone, is
// silently accepted.
func (s *Service) deleteComment(ctx context.Context, q store.Querier, p auth.Principal, device *model.Device, ch Change, existing *model.Comment, now time.Time) (changeResult, error) {
	if existing == nil || existing.Deleted() {
		return changeResult{kind: resultApplied}, nil
	}

	before := model.CommentProjection(existing)
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
	if err := store.UpdateComment(ctx, q, existing); err != nil {
		return changeResult{}, err
	}

	if err := store.InsertTombstone(ctx, q, &model.Tombstone{
		ID:                uuid.New(),
		EntityType:        model.EntityComment,
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
	return changeResult{kind: resultApplied}, nil
}
