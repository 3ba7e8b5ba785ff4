package syncservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskmesh/taskmesh-api/internal/auth"
	"github.com/taskmesh/taskmesh-api/internal/model"
	"github.com/taskmesh/taskmesh-api/internal/store"
	"github.com/taskmesh/taskmesh-api/internal/syncx"
)

// ErrConflictNotFound is returned when the conflict id is absent,
// already resolved, or outside the caller's scope. Handlers map it to
// 404 without distinguishing the cases.
var ErrConflictNotFound = errors.New("conflict not found")

// ConflictProjection renders a conflict for the listing endpoint.
func ConflictProjection(c *model.Conflict) map[string]any {
	var device any
	if c.Device != nil {
		device = c.Device.String()
	}
	var strategy any
	if c.Strategy != nil {
		strategy = string(*c.Strategy)
	}
	return map[string]any{
		"id":                  c.ID.String(),
		"entity_type":         string(c.EntityType),
		"entity_id":           c.EntityID.String(),
		"device":              device,
		"local_version":       c.LocalVersion,
		"server_version":      c.ServerVersion,
		"local_vector_clock":  c.LocalVectorClock.Copy(),
		"server_vector_clock": c.ServerVectorClock.Copy(),
		"conflict_reason":     c.ConflictReason,
		"resolution_strategy": strategy,
		"created_at":          syncx.MsOf(c.CreatedAt),
		"resolved_at":         syncx.MsOfPtr(c.ResolvedAt),
	}
}

// ListConflicts returns the caller's unresolved conflicts, newest
// first.
func (s *Service) ListConflicts(ctx context.Context, p auth.Principal, limit int) ([]map[string]any, error) {
	conflicts, err := store.ListUnresolvedConflicts(ctx, s.DB, p.UserID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, ConflictProjection(c))
	}
	return out, nil
}

// ResolveConflict settles an open conflict with the caller's choice
// and applies the winning payload to the entity under the same
// clock-merge and version-bump discipline as auto-resolution.
// Protected fields (id, organization, created_by, created_at; for
// comments id, task, author, created_at) are never overwritten because
// payload application only touches content fields.
func (s *Service) ResolveConflict(ctx context.Context, p auth.Principal, conflictID uuid.UUID, req *ResolveRequest) (map[string]any, error) {
	now := time.Now().UTC()

	slog := &model.SyncLog{
		ID:        uuid.New(),
		User:      p.UserID,
		SyncType:  model.SyncConflict,
		Metadata:  map[string]any{"conflict_id": conflictID.String(), "resolution": string(req.Resolution)},
		CreatedAt: now,
	}

	var resolved *model.Conflict
	err := func() error {
		tx, err := s.DB.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin resolve tx: %w", err)
		}
		defer tx.Rollback(ctx)

		conflict, err := store.GetUnresolvedConflict(ctx, tx, p.UserID, conflictID)
		if err != nil {
			return err
		}
		if conflict == nil {
			return ErrConflictNotFound
		}

		var payload map[string]any
		var strategy model.ResolutionStrategy
		switch req.Resolution {
		case ResolveLocal:
			payload, strategy = conflict.LocalVersion, model.ResolutionLocalWins
		case ResolveRemote:
			payload, strategy = conflict.ServerVersion, model.ResolutionServerWins
		default:
			payload, strategy = req.CustomResolution, model.ResolutionManual
		}

		switch conflict.EntityType {
		case model.EntityTask:
			err = s.applyTaskResolution(ctx, tx, p, conflict, payload, now)
		case model.EntityComment:
			err = s.applyCommentResolution(ctx, tx, p, conflict, payload, now)
		}
		if err != nil {
			return err
		}

		if err := store.MarkConflictResolved(ctx, tx, conflict.ID, strategy, payload, p.UserID, now); err != nil {
			return err
		}
		conflict.Strategy = &strategy
		conflict.ResolvedVersion = payload
		conflict.ResolvedBy = &p.UserID
		conflict.ResolvedAt = &now
		resolved = conflict

		slog.ConflictsResolved = 1
		slog.Complete(model.SyncSuccess, "")
		if err := store.InsertSyncLog(ctx, tx, slog); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}()
	if err != nil {
		if !errors.Is(err, ErrConflictNotFound) {
			slog.Complete(model.SyncFailed, err.Error())
			if logErr := store.InsertSyncLog(ctx, s.DB, slog); logErr != nil {
				log.Ctx(ctx).Error().Err(logErr).Msg("failed to record resolve sync log")
			}
		}
		return nil, err
	}
	return ConflictProjection(resolved), nil
}

// applyTaskResolution writes the chosen payload to the task. The
// resulting clock dominates both conflicting clocks and whatever the
// entity advanced to since detection. Attribution deliberately leaves
// the device unset so every device pulls the resolution.
func (s *Service) applyTaskResolution(ctx context.Context, q store.Querier, p auth.Principal, conflict *model.Conflict, payload map[string]any, now time.Time) error {
	task, err := store.GetTaskAnyForUpdate(ctx, q, p.Organization, conflict.EntityID)
	if err != nil {
		return err
	}
	if task == nil {
		// Entity vanished since detection; the conflict record still
		// gets settled.
		return nil
	}

	before := model.TaskProjection(task)
	applyTaskPayload(task, payload)
	task.VectorClock = task.VectorClock.Merge(conflict.LocalVectorClock.Merge(conflict.ServerVectorClock))
	task.Version = max(task.Version, payloadVersion(payload)) + 1
	task.LastModifiedBy = &p.UserID
	task.LastModifiedDevice = nil
	task.UpdatedAt = now
	task.Checksum = model.ComputeTaskChecksum(task)
	if err := store.UpdateTask(ctx, q, task); err != nil {
		return err
	}

	return store.InsertTaskHistory(ctx, q, &model.TaskHistory{
		ID:            uuid.New(),
		Task:          task.ID,
		User:          p.UserID,
		ChangeType:    model.ChangeUpdated,
		Changes:       taskDiff(before, model.TaskProjection(task)),
		PreviousState: before,
		VectorClock:   task.VectorClock,
		CreatedAt:     now,
	})
}

func (s *Service) applyCommentResolution(ctx context.Context, q store.Querier, p auth.Principal, conflict *model.Conflict, payload map[string]any, now time.Time) error {
	comment, err := store.GetCommentAnyForUpdate(ctx, q, p.Organization, conflict.EntityID)
	if err != nil {
		return err
	}
	if comment == nil {
		return nil
	}

	applyCommentPayload(comment, payload)
	comment.Edited = true
	comment.VectorClock = comment.VectorClock.Merge(conflict.LocalVectorClock.Merge(conflict.ServerVectorClock))
	comment.Version = max(comment.Version, payloadVersion(payload)) + 1
	comment.LastModifiedBy = &p.UserID
	comment.LastModifiedDevice = nil
	comment.UpdatedAt = now
	return store.UpdateComment(ctx, q, comment)
}
