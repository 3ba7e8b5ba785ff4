package syncservice

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/taskmesh/taskmesh-api/internal/auth"
	"github.com/taskmesh/taskmesh-api/internal/model"
	"github.com/taskmesh/taskmesh-api/internal/store"
	"github.com/taskmesh/taskmesh-api/internal/syncx"
	"github.com/taskmesh/taskmesh-api/internal/vclock"
)

// resultKind classifies what happened to one change.
type resultKind int

const (
	resultApplied resultKind = iota
	resultDropped
	resultAutoResolved
	resultSurfaced
)

// changeResult is the per-change outcome used to update counters only
// after the change's savepoint commits.
type changeResult struct {
	kind     resultKind
	conflict *ConflictOut
}

// pushState accumulates counters across a push request.
type pushState struct {
	processed         int
	dropped           int
	failed            int
	conflictsDetected int
	conflictsResolved int
	surfaced          []ConflictOut
	priorities        map[string]int
}

func (st *pushState) record(r changeResult) {
	switch r.kind {
	case resultApplied:
		st.processed++
	case resultDropped:
		st.dropped++
	case resultAutoResolved:
		st.processed++
		st.conflictsDetected++
		st.conflictsResolved++
	case resultSurfaced:
		st.conflictsDetected++
		if r.conflict != nil {
			st.surfaced = append(st.surfaced, *r.conflict)
		}
	}
}

// Push applies a device's accumulated changes inside one transaction.
// Changes are applied in the order received per entity type; a change
// whose statements fail is rolled back to its savepoint and skipped
// while its siblings commit. The caller has already verified that the
// device belongs to the principal.
func (s *Service) Push(ctx context.Context, p auth.Principal, device *model.Device, req *PushRequest) (*PushResponse, error) {
	now := time.Now().UTC()
	clientClock := vclock.FromAny(req.VectorClock)

	slog := &model.SyncLog{
		ID:       uuid.New(),
		User:     p.UserID,
		Device:   &device.ID,
		SyncType: model.SyncPush,
		Metadata: map[string]any{},
		CreatedAt: now,
	}

	st := &pushState{priorities: map[string]int{}}
	var orgClock vclock.Clock

	err := func() error {
		tx, err := s.DB.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin push tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := store.InsertSyncLog(ctx, tx, slog); err != nil {
			return err
		}

		for _, ch := range req.Changes.Tasks {
			s.applyChange(ctx, tx, p, device, model.EntityTask, ch, now, st)
		}
		for _, ch := range req.Changes.Comments {
			s.applyChange(ctx, tx, p, device, model.EntityComment, ch, now, st)
		}

		if err := store.MergeDeviceClock(ctx, tx, device.ID, clientClock, now); err != nil {
			return err
		}

		orgClock, err = store.OrgVectorClock(ctx, tx, p.Organization)
		if err != nil {
			return err
		}

		slog.EntitiesPushed = st.processed
		slog.ConflictsDetected = st.conflictsDetected
		slog.ConflictsResolved = st.conflictsResolved
		slog.Metadata["priorities"] = st.priorities
		slog.Metadata["dropped"] = st.dropped
		slog.Metadata["failed"] = st.failed
		status := model.SyncSuccess
		if st.failed > 0 {
			status = model.SyncPartial
		}
		slog.Complete(status, "")
		if err := store.CompleteSyncLog(ctx, tx, slog); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}()
	if err != nil {
		// The in-transaction log row rolled back with everything else;
		// record the failure in a fresh row so the audit trail keeps it.
		slog.Complete(model.SyncFailed, err.Error())
		if logErr := store.InsertSyncLog(ctx, s.DB, slog); logErr != nil {
			log.Ctx(ctx).Error().Err(logErr).Msg("failed to record failed push sync log")
		}
		return nil, err
	}

	return &PushResponse{
		Success:           true,
		Processed:         st.processed,
		Conflicts:         append([]ConflictOut{}, st.surfaced...),
		ServerVectorClock: orgClock,
		Timestamp:         syncx.NowMs(),
	}, nil
}

// applyChange runs one change inside a savepoint so a failure cannot
// poison the enclosing transaction.
func (s *Service) applyChange(ctx context.Context, tx pgx.Tx, p auth.Principal, device *model.Device, entity model.EntityType, ch Change, now time.Time, st *pushState) {
	logger := log.Ctx(ctx).With().
		Str("entity_type", string(entity)).
		Str("entity_id", ch.ID).
		Str("operation", string(ch.Operation)).
		Logger()

	id, ok := syncx.ParseUUID(ch.ID)
	if !ok {
		logger.Warn().Msg("change has invalid entity id, skipping")
		st.failed++
		return
	}
	if !ch.Operation.Valid() {
		logger.Warn().Msg("change has unknown operation, skipping")
		st.failed++
		return
	}

	st.priorities[strconv.Itoa(SyncPriority(entity, ch.Operation, ch.Data))]++

	sp, err := tx.Begin(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open savepoint, skipping change")
		st.failed++
		return
	}

	var res changeResult
	switch entity {
	case model.EntityTask:
		res, err = s.taskChange(ctx, sp, p, device, ch, id, now)
	case model.EntityComment:
		res, err = s.commentChange(ctx, sp, p, device, ch, id, now)
	}
	if err != nil {
		_ = sp.Rollback(ctx)
		logger.Warn().Err(err).Msg("change failed, rolled back to savepoint")
		st.failed++
		return
	}
	if err := sp.Commit(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to release savepoint, skipping change")
		st.failed++
		return
	}
	st.record(res)
}
