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
)

// Pull returns the organization's changes after the cutoff, excluding
// the calling device's own writes. Soft-deleted tasks and comments are
// included so clients converge on deletions they caused indirectly;
// tombstones cover deletions whose row a client never saw.
func (s *Service) Pull(ctx context.Context, p auth.Principal, device *model.Device, since time.Time, limit int) (*PullResponse, error) {
	now := time.Now().UTC()

	slog := &model.SyncLog{
		ID:        uuid.New(),
		User:      p.UserID,
		Device:    &device.ID,
		SyncType:  model.SyncPull,
		Metadata:  map[string]any{"since": syncx.MsOf(since), "limit": limit},
		CreatedAt: now,
	}

	resp, err := s.pull(ctx, p, device, since, limit, slog)
	if err != nil {
		slog.Complete(model.SyncFailed, err.Error())
	} else {
		slog.Complete(model.SyncSuccess, "")
	}
	if logErr := store.InsertSyncLog(ctx, s.DB, slog); logErr != nil {
		log.Ctx(ctx).Error().Err(logErr).Msg("failed to record pull sync log")
	}
	return resp, err
}

func (s *Service) pull(ctx context.Context, p auth.Principal, device *model.Device, since time.Time, limit int, slog *model.SyncLog) (*PullResponse, error) {
	tasks, err := store.ListTasksSince(ctx, s.DB, p.Organization, since, device.ID, limit)
	if err != nil {
		return nil, err
	}
	comments, err := store.ListCommentsSince(ctx, s.DB, p.Organization, since, device.ID, limit)
	if err != nil {
		return nil, err
	}
	tombstones, err := store.ListTombstonesSince(ctx, s.DB, p.Organization, since, device.ID, limit)
	if err != nil {
		return nil, err
	}
	orgClock, err := store.OrgVectorClock(ctx, s.DB, p.Organization)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := store.TouchDeviceLastSync(ctx, s.DB, device.ID, now); err != nil {
		return nil, err
	}

	resp := &PullResponse{
		Tasks:             make([]map[string]any, 0, len(tasks)),
		Comments:          make([]map[string]any, 0, len(comments)),
		Tombstones:        make([]map[string]any, 0, len(tombstones)),
		ServerVectorClock: orgClock,
		HasMore:           len(tasks) == limit || len(comments) == limit,
		Timestamp:         syncx.NowMs(),
	}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, model.TaskProjection(t))
	}
	for _, c := range comments {
		resp.Comments = append(resp.Comments, model.CommentProjection(c))
	}
	for _, ts := range tombstones {
		resp.Tombstones = append(resp.Tombstones, tombstoneWire(ts))
	}

	slog.EntitiesPulled = len(tasks) + len(comments) + len(tombstones)
	return resp, nil
}

func tombstoneWire(ts *model.Tombstone) map[string]any {
	var device any
	if ts.DeletedFromDevice != nil {
		device = ts.DeletedFromDevice.String()
	}
	return map[string]any{
		"id":                  ts.ID.String(),
		"entity_type":         string(ts.EntityType),
		"entity_id":           ts.EntityID.String(),
		"deleted_by":          ts.DeletedBy.String(),
		"deleted_from_device": device,
		"vector_clock":        ts.VectorClock.Copy(),
		"created_at":          syncx.MsOf(ts.CreatedAt),
		"expires_at":          syncx.MsOf(ts.ExpiresAt),
	}
}
