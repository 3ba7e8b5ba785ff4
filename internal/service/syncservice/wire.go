// Package syncservice implements the synchronization engine: conflict
// detection against vector clocks, field-level auto-resolution, and the
// transactional push/pull/resolve operations behind the sync API.
package syncservice

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskmesh/taskmesh-api/internal/vclock"
)

// Service carries the engine's dependencies. Handlers construct one
// per process and share it across requests.
type Service struct {
	DB *pgxpool.Pool
}

// Operation is a client-requested change kind.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

func (o Operation) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Change is one entity mutation inside a push batch.
type Change struct {
	ID        string         `json:"id"`
	Operation Operation      `json:"operation"`
	Data      map[string]any `json:"data"`
}

// PushRequest is the body of POST /api/sync/push/.
type PushRequest struct {
	DeviceID    string `json:"deviceId"`
	VectorClock any    `json:"vectorClock"`
	Timestamp   int64  `json:"timestamp"`
	Changes     struct {
		Tasks    []Change `json:"tasks"`
		Comments []Change `json:"comments"`
	} `json:"changes"`
}

// ConflictOut is a surfaced (manual-resolution) conflict in the push
// response.
type ConflictOut struct {
	EntityType        string         `json:"entityType"`
	EntityID          string         `json:"entityId"`
	ConflictReason    string         `json:"conflictReason"`
	ServerVersion     map[string]any `json:"serverVersion"`
	ServerVectorClock vclock.Clock   `json:"serverVectorClock"`
}

// PushResponse is the body returned by push.
type PushResponse struct {
	Success           bool          `json:"success"`
	Processed         int           `json:"processed"`
	Conflicts         []ConflictOut `json:"conflicts"`
	ServerVectorClock vclock.Clock  `json:"serverVectorClock"`
	Timestamp         int64         `json:"timestamp"`
}

// PullResponse is the body returned by pull. Tasks and comments are
// canonical projections; tombstones use their own wire record.
type PullResponse struct {
	Tasks             []map[string]any `json:"tasks"`
	Comments          []map[string]any `json:"comments"`
	Tombstones        []map[string]any `json:"tombstones"`
	ServerVectorClock vclock.Clock     `json:"serverVectorClock"`
	HasMore           bool             `json:"hasMore"`
	Timestamp         int64            `json:"timestamp"`
}

// ResolutionChoice selects which payload settles a manual conflict.
type ResolutionChoice string

const (
	ResolveLocal  ResolutionChoice = "local"
	ResolveRemote ResolutionChoice = "remote"
	ResolveCustom ResolutionChoice = "custom"
)

func (c ResolutionChoice) Valid() bool {
	switch c {
	case ResolveLocal, ResolveRemote, ResolveCustom:
		return true
	}
	return false
}

// ResolveRequest is the body of POST /api/sync/conflicts/{id}/resolve/.
type ResolveRequest struct {
	Resolution       ResolutionChoice `json:"resolution"`
	CustomResolution map[string]any   `json:"customResolution"`
}
