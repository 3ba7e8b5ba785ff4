package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh-api/internal/vclock"
)

// EntityType tags which table a tombstone or conflict refers to.
type EntityType string

const (
	EntityTask       EntityType = "task"
	EntityComment    EntityType = "comment"
	EntityAttachment EntityType = "attachment"
)

func (e EntityType) Valid() bool {
	switch e {
	case EntityTask, EntityComment, EntityAttachment:
		return true
	}
	return false
}

// TombstoneRetention is how long deletion records are kept. A device
// that stays offline longer than this will not learn of the deletion.
const TombstoneRetention = 90 * 24 * time.Hour

// Tombstone records a deletion for pull-side propagation. The snapshot
// preserves the entity's last projection for clients that want to
// offer undo.
type Tombstone struct {
	ID                uuid.UUID
	EntityType        EntityType
	EntityID          uuid.UUID
	Organization      uuid.UUID
	DeletedBy         uuid.UUID
	DeletedFromDevice *uuid.UUID
	VectorClock       vclock.Clock
	EntitySnapshot    map[string]any
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// ResolutionStrategy records how a conflict was settled.
type ResolutionStrategy string

const (
	ResolutionManual       ResolutionStrategy = "manual"
	ResolutionAutoMerge    ResolutionStrategy = "auto_merge"
	ResolutionLocalWins    ResolutionStrategy = "local_wins"
	ResolutionServerWins   ResolutionStrategy = "server_wins"
	ResolutionAutoResolved ResolutionStrategy = "auto_resolved"
)

// Conflict is the audit record of a concurrent modification. Both
// payloads and both clocks are retained. Unresolved iff ResolvedAt is
// nil.
type Conflict struct {
	ID                uuid.UUID
	EntityType        EntityType
	EntityID          uuid.UUID
	User              uuid.UUID
	Device            *uuid.UUID
	LocalVersion      map[string]any
	ServerVersion     map[string]any
	LocalVectorClock  vclock.Clock
	ServerVectorClock vclock.Clock
	ConflictReason    string
	Strategy          *ResolutionStrategy
	ResolvedVersion   map[string]any
	ResolvedBy        *uuid.UUID
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}

// Resolved reports whether the conflict has been settled.
func (c *Conflict) Resolved() bool {
	return c.ResolvedAt != nil
}

// SyncType distinguishes sync log rows by request kind.
type SyncType string

const (
	SyncPush     SyncType = "push"
	SyncPull     SyncType = "pull"
	SyncConflict SyncType = "conflict"
)

// SyncStatus is the terminal state of a sync request.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncPartial SyncStatus = "partial"
	SyncFailed  SyncStatus = "failed"
)

// SyncLog is the per-request audit row. Counters accumulate while the
// request runs; Complete stamps the terminal status and duration.
type SyncLog struct {
	ID                uuid.UUID
	User              uuid.UUID
	Device            *uuid.UUID
	SyncType          SyncType
	EntitiesPushed    int
	EntitiesPulled    int
	ConflictsDetected int
	ConflictsResolved int
	DurationMs        *int64
	Status            SyncStatus
	ErrorMessage      string
	Metadata          map[string]any
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

// Complete stamps the log with its terminal status, error text, and
// elapsed duration.
func (l *SyncLog) Complete(status SyncStatus, errMsg string) {
	now := time.Now().UTC()
	l.CompletedAt = &now
	l.Status = status
	l.ErrorMessage = errMsg
	ms := now.Sub(l.CreatedAt).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	l.DurationMs = &ms
}

// ChangeType labels task history entries.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeUpdated  ChangeType = "updated"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRestored ChangeType = "restored"
)

// TaskHistory is an append-only audit entry for a task state change.
// Changes holds a per-field {from, to} diff; PreviousState holds the
// projection before the write.
type TaskHistory struct {
	ID            uuid.UUID
	Task          uuid.UUID
	User          uuid.UUID
	Device        *uuid.UUID
	ChangeType    ChangeType
	Changes       map[string]any
	PreviousState map[string]any
	VectorClock   vclock.Clock
	CreatedAt     time.Time
}
