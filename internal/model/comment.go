package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh-api/internal/vclock"
)

// Comment is a threaded note on a task. A parent comment, when set,
// belongs to the same task.
type Comment struct {
	ID      uuid.UUID
	Task    uuid.UUID
	Author  uuid.UUID
	Parent  *uuid.UUID
	Content string
	Edited  bool

	Version            int
	VectorClock        vclock.Clock
	LastModifiedBy     *uuid.UUID
	LastModifiedDevice *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Deleted reports whether the comment is soft-deleted.
func (c *Comment) Deleted() bool {
	return c.DeletedAt != nil
}
