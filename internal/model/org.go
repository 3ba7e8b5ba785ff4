package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh-api/internal/vclock"
)

// Role is a user's permission tier within an organization.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	}
	return false
}

// Organization is the tenancy boundary: every task, comment,
// tombstone, and project belongs to exactly one org.
type Organization struct {
	ID             uuid.UUID
	Name           string
	Slug           string
	Settings       map[string]any
	StorageQuotaMB int64
	StorageUsedMB  int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// User is an authenticated principal. Email is unique within an org
// among non-deleted users.
type User struct {
	ID           uuid.UUID
	Organization uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Device is one of a user's sync endpoints. Its clock accumulates the
// merge of every clock the device has pushed and only grows.
type Device struct {
	ID          uuid.UUID
	User        uuid.UUID
	Fingerprint string
	Name        string
	VectorClock vclock.Clock
	LastSyncAt  *time.Time
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Project groups tasks inside an organization. Tasks reference it
// optionally; sync treats it as opaque.
type Project struct {
	ID           uuid.UUID
	Organization uuid.UUID
	Name         string
	Description  string
	IsArchived   bool
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
