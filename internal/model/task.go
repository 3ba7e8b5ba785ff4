package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taskmesh/taskmesh-api/internal/vclock"
)

// Status is the task workflow state. Rank order drives conflict
// auto-resolution: the further-along status wins a concurrent edit.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

var statusRank = map[Status]int{
	StatusTodo:       0,
	StatusInProgress: 1,
	StatusBlocked:    2,
	StatusDone:       3,
	StatusCancelled:  4,
}

// Rank returns the resolution precedence of the status; unknown
// statuses rank below todo.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Priority is the task urgency. Rank order drives conflict
// auto-resolution: higher urgency wins a concurrent edit.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return -1
}

func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// DefaultPosition is assigned to tasks created without an explicit
// fractional-index position.
var DefaultPosition = decimal.NewFromInt(1000)

// Task is the primary synchronized entity. Version is a monotonic
// human-friendly counter; VectorClock is authoritative for causality.
type Task struct {
	ID           uuid.UUID
	Organization uuid.UUID
	Project      *uuid.UUID
	Title        string
	Description  string
	Status       Status
	Priority     Priority
	DueDate      *time.Time
	CompletedAt  *time.Time
	Position     decimal.Decimal
	CreatedBy    uuid.UUID
	AssignedTo   *uuid.UUID
	Tags         []string
	CustomFields map[string]any

	Version            int
	VectorClock        vclock.Clock
	LastModifiedBy     *uuid.UUID
	LastModifiedDevice *uuid.UUID
	Checksum           string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Deleted reports whether the task is soft-deleted.
func (t *Task) Deleted() bool {
	return t.DeletedAt != nil
}

// SortedTags returns a sorted copy of the tag set.
func (t *Task) SortedTags() []string {
	out := make([]string, len(t.Tags))
	copy(out, t.Tags)
	sort.Strings(out)
	return out
}
