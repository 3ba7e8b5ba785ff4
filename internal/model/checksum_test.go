package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taskmesh/taskmesh-api/internal/vclock"
)

func baseTask() *Task {
	return &Task{
		ID:           uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Organization: uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		Title:        "Write report",
		Description:  "quarterly numbers",
		Status:       StatusTodo,
		Priority:     PriorityMedium,
		Position:     DefaultPosition,
		CreatedBy:    uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		Tags:         []string{"work", "q3"},
		CustomFields: map[string]any{"estimate": "2d"},
		Version:      1,
		VectorClock:  vclock.Clock{"dev-a": 1},
		CreatedAt:    time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestComputeTaskChecksum_Stable(t *testing.T) {
	a := baseTask()
	b := baseTask()

	// Same content in a different tag order hashes identically.
	b.Tags = []string{"q3", "work"}

	ca := ComputeTaskChecksum(a)
	cb := ComputeTaskChecksum(b)
	if ca == "" {
		t.Fatal("checksum should not be empty")
	}
	if len(ca) != 64 {
		t.Errorf("checksum length = %d, want 64 hex chars", len(ca))
	}
	if ca != cb {
		t.Errorf("checksum not stable under tag reordering: %s != %s", ca, cb)
	}
}

func TestComputeTaskChecksum_ContentSensitive(t *testing.T) {
	base := ComputeTaskChecksum(baseTask())

	tests := []struct {
		name   string
		mutate func(*Task)
	}{
		{"title change", func(tk *Task) { tk.Title = "Write summary" }},
		{"description change", func(tk *Task) { tk.Description = "other" }},
		{"status change", func(tk *Task) { tk.Status = StatusDone }},
		{"priority change", func(tk *Task) { tk.Priority = PriorityUrgent }},
		{"due date set", func(tk *Task) {
			due := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
			tk.DueDate = &due
		}},
		{"assignee set", func(tk *Task) {
			u := uuid.MustParse("44444444-4444-4444-4444-444444444444")
			tk.AssignedTo = &u
		}},
		{"tag added", func(tk *Task) { tk.Tags = append(tk.Tags, "late") }},
		{"custom field change", func(tk *Task) { tk.CustomFields = map[string]any{"estimate": "3d"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := baseTask()
			tt.mutate(tk)
			if got := ComputeTaskChecksum(tk); got == base {
				t.Errorf("checksum unchanged after %s", tt.name)
			}
		})
	}
}

func TestComputeTaskChecksum_IgnoresNonContent(t *testing.T) {
	base := ComputeTaskChecksum(baseTask())

	tk := baseTask()
	tk.Version = 9
	tk.VectorClock = vclock.Clock{"dev-a": 7, "dev-b": 2}
	tk.Position = decimal.NewFromInt(500)
	tk.UpdatedAt = tk.UpdatedAt.Add(time.Hour)

	if got := ComputeTaskChecksum(tk); got != base {
		t.Error("checksum should depend only on content fields")
	}
}

func TestTaskProjection(t *testing.T) {
	tk := baseTask()
	due := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	tk.DueDate = &due
	tk.Checksum = ComputeTaskChecksum(tk)

	p := TaskProjection(tk)

	if p["id"] != tk.ID.String() {
		t.Errorf("projection id = %v", p["id"])
	}
	if p["status"] != "todo" || p["priority"] != "medium" {
		t.Errorf("projection status/priority = %v/%v", p["status"], p["priority"])
	}
	if p["position"] != "1000" {
		t.Errorf("projection position = %v, want decimal string", p["position"])
	}
	if ms, ok := p["due_date"].(*int64); !ok || *ms != due.UnixMilli() {
		t.Errorf("projection due_date = %v, want %d", p["due_date"], due.UnixMilli())
	}
	if p["deleted_at"].(*int64) != nil {
		t.Errorf("projection deleted_at = %v, want nil", p["deleted_at"])
	}
	if p["assigned_to"] != nil {
		t.Errorf("projection assigned_to = %v, want nil", p["assigned_to"])
	}
	if got := p["tags"].([]string); len(got) != 2 || got[0] != "q3" {
		t.Errorf("projection tags = %v, want sorted", got)
	}
	if p["checksum"] != tk.Checksum {
		t.Errorf("projection checksum = %v", p["checksum"])
	}

	// The projected clock is a copy; mutating it must not touch the task.
	p["vector_clock"].(vclock.Clock)["dev-z"] = 9
	if _, ok := tk.VectorClock["dev-z"]; ok {
		t.Error("projection leaked a mutable reference to the task clock")
	}
}

func TestCommentProjection(t *testing.T) {
	now := time.Date(2024, 11, 2, 10, 0, 0, 0, time.UTC)
	c := &Comment{
		ID:          uuid.MustParse("55555555-5555-5555-5555-555555555555"),
		Task:        uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Author:      uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		Content:     "looks good",
		Version:     2,
		VectorClock: vclock.Clock{"dev-a": 2},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	p := CommentProjection(c)
	if p["content"] != "looks good" {
		t.Errorf("projection content = %v", p["content"])
	}
	if p["parent"] != nil {
		t.Errorf("projection parent = %v, want nil", p["parent"])
	}
	if p["version"] != 2 {
		t.Errorf("projection version = %v", p["version"])
	}
	if p["created_at"] != now.UnixMilli() {
		t.Errorf("projection created_at = %v, want %d", p["created_at"], now.UnixMilli())
	}
}

func TestStatusPriorityRanks(t *testing.T) {
	if StatusDone.Rank() <= StatusInProgress.Rank() {
		t.Error("done should outrank in_progress")
	}
	if StatusCancelled.Rank() <= StatusDone.Rank() {
		t.Error("cancelled should outrank done")
	}
	if PriorityUrgent.Rank() <= PriorityLow.Rank() {
		t.Error("urgent should outrank low")
	}
	if Status("bogus").Valid() {
		t.Error("bogus status should be invalid")
	}
	if Status("bogus").Rank() != -1 {
		t.Error("bogus status should rank below all valid statuses")
	}
	if !PriorityHigh.Valid() {
		t.Error("high priority should be valid")
	}
}

func TestSyncLogComplete(t *testing.T) {
	l := &SyncLog{
		ID:        uuid.New(),
		User:      uuid.New(),
		SyncType:  SyncPush,
		CreatedAt: time.Now().UTC().Add(-50 * time.Millisecond),
	}

	l.Complete(SyncSuccess, "")

	if l.CompletedAt == nil {
		t.Fatal("CompletedAt should be set")
	}
	if l.Status != SyncSuccess {
		t.Errorf("Status = %v, want success", l.Status)
	}
	if l.DurationMs == nil || *l.DurationMs < 0 {
		t.Errorf("DurationMs = %v, want non-negative", l.DurationMs)
	}
}
