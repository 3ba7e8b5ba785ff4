package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// ComputeTaskChecksum hashes the task's content fields in a canonical
// JSON form (sorted keys, sorted tags, RFC3339 due date). Clients that
// have lost local state compare this against their own recomputation
// to detect divergence, so the form must stay stable across releases.
func ComputeTaskChecksum(t *Task) string {
	var due any
	if t.DueDate != nil {
		due = t.DueDate.UTC().Format(time.RFC3339)
	}
	var assigned any
	if t.AssignedTo != nil {
		assigned = t.AssignedTo.String()
	}
	custom := t.CustomFields
	if custom == nil {
		custom = map[string]any{}
	}

	content := map[string]any{
		"title":         t.Title,
		"description":   t.Description,
		"status":        string(t.Status),
		"priority":      string(t.Priority),
		"due_date":      due,
		"assigned_to":   assigned,
		"tags":          t.SortedTags(),
		"custom_fields": custom,
	}

	// encoding/json emits map keys in sorted order, which is exactly
	// the canonical form required here.
	raw, err := json.Marshal(content)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
