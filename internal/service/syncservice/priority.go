package syncservice

import "github.com/taskmesh/taskmesh-api/internal/model"

// SyncPriority classifies a change from 1 (most urgent) to 5 for
// client-side scheduling hints. Recorded in sync log metadata; not a
// wire field.
func SyncPriority(entity model.EntityType, op Operation, data map[string]any) int {
	if op == OpCreate || op == OpDelete {
		return 1
	}
	if _, ok := data["status"]; ok {
		return 1
	}
	if hasAnyKey(data, "assigned_to", "title") {
		return 2
	}
	if hasAnyKey(data, "description", "content", "due_date") {
		return 3
	}
	if hasAnyKey(data, "tags", "custom_fields") {
		return 4
	}
	return 5
}

func hasAnyKey(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
