package model

import (
	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh-api/internal/syncx"
)

// TaskProjection renders a task in its canonical wire form: snake_case
// keys, millisecond timestamps, position as a decimal string, sorted
// tags. The same projection serves pull responses, conflict
// server_version payloads, tombstone snapshots, and the auto-resolver's
// view of server state.
func TaskProjection(t *Task) map[string]any {
	custom := t.CustomFields
	if custom == nil {
		custom = map[string]any{}
	}
	return map[string]any{
		"id":                   t.ID.String(),
		"organization":         t.Organization.String(),
		"project":              uuidPtr(t.Project),
		"title":                t.Title,
		"description":          t.Description,
		"status":               string(t.Status),
		"priority":             string(t.Priority),
		"due_date":             syncx.MsOfPtr(t.DueDate),
		"completed_at":         syncx.MsOfPtr(t.CompletedAt),
		"position":             t.Position.String(),
		"created_by":           t.CreatedBy.String(),
		"assigned_to":          uuidPtr(t.AssignedTo),
		"tags":                 t.SortedTags(),
		"custom_fields":        custom,
		"version":              t.Version,
		"vector_clock":         t.VectorClock.Copy(),
		"last_modified_by":     uuidPtr(t.LastModifiedBy),
		"last_modified_device": uuidPtr(t.LastModifiedDevice),
		"checksum":             t.Checksum,
		"created_at":           syncx.MsOf(t.CreatedAt),
		"updated_at":           syncx.MsOf(t.UpdatedAt),
		"deleted_at":           syncx.MsOfPtr(t.DeletedAt),
	}
}

// CommentProjection renders a comment in its canonical wire form.
func CommentProjection(c *Comment) map[string]any {
	return map[string]any{
		"id":                   c.ID.String(),
		"task":                 c.Task.String(),
		"author":               c.Author.String(),
		"parent":               uuidPtr(c.Parent),
		"content":              c.Content,
		"edited":               c.Edited,
		"version":              c.Version,
		"vector_clock":         c.VectorClock.Copy(),
		"last_modified_by":     uuidPtr(c.LastModifiedBy),
		"last_modified_device": uuidPtr(c.LastModifiedDevice),
		"created_at":           syncx.MsOf(c.CreatedAt),
		"updated_at":           syncx.MsOf(c.UpdatedAt),
		"deleted_at":           syncx.MsOfPtr(c.DeletedAt),
	}
}

func uuidPtr(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
