package syncservice

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taskmesh/taskmesh-api/internal/model"
	"github.com/taskmesh/taskmesh-api/internal/syncx"
)

// applyTaskPayload overwrites the task's content fields with values
// present in the payload. Absent keys fall back to the stored value;
// an explicit null clears nullable fields. Identity and sync metadata
// (id, org, clock, version, attribution, checksum, timestamps) are
// never taken from the payload here.
func applyTaskPayload(t *model.Task, data map[string]any) {
	if v, ok := syncx.GetString(data, "title"); ok {
		t.Title = v
	}
	if v, ok := syncx.GetString(data, "description"); ok {
		t.Description = v
	}
	if v, ok := syncx.GetString(data, "status"); ok && model.Status(v).Valid() {
		t.Status = model.Status(v)
	}
	if v, ok := syncx.GetString(data, "priority"); ok && model.Priority(v).Valid() {
		t.Priority = model.Priority(v)
	}
	if raw, ok := data["due_date"]; ok {
		t.DueDate = timeFromPayload(raw)
	}
	if raw, ok := data["completed_at"]; ok {
		t.CompletedAt = timeFromPayload(raw)
	}
	if raw, ok := data["position"]; ok {
		if pos, ok := decimalFromPayload(raw); ok {
			t.Position = pos
		}
	}
	if raw, ok := data["assigned_to"]; ok {
		if raw == nil {
			t.AssignedTo = nil
		} else if id, ok := syncx.GetUUID(data, "assigned_to"); ok {
			t.AssignedTo = &id
		}
	}
	if raw, ok := data["project"]; ok {
		if raw == nil {
			t.Project = nil
		} else if id, ok := syncx.GetUUID(data, "project"); ok {
			t.Project = &id
		}
	}
	if tags, ok := tagList(data["tags"]); ok {
		t.Tags = tags
	}
	if cf, ok := syncx.GetMap(data, "custom_fields"); ok {
		t.CustomFields = cf
	}
}

// applyCommentPayload overwrites the comment's content fields with
// values present in the payload.
func applyCommentPayload(c *model.Comment, data map[string]any) {
	if v, ok := syncx.GetString(data, "content"); ok {
		c.Content = v
	}
	if raw, ok := data["parent"]; ok {
		if raw == nil {
			c.Parent = nil
		} else if id, ok := syncx.GetUUID(data, "parent"); ok {
			c.Parent = &id
		}
	}
	if v, ok := syncx.GetBool(data, "edited"); ok {
		c.Edited = v
	}
}

func timeFromPayload(v any) *time.Time {
	if v == nil {
		return nil
	}
	ms, ok := syncx.ParseTimeToMs(v)
	if !ok {
		return nil
	}
	t := syncx.TimeOf(ms)
	return &t
}

func decimalFromPayload(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	default:
		return decimal.Decimal{}, false
	}
}

// payloadVersion extracts the client's version counter, defaulting to
// one.
func payloadVersion(data map[string]any) int {
	if v, ok := syncx.GetInt(data, "version"); ok && v > 0 {
		return v
	}
	return 1
}

// taskDiff computes the per-field {from, to} change set between two
// projections, content fields only.
func taskDiff(before, after map[string]any) map[string]any {
	diff := map[string]any{}
	for _, field := range []string{"title", "description", "status", "priority",
		"due_date", "completed_at", "position", "assigned_to", "project",
		"tags", "custom_fields", "deleted_at"} {
		b, a := before[field], after[field]
		if normValue(b) != normValue(a) {
			diff[field] = map[string]any{"from": b, "to": a}
		}
	}
	return diff
}

// normValue renders any projection value, including slices and maps,
// for equality checks. encoding/json sorts map keys, so the rendering
// is stable.
func normValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
