package syncservice

import (
	"testing"

	"github.com/taskmesh/taskmesh-api/internal/model"
)

func TestSyncPriority(t *testing.T) {
	tests := []struct {
		name   string
		entity model.EntityType
		op     Operation
		data   map[string]any
		want   int
	}{
		{"create is top priority", model.EntityTask, OpCreate, map[string]any{"title": "x"}, 1},
		{"delete is top priority", model.EntityTask, OpDelete, nil, 1},
		{"status change is top priority", model.EntityTask, OpUpdate, map[string]any{"status": "done"}, 1},
		{"assignment change", model.EntityTask, OpUpdate, map[string]any{"assigned_to": "u"}, 2},
		{"title change", model.EntityTask, OpUpdate, map[string]any{"title": "x"}, 2},
		{"description change", model.EntityTask, OpUpdate, map[string]any{"description": "x"}, 3},
		{"comment content change", model.EntityComment, OpUpdate, map[string]any{"content": "x"}, 3},
		{"due date change", model.EntityTask, OpUpdate, map[string]any{"due_date": 123}, 3},
		{"tag change", model.EntityTask, OpUpdate, map[string]any{"tags": []any{"a"}}, 4},
		{"anything else", model.EntityTask, OpUpdate, map[string]any{"position": "10"}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SyncPriority(tt.entity, tt.op, tt.data); got != tt.want {
				t.Errorf("SyncPriority() = %d, want %d", got, tt.want)
			}
		})
	}
}
