package syncservice

import (
	"reflect"
	"strings"
	"testing"
)

func TestResolveTaskConflictFieldPolicy(t *testing.T) {
	tests := []struct {
		name       string
		incoming   map[string]any
		server     map[string]any
		wantField  string
		wantValue  any
		resolvable bool
	}{
		{
			name:       "equal titles keep",
			incoming:   map[string]any{"title": "Ship it"},
			server:     map[string]any{"title": "Ship it"},
			wantField:  "title",
			wantValue:  "Ship it",
			resolvable: true,
		},
		{
			name:       "status higher rank wins incoming",
			incoming:   map[string]any{"status": "in_progress"},
			server:     map[string]any{"status": "todo"},
			wantField:  "status",
			wantValue:  "in_progress",
			resolvable: true,
		},
		{
			name:       "status higher rank wins server",
			incoming:   map[string]any{"status": "blocked"},
			server:     map[string]any{"status": "done"},
			wantField:  "status",
			wantValue:  "done",
			resolvable: true,
		},
		{
			name:       "cancelled outranks done",
			incoming:   map[string]any{"status": "cancelled"},
			server:     map[string]any{"status": "done"},
			wantField:  "status",
			wantValue:  "cancelled",
			resolvable: true,
		},
		{
			name:       "priority urgent wins",
			incoming:   map[string]any{"priority": "urgent"},
			server:     map[string]any{"priority": "medium"},
			wantField:  "priority",
			wantValue:  "urgent",
			resolvable: true,
		},
		{
			name:       "earlier due date wins",
			incoming:   map[string]any{"due_date": float64(1000)},
			server:     map[string]any{"due_date": float64(2000)},
			wantField:  "due_date",
			wantValue:  float64(1000),
			resolvable: true,
		},
		{
			name:       "null due date loses to any date",
			incoming:   map[string]any{"due_date": nil},
			server:     map[string]any{"due_date": float64(2000)},
			wantField:  "due_date",
			wantValue:  float64(2000),
			resolvable: true,
		},
		{
			name:       "one-sided field taken as is",
			incoming:   map[string]any{"description": "from client"},
			server:     map[string]any{},
			wantField:  "description",
			wantValue:  "from client",
			resolvable: true,
		},
		{
			name:       "position server wins",
			incoming:   map[string]any{"position": "100"},
			server:     map[string]any{"position": "250"},
			wantField:  "position",
			wantValue:  "250",
			resolvable: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveTaskConflict(tt.incoming, tt.server)
			if res.Resolvable() != tt.resolvable {
				t.Fatalf("Resolvable() = %v, want %v (unresolvable: %v)",
					res.Resolvable(), tt.resolvable, res.Unresolvable)
			}
			got, ok := res.Merged[tt.wantField]
			if !ok {
				t.Fatalf("Merged missing %q: %v", tt.wantField, res.Merged)
			}
			if !reflect.DeepEqual(got, tt.wantValue) {
				t.Errorf("Merged[%q] = %v, want %v", tt.wantField, got, tt.wantValue)
			}
		})
	}
}

func TestResolveTaskConflictUnresolvable(t *testing.T) {
	tests := []struct {
		name     string
		incoming map[string]any
		server   map[string]any
		want     []string
	}{
		{
			name:     "divergent titles",
			incoming: map[string]any{"title": "Fix login"},
			server:   map[string]any{"title": "Fix signup"},
			want:     []string{"title"},
		},
		{
			name:     "divergent descriptions",
			incoming: map[string]any{"description": "a"},
			server:   map[string]any{"description": "b"},
			want:     []string{"description"},
		},
		{
			name:     "divergent assignment",
			incoming: map[string]any{"assigned_to": "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
			server:   map[string]any{"assigned_to": "6ba7b811-9dad-11d1-80b4-00c04fd430c8"},
			want:     []string{"assigned_to"},
		},
		{
			name: "custom field disagreement",
			incoming: map[string]any{
				"custom_fields": map[string]any{"sprint": "12"},
			},
			server: map[string]any{
				"custom_fields": map[string]any{"sprint": "13"},
			},
			want: []string{"custom_fields"},
		},
		{
			name: "multiple fields listed in policy order",
			incoming: map[string]any{
				"title":       "A",
				"description": "x",
				"status":      "in_progress",
			},
			server: map[string]any{
				"title":       "B",
				"description": "y",
				"status":      "todo",
			},
			want: []string{"title", "description"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveTaskConflict(tt.incoming, tt.server)
			if res.Resolvable() {
				t.Fatal("Resolvable() = true, want unresolvable")
			}
			if !reflect.DeepEqual(res.Unresolvable, tt.want) {
				t.Errorf("Unresolvable = %v, want %v", res.Unresolvable, tt.want)
			}
			reason := res.Reason()
			if !strings.Contains(reason, "Unresolvable fields: "+strings.Join(tt.want, ", ")) {
				t.Errorf("Reason() = %q, want it to list %v", reason, tt.want)
			}
		})
	}
}

func TestResolveTaskConflictTagUnion(t *testing.T) {
	res := ResolveTaskConflict(
		map[string]any{"tags": []any{"backend", "urgent"}},
		map[string]any{"tags": []string{"backend", "bug"}},
	)
	if !res.Resolvable() {
		t.Fatalf("tag merge should resolve, got unresolvable %v", res.Unresolvable)
	}
	want := []string{"backend", "bug", "urgent"}
	if !reflect.DeepEqual(res.Merged["tags"], want) {
		t.Errorf("tags = %v, want %v", res.Merged["tags"], want)
	}
}

func TestResolveTaskConflictCustomFieldUnion(t *testing.T) {
	res := ResolveTaskConflict(
		map[string]any{"custom_fields": map[string]any{"sprint": "12", "team": "core"}},
		map[string]any{"custom_fields": map[string]any{"sprint": "12", "reviewer": "dana"}},
	)
	if !res.Resolvable() {
		t.Fatalf("disjoint custom fields should merge, got %v", res.Unresolvable)
	}
	want := map[string]any{"sprint": "12", "team": "core", "reviewer": "dana"}
	if !reflect.DeepEqual(res.Merged["custom_fields"], want) {
		t.Errorf("custom_fields = %v, want %v", res.Merged["custom_fields"], want)
	}
}

// Mirrors the concurrent auto-resolvable scenario: same title, client
// moved status forward, same priority.
func TestResolveTaskConflictStatusAdvance(t *testing.T) {
	res := ResolveTaskConflict(
		map[string]any{"title": "T", "status": "in_progress", "priority": "medium"},
		map[string]any{"title": "T", "status": "todo", "priority": "medium"},
	)
	if !res.Resolvable() {
		t.Fatalf("should auto-resolve, got unresolvable %v", res.Unresolvable)
	}
	if res.Merged["status"] != "in_progress" {
		t.Errorf("status = %v, want in_progress", res.Merged["status"])
	}
	if res.Merged["title"] != "T" {
		t.Errorf("title = %v, want T", res.Merged["title"])
	}
	if res.Merged["priority"] != "medium" {
		t.Errorf("priority = %v, want medium", res.Merged["priority"])
	}
}

func TestResolveCommentConflict(t *testing.T) {
	tests := []struct {
		name     string
		incoming map[string]any
		server   map[string]any
		wantOK   bool
	}{
		{
			name:     "identical content auto-resolves",
			incoming: map[string]any{"content": "same words"},
			server:   map[string]any{"content": "same words"},
			wantOK:   true,
		},
		{
			name:     "divergent content goes manual",
			incoming: map[string]any{"content": "client words"},
			server:   map[string]any{"content": "server words"},
			wantOK:   false,
		},
		{
			name:     "one-sided content auto-resolves",
			incoming: map[string]any{},
			server:   map[string]any{"content": "server words"},
			wantOK:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ResolveCommentConflict(tt.incoming, tt.server)
			if ok != tt.wantOK {
				t.Errorf("ResolveCommentConflict() ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}
