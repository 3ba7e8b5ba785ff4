package syncservice

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/taskmesh/taskmesh-api/internal/model"
	"github.com/taskmesh/taskmesh-api/internal/syncx"
)

// TaskResolution is the outcome of merging two concurrent task
// payloads. Merged holds the winning value for every content field
// present on either side; Unresolvable lists the fields that need a
// human decision. The merge is only applied when Unresolvable is empty.
type TaskResolution struct {
	Merged       map[string]any
	Unresolvable []string
}

// Resolvable reports whether the merge can be applied automatically.
func (r TaskResolution) Resolvable() bool {
	return len(r.Unresolvable) == 0
}

// Reason renders the conflict reason recorded and surfaced for a merge
// with unresolvable fields.
func (r TaskResolution) Reason() string {
	return "Concurrent modification detected. Unresolvable fields: " +
		strings.Join(r.Unresolvable, ", ")
}

// ResolveTaskConflict merges a concurrent incoming payload against the
// server's canonical projection, field by field over the union of
// fields present on either side:
//
//	title, description, assigned_to  equal keeps, unequal is unresolvable
//	status, priority                 higher rank wins
//	due_date                         earlier non-null wins
//	tags                             sorted set union
//	custom_fields                    key-wise merge, per-key disagreement
//	                                 is unresolvable
//	position                         server wins
//	project, completed_at            equal or one-sided merges, else
//	                                 server wins
func ResolveTaskConflict(incoming, server map[string]any) TaskResolution {
	res := TaskResolution{Merged: map[string]any{}}

	res.equalOrUnresolvable("title", incoming, server)
	res.equalOrUnresolvable("description", incoming, server)

	if v, ok := pickRanked("status", incoming, server, func(s string) int {
		return model.Status(s).Rank()
	}); ok {
		res.Merged["status"] = v
	}
	if v, ok := pickRanked("priority", incoming, server, func(s string) int {
		return model.Priority(s).Rank()
	}); ok {
		res.Merged["priority"] = v
	}

	if v, ok := pickEarlierDate("due_date", incoming, server); ok {
		res.Merged["due_date"] = v
	}

	res.equalOrUnresolvable("assigned_to", incoming, server)

	if v, ok := unionTags(incoming, server); ok {
		res.Merged["tags"] = v
	}

	res.mergeCustomFields(incoming, server)

	// position, project, completed_at: server wins when both sides
	// carry the field.
	for _, field := range []string{"position", "project", "completed_at"} {
		if v, ok := serverWins(field, incoming, server); ok {
			res.Merged[field] = v
		}
	}

	return res
}

// ResolveCommentConflict applies the comment policy: identical content
// auto-resolves, divergent content goes to manual resolution.
func ResolveCommentConflict(incoming, server map[string]any) (map[string]any, bool) {
	in, inOk := incoming["content"]
	sv, svOk := server["content"]
	switch {
	case inOk && svOk:
		if normScalar(in) != normScalar(sv) {
			return nil, false
		}
		return map[string]any{"content": sv}, true
	case inOk:
		return map[string]any{"content": in}, true
	case svOk:
		return map[string]any{"content": sv}, true
	default:
		return map[string]any{}, true
	}
}

// CommentConflictReason is recorded for comments that need manual
// resolution.
const CommentConflictReason = "Concurrent modification detected. Unresolvable fields: content"

func (r *TaskResolution) equalOrUnresolvable(field string, incoming, server map[string]any) {
	in, inOk := incoming[field]
	sv, svOk := server[field]
	switch {
	case inOk && svOk:
		if normScalar(in) != normScalar(sv) {
			r.Unresolvable = append(r.Unresolvable, field)
			return
		}
		r.Merged[field] = sv
	case inOk:
		r.Merged[field] = in
	case svOk:
		r.Merged[field] = sv
	}
}

func (r *TaskResolution) mergeCustomFields(incoming, server map[string]any) {
	in, inOk := syncx.GetMap(incoming, "custom_fields")
	sv, svOk := syncx.GetMap(server, "custom_fields")
	switch {
	case inOk && svOk:
		merged := make(map[string]any, len(in)+len(sv))
		for k, v := range sv {
			merged[k] = v
		}
		for k, v := range in {
			if old, exists := sv[k]; exists && !reflect.DeepEqual(old, v) {
				r.Unresolvable = append(r.Unresolvable, "custom_fields")
				return
			}
			merged[k] = v
		}
		r.Merged["custom_fields"] = merged
	case inOk:
		r.Merged["custom_fields"] = in
	case svOk:
		r.Merged["custom_fields"] = sv
	}
}

// pickRanked keeps the value whose rank is higher; an unknown value
// ranks lowest and a tie keeps the server's.
func pickRanked(field string, incoming, server map[string]any, rank func(string) int) (any, bool) {
	in, inOk := incoming[field]
	sv, svOk := server[field]
	switch {
	case inOk && svOk:
		if rank(normScalar(in)) > rank(normScalar(sv)) {
			return in, true
		}
		return sv, true
	case inOk:
		return in, true
	case svOk:
		return sv, true
	default:
		return nil, false
	}
}

// pickEarlierDate keeps the closer (earlier) non-null date; null loses
// to any date.
func pickEarlierDate(field string, incoming, server map[string]any) (any, bool) {
	in, inOk := incoming[field]
	sv, svOk := server[field]
	if !inOk && !svOk {
		return nil, false
	}
	inMs, inHas := dateMs(in)
	svMs, svHas := dateMs(sv)
	switch {
	case inHas && svHas:
		if inMs < svMs {
			return in, true
		}
		return sv, true
	case inHas:
		return in, true
	case svHas:
		return sv, true
	default:
		return nil, true
	}
}

func unionTags(incoming, server map[string]any) ([]string, bool) {
	in, inOk := tagList(incoming["tags"])
	sv, svOk := tagList(server["tags"])
	if !inOk && !svOk {
		return nil, false
	}
	set := map[string]struct{}{}
	for _, t := range in {
		set[t] = struct{}{}
	}
	for _, t := range sv {
		set[t] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, true
}

func serverWins(field string, incoming, server map[string]any) (any, bool) {
	if sv, ok := server[field]; ok {
		return sv, true
	}
	if in, ok := incoming[field]; ok {
		return in, true
	}
	return nil, false
}

// normScalar renders a payload value for equality checks. Payloads
// arrive from two shapes of the same data (decoded client JSON and the
// server projection), so numbers and strings must compare by content.
func normScalar(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	case *int64:
		if t == nil {
			return ""
		}
		return fmt.Sprintf("%d", *t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func dateMs(v any) (int64, bool) {
	if v == nil {
		return 0, false
	}
	if p, ok := v.(*int64); ok {
		if p == nil {
			return 0, false
		}
		return *p, true
	}
	return syncx.ParseTimeToMs(v)
}

func tagList(v any) ([]string, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}
