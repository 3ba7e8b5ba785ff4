package syncx

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func TestGetString(t *testing.T) {
	m := map[string]any{
		"title":  "Buy milk",
		"count":  float64(3),
		"nested": map[string]any{},
	}

	tests := []struct {
		name   string
		key    string
		want   string
		wantOK bool
	}{
		{name: "present string", key: "title", want: "Buy milk", wantOK: true},
		{name: "non-string value", key: "count", want: "", wantOK: false},
		{name: "missing key", key: "nope", want: "", wantOK: false},
		{name: "map value", key: "nested", want: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GetString(m, tt.key)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("GetString(%q) = (%q, %v), want (%q, %v)", tt.key, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestGetInt(t *testing.T) {
	m := map[string]any{
		"version": float64(4),
		"title":   "x",
	}

	if v, ok := GetInt(m, "version"); !ok || v != 4 {
		t.Errorf("GetInt(version) = (%d, %v), want (4, true)", v, ok)
	}
	if _, ok := GetInt(m, "title"); ok {
		t.Error("GetInt(title) should not succeed for a string value")
	}
	if _, ok := GetInt(m, "missing"); ok {
		t.Error("GetInt(missing) should not succeed")
	}
}

func TestGetStrings(t *testing.T) {
	tests := []struct {
		name   string
		m      map[string]any
		want   []string
		wantOK bool
	}{
		{
			name:   "string array",
			m:      map[string]any{"tags": []any{"urgent", "home"}},
			want:   []string{"urgent", "home"},
			wantOK: true,
		},
		{
			name:   "mixed array drops non-strings",
			m:      map[string]any{"tags": []any{"a", float64(1), "b"}},
			want:   []string{"a", "b"},
			wantOK: true,
		},
		{
			name:   "empty array",
			m:      map[string]any{"tags": []any{}},
			want:   []string{},
			wantOK: true,
		},
		{
			name:   "not an array",
			m:      map[string]any{"tags": "urgent"},
			want:   nil,
			wantOK: false,
		},
		{
			name:   "missing",
			m:      map[string]any{},
			want:   nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GetStrings(tt.m, "tags")
			if ok != tt.wantOK || !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetStrings() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestGetUUID(t *testing.T) {
	id := uuid.MustParse("c1d9b7dc-a1b2-4c3d-9e8f-7a6b5c4d3e2f")
	m := map[string]any{
		"task": id.String(),
		"bad":  "not-a-uuid",
	}

	if got, ok := GetUUID(m, "task"); !ok || got != id {
		t.Errorf("GetUUID(task) = (%v, %v), want (%v, true)", got, ok, id)
	}
	if _, ok := GetUUID(m, "bad"); ok {
		t.Error("GetUUID(bad) should fail for malformed UUID")
	}
	if _, ok := GetUUID(m, "missing"); ok {
		t.Error("GetUUID(missing) should fail")
	}
}

func TestParseTimeToMs(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   int64
		wantOK bool
	}{
		{
			name:   "numeric milliseconds",
			input:  float64(1730631600000),
			want:   1730631600000,
			wantOK: true,
		},
		{
			name:   "RFC3339 string",
			input:  "2024-11-03T10:00:00Z",
			want:   1730628000000,
			wantOK: true,
		},
		{
			name:   "RFC3339 with nanoseconds",
			input:  "2024-11-03T10:00:00.500Z",
			want:   1730628000500,
			wantOK: true,
		},
		{
			name:   "numeric string",
			input:  "1730631600000",
			want:   1730631600000,
			wantOK: true,
		},
		{
			name:   "empty string",
			input:  "",
			wantOK: false,
		},
		{
			name:   "garbage string",
			input:  "not-a-timestamp",
			wantOK: false,
		},
		{
			name:   "nil",
			input:  nil,
			wantOK: false,
		},
		{
			name:   "bool",
			input:  true,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimeToMs(tt.input)
			if ok != tt.wantOK {
				t.Errorf("ParseTimeToMs(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
				return
			}
			if ok && got != tt.want {
				t.Errorf("ParseTimeToMs(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestGetTimeMs(t *testing.T) {
	m := map[string]any{
		"due_date": "2024-11-03T10:00:00Z",
		"null_due": nil,
	}

	if ms, ok := GetTimeMs(m, "due_date"); !ok || ms != 1730628000000 {
		t.Errorf("GetTimeMs(due_date) = (%d, %v), want (1730628000000, true)", ms, ok)
	}
	if _, ok := GetTimeMs(m, "null_due"); ok {
		t.Error("GetTimeMs on explicit null should report absent")
	}
	if _, ok := GetTimeMs(m, "missing"); ok {
		t.Error("GetTimeMs on missing key should report absent")
	}
}

func TestMsRoundTrip(t *testing.T) {
	ms := NowMs()
	got := MsOf(TimeOf(ms))
	if got != ms {
		t.Errorf("MsOf(TimeOf(%d)) = %d, want identity", ms, got)
	}

	if MsOfPtr(nil) != nil {
		t.Error("MsOfPtr(nil) should be nil")
	}
	at := TimeOf(1730628000000)
	if p := MsOfPtr(&at); p == nil || *p != 1730628000000 {
		t.Errorf("MsOfPtr(%v) = %v, want 1730628000000", at, p)
	}
}
