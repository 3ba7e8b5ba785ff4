package syncx

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// GetString safely extracts a string value from a map
func GetString(m map[string]any, k string) (string, bool) {
	if v, ok := m[k]; ok {
		if s, ok2 := v.(string); ok2 {
			return s, true
		}
	}
	return "", false
}

// GetMap safely extracts a nested map from a map
func GetMap(m map[string]any, k string) (map[string]any, bool) {
	if v, ok := m[k]; ok {
		if mm, ok2 := v.(map[string]any); ok2 {
			return mm, true
		}
	}
	return nil, false
}

// GetBool safely extracts a bool value from a map
func GetBool(m map[string]any, k string) (bool, bool) {
	if v, ok := m[k]; ok {
		if b, ok2 := v.(bool); ok2 {
			return b, true
		}
	}
	return false, false
}

// GetInt extracts an integer value, accepting the float64 that
// encoding/json produces for JSON numbers.
func GetInt(m map[string]any, k string) (int, bool) {
	if v, ok := m[k]; ok {
		switch n := v.(type) {
		case float64:
			return int(n), true
		case int:
			return n, true
		case int64:
			return int(n), true
		}
	}
	return 0, false
}

// GetStrings extracts a string slice from a decoded JSON array,
// dropping non-string elements.
func GetStrings(m map[string]any, k string) ([]string, bool) {
	v, ok := m[k]
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// ParseUUID parses a UUID string
func ParseUUID(s string) (uuid.UUID, bool) {
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	return id, err == nil
}

// GetUUID extracts and parses a UUID-valued field.
func GetUUID(m map[string]any, k string) (uuid.UUID, bool) {
	s, ok := GetString(m, k)
	if !ok {
		return uuid.Nil, false
	}
	return ParseUUID(s)
}

// ParseTimeToMs converts a client-supplied timestamp to Unix
// milliseconds. Clients send either a numeric epoch-ms value or an
// ISO-8601 string; both are accepted.
func ParseTimeToMs(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		return parseTimeString(t)
	}
	return 0, false
}

func parseTimeString(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().UnixMilli(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().UnixMilli(), true
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, true
	}
	return 0, false
}

// GetTimeMs extracts a timestamp field as Unix milliseconds.
func GetTimeMs(m map[string]any, k string) (int64, bool) {
	v, ok := m[k]
	if !ok || v == nil {
		return 0, false
	}
	return ParseTimeToMs(v)
}
