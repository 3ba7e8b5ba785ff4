package syncx

import "time"

// NowMs returns current Unix milliseconds timestamp (UTC)
func NowMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// MsOf converts an instant to Unix milliseconds.
func MsOf(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// MsOfPtr converts an optional instant to optional Unix milliseconds.
func MsOfPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UTC().UnixMilli()
	return &ms
}

// TimeOf converts Unix milliseconds to a UTC instant.
func TimeOf(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
