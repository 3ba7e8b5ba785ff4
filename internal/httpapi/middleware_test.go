package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

func TestRequestIDEchoesHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetReqID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "client-supplied-id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "client-supplied-id" {
		t.Errorf("context request id = %q, want client-supplied-id", seen)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "client-supplied-id" {
		t.Errorf("response X-Request-Id = %q, want echo of client header", got)
	}
}

func TestRequestIDMintsWhenAbsent(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	got := rec.Header().Get("X-Request-Id")
	if got == "" {
		t.Fatal("response X-Request-Id empty, want minted id")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("minted request id %q is not a UUID: %v", got, err)
	}
}

func TestTimingSetsDurationHeader(t *testing.T) {
	h := Timing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-Duration") == "" {
		t.Error("X-Request-Duration header missing")
	}
}

func TestWriteErrorBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/sync/pull/", nil)
	rec := httptest.NewRecorder()

	writeError(rec, req, http.StatusBadRequest, CodeValidation, "since must be a millisecond timestamp")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`"error"`, `"code":"VALIDATION_ERROR"`, `"timestamp"`, `"requestId"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %s missing %s", body, want)
		}
	}
}
