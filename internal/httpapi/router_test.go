package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/taskmesh/taskmesh-api/internal/auth"
	"github.com/taskmesh/taskmesh-api/internal/config"
	"github.com/taskmesh/taskmesh-api/internal/service/syncservice"
)

// newTestServer wires a Server with no database. Routes that never
// reach storage (health, validation failures, auth rejections) are
// testable this way.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	return &Server{
		Sync: &syncservice.Service{},
		Issuer: &auth.Issuer{
			Secret:     []byte("test-secret"),
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		Limiter: NewLocalLimiter(),
		Cfg: &config.Config{
			SyncPush:           config.RateLimit{MaxRequests: 60, WindowSeconds: 60, Burst: 10},
			SyncPull:           config.RateLimit{MaxRequests: 120, WindowSeconds: 60, Burst: 20},
			ConflictResolution: config.RateLimit{MaxRequests: 30, WindowSeconds: 60, Burst: 5},
		},
	}
}

func doReq(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t).Routes()
	rec := doReq(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s, want status ok", rec.Body.String())
	}
}

func TestSyncPathsRejectMissingToken(t *testing.T) {
	h := newTestServer(t).Routes()
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/sync/push/"},
		{http.MethodGet, "/api/sync/pull/"},
		{http.MethodGet, "/api/sync/conflicts/"},
		{http.MethodGet, "/api/tasks/"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := doReq(t, h, tt.method, tt.path, "")
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), CodeUnauthorized) {
				t.Errorf("body = %s, want code %s", rec.Body.String(), CodeUnauthorized)
			}
		})
	}
}

func TestSyncPathsRejectGarbageToken(t *testing.T) {
	h := newTestServer(t).Routes()
	r := httptest.NewRequest(http.MethodGet, "/api/sync/pull/", nil)
	r.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	h := newTestServer(t).Routes()
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", "{nope"},
		{"missing fields", `{"email":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doReq(t, h, http.MethodPost, "/api/auth/login/", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), CodeValidation) {
				t.Errorf("body = %s, want code %s", rec.Body.String(), CodeValidation)
			}
		})
	}
}

func TestRefreshRejectsInvalidToken(t *testing.T) {
	h := newTestServer(t).Routes()
	rec := doReq(t, h, http.MethodPost, "/api/auth/refresh/", `{"refresh":"garbage"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
