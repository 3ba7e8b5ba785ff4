package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskmesh/taskmesh-api/internal/auth"
	"github.com/taskmesh/taskmesh-api/internal/model"
	"github.com/taskmesh/taskmesh-api/internal/store"
)

// Authenticate validates the bearer access token, loads the live user
// row, and injects the principal into the request context. Tokens for
// deleted or deactivated users are rejected even while unexpired.
func (s *Server) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.Issuer.Verify(raw, auth.TokenAccess)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "invalid or expired token")
			return
		}

		u, err := store.GetUserLive(r.Context(), s.DB, claims.UserID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to load user")
			return
		}
		if u == nil {
			writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "user no longer active")
			return
		}

		p := auth.Principal{
			UserID:       u.ID,
			Organization: u.Organization,
			Email:        u.Email,
			Role:         u.Role,
		}
		ctx := auth.WithPrincipal(r.Context(), p)
		logger := log.Ctx(ctx).With().
			Str("userId", p.UserID.String()).
			Str("org", p.Organization.String()).
			Logger()
		ctx = logger.WithContext(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principal returns the authenticated principal. Routes behind
// Authenticate always have one; the guard covers misconfiguration.
func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "not authenticated")
	}
	return p, ok
}

// device resolves the X-Device-Id header to an active device owned by
// the caller. Writes a 400 INVALID_DEVICE response and returns nil when
// the header is missing, malformed, or names someone else's device.
func (s *Server) device(w http.ResponseWriter, r *http.Request, p auth.Principal) *model.Device {
	raw := r.Header.Get("X-Device-Id")
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, CodeInvalidDevice, "X-Device-Id header is required")
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidDevice, "X-Device-Id is not a valid UUID")
		return nil
	}

	d, err := store.GetDeviceForUser(r.Context(), s.DB, p.UserID, id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to load device")
		return nil
	}
	if d == nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidDevice, "device not registered to this user")
		return nil
	}
	return d
}
