package httpapi

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskmesh/taskmesh-api/internal/auth"
	"github.com/taskmesh/taskmesh-api/internal/store"
)

type loginReq struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	DeviceFingerprint string `json:"deviceFingerprint"`
	DeviceName        string `json:"deviceName"`
}

type loginResp struct {
	Access  string         `json:"access"`
	Refresh string         `json:"refresh"`
	User    map[string]any `json:"user"`
	Device  map[string]any `json:"device,omitempty"`
}

// Login verifies credentials, optionally registers the calling device,
// and returns a token pair.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "email and password are required")
		return
	}

	u, err := store.GetUserByEmail(r.Context(), s.DB, req.Email)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "login failed")
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		// Same answer for unknown email and wrong password.
		writeError(w, r, http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password")
		return
	}

	tokens, err := s.Issuer.Issue(u)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to issue tokens")
		return
	}

	resp := loginResp{
		Access:  tokens.Access,
		Refresh: tokens.Refresh,
		User: map[string]any{
			"id":           u.ID.String(),
			"email":        u.Email,
			"name":         u.Name,
			"role":         string(u.Role),
			"organization": u.Organization.String(),
		},
	}

	if req.DeviceFingerprint != "" {
		d, err := store.FindOrCreateDevice(r.Context(), s.DB, u.ID, req.DeviceFingerprint, req.DeviceName)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to register device")
			return
		}
		resp.Device = map[string]any{
			"id":          d.ID.String(),
			"fingerprint": d.Fingerprint,
			"name":        d.Name,
		}
	}

	log.Ctx(r.Context()).Info().
		Str("userId", u.ID.String()).
		Bool("deviceRegistered", resp.Device != nil).
		Msg("login")
	writeJSON(w, http.StatusOK, resp)
}

type refreshReq struct {
	Refresh string `json:"refresh"`
}

// Refresh exchanges a valid refresh token for a new access token. The
// user row is re-checked so deactivation cuts refresh off too.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Refresh == "" {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "refresh token is required")
		return
	}

	claims, err := s.Issuer.Verify(req.Refresh, auth.TokenRefresh)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "invalid or expired refresh token")
		return
	}

	u, err := store.GetUserLive(r.Context(), s.DB, claims.UserID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "refresh failed")
		return
	}
	if u == nil {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "user no longer active")
		return
	}

	access, err := s.Issuer.IssueAccess(u)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}
