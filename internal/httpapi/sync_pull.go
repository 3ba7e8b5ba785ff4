package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taskmesh/taskmesh-api/internal/syncx"
)

const (
	pullDefaultLimit = 100
	pullMaxLimit     = 500
)

// SyncPull returns changes from other devices since the client's
// watermark.
func (s *Server) SyncPull(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	device := s.device(w, r, p)
	if device == nil {
		return
	}

	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			writeError(w, r, http.StatusBadRequest, CodeValidation, "since must be a millisecond timestamp")
			return
		}
		since = syncx.TimeOf(ms)
	}
	limit := parseLimit(r.URL.Query().Get("limit"), pullDefaultLimit, pullMaxLimit)

	resp, err := s.Sync.Pull(r.Context(), p, device, since, limit)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("pull failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "pull failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseLimit parses a limit query param with default and max.
func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
