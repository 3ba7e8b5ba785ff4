package httpapi

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/taskmesh/taskmesh-api/internal/service/syncservice"
)

// validChanges rejects changes with a missing id or unknown operation
// before the transaction starts. Returns false after writing the 400.
func validChanges(w http.ResponseWriter, r *http.Request, changes []syncservice.Change) bool {
	for _, ch := range changes {
		if !ch.Operation.Valid() {
			writeError(w, r, http.StatusBadRequest, CodeValidation,
				"unknown operation: "+string(ch.Operation))
			return false
		}
		if ch.ID == "" {
			writeError(w, r, http.StatusBadRequest, CodeValidation, "change id is required")
			return false
		}
	}
	return true
}

// SyncPush applies a batch of client changes in one transaction and
// returns the per-batch outcome.
func (s *Server) SyncPush(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	device := s.device(w, r, p)
	if device == nil {
		return
	}

	var req syncservice.PushRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID != "" && req.DeviceID != device.ID.String() {
		writeError(w, r, http.StatusBadRequest, CodeInvalidDevice,
			"deviceId in body does not match X-Device-Id")
		return
	}
	if !validChanges(w, r, req.Changes.Tasks) || !validChanges(w, r, req.Changes.Comments) {
		return
	}

	ctx := r.Context()
	if s.Cfg != nil && s.Cfg.PushDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Cfg.PushDeadline)
		defer cancel()
	}

	resp, err := s.Sync.Push(ctx, p, device, &req)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("push failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "push failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
