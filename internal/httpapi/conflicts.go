package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskmesh/taskmesh-api/internal/service/syncservice"
)

// ListConflicts returns the caller's unresolved conflicts.
func (s *Server) ListConflicts(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), pullDefaultLimit, pullMaxLimit)

	conflicts, err := s.Sync.ListConflicts(r.Context(), p, limit)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("list conflicts failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to list conflicts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": conflicts})
}

// ResolveConflict applies a manual resolution to one surfaced conflict.
func (s *Server) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "conflict id is not a valid UUID")
		return
	}

	var req syncservice.ResolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Resolution.Valid() {
		writeError(w, r, http.StatusBadRequest, CodeValidation,
			"resolution must be one of local, remote, custom")
		return
	}
	if req.Resolution == syncservice.ResolveCustom && req.CustomResolution == nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation,
			"customResolution is required when resolution is custom")
		return
	}

	resolved, err := s.Sync.ResolveConflict(r.Context(), p, id, &req)
	if err != nil {
		if errors.Is(err, syncservice.ErrConflictNotFound) {
			writeError(w, r, http.StatusNotFound, CodeNotFound, "conflict not found")
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Str("conflictId", id.String()).Msg("resolve conflict failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to resolve conflict")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entity": resolved})
}
