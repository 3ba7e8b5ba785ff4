package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskmesh/taskmesh-api/internal/model"
	"github.com/taskmesh/taskmesh-api/internal/service/syncservice"
	"github.com/taskmesh/taskmesh-api/internal/store"
	"github.com/taskmesh/taskmesh-api/internal/syncx"
)

// taskID parses the {id} route param, writing a 400 on garbage.
func taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "task id is not a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// ListTasks returns live tasks in the caller's organization, filtered
// by status/priority/tag query params.
func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	f := store.TaskFilter{
		Status:   model.Status(q.Get("status")),
		Priority: model.Priority(q.Get("priority")),
		Tag:      q.Get("tag"),
		Limit:    parseLimit(q.Get("limit"), pullDefaultLimit, pullMaxLimit),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "unknown status: "+string(f.Status))
		return
	}
	if f.Priority != "" && !f.Priority.Valid() {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "unknown priority: "+string(f.Priority))
		return
	}
	if raw := q.Get("project"); raw != "" {
		proj, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, CodeValidation, "project is not a valid UUID")
			return
		}
		f.Project = &proj
	}

	tasks, err := store.ListTasksLive(r.Context(), s.DB, p.Organization, f)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("list tasks failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to list tasks")
		return
	}
	out := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, model.TaskProjection(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

// CreateTask creates a task through the application surface.
func (s *Server) CreateTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	device := s.device(w, r, p)
	if device == nil {
		return
	}

	var data map[string]any
	if !decodeJSON(w, r, &data) {
		return
	}
	if title, _ := data["title"].(string); title == "" {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "title is required")
		return
	}

	t, err := s.Sync.CreateTask(r.Context(), p, device, data)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("create task failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, model.TaskProjection(t))
}

// GetTask returns one live task.
func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	t, err := store.GetTaskLive(r.Context(), s.DB, p.Organization, id)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("get task failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to load task")
		return
	}
	if t == nil {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, model.TaskProjection(t))
}

// PatchTask applies a partial update to a live task.
func (s *Server) PatchTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	device := s.device(w, r, p)
	if device == nil {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var data map[string]any
	if !decodeJSON(w, r, &data) {
		return
	}

	t, err := s.Sync.PatchTask(r.Context(), p, device, id, data)
	if err != nil {
		if errors.Is(err, syncservice.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, CodeNotFound, "task not found")
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("patch task failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, model.TaskProjection(t))
}

// DeleteTask soft-deletes a live task.
func (s *Server) DeleteTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	device := s.device(w, r, p)
	if device == nil {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	if err := s.Sync.DeleteTask(r.Context(), p, device, id); err != nil {
		if errors.Is(err, syncservice.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, CodeNotFound, "task not found")
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("delete task failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListComments returns comments on a live task.
func (s *Server) ListComments(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	parent, err := store.GetTaskLive(r.Context(), s.DB, p.Organization, id)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("list comments failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to load task")
		return
	}
	if parent == nil {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "task not found")
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), pullDefaultLimit, pullMaxLimit)
	comments, err := store.ListCommentsForTask(r.Context(), s.DB, p.Organization, id, limit)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("list comments failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to list comments")
		return
	}
	out := make([]map[string]any, 0, len(comments))
	for _, c := range comments {
		out = append(out, model.CommentProjection(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": out})
}

// AddComment creates a comment on a live task.
func (s *Server) AddComment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	device := s.device(w, r, p)
	if device == nil {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var data map[string]any
	if !decodeJSON(w, r, &data) {
		return
	}
	if content, _ := data["content"].(string); content == "" {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "content is required")
		return
	}

	c, err := s.Sync.AddComment(r.Context(), p, device, id, data)
	if err != nil {
		if errors.Is(err, syncservice.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, CodeNotFound, "task not found")
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("add comment failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to add comment")
		return
	}
	writeJSON(w, http.StatusCreated, model.CommentProjection(c))
}

// TaskHistory lists the change log of a task, newest first.
func (s *Server) TaskHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), pullDefaultLimit, pullMaxLimit)
	entries, err := store.ListTaskHistory(r.Context(), s.DB, p.Organization, id, limit)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("task history failed")
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "failed to load history")
		return
	}

	out := make([]map[string]any, 0, len(entries))
	for _, h := range entries {
		var device any
		if h.Device != nil {
			device = h.Device.String()
		}
		out = append(out, map[string]any{
			"id":             h.ID.String(),
			"task":           h.Task.String(),
			"user":           h.User.String(),
			"device":         device,
			"change_type":    string(h.ChangeType),
			"changes":        h.Changes,
			"previous_state": h.PreviousState,
			"vector_clock":   h.VectorClock.Copy(),
			"created_at":     syncx.MsOf(h.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": out})
}
