// Package httpapi is the HTTP surface: routing, authentication,
// throttling, and the handlers that translate between the wire and the
// sync engine.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/taskmesh/taskmesh-api/internal/auth"
	"github.com/taskmesh/taskmesh-api/internal/config"
	"github.com/taskmesh/taskmesh-api/internal/service/syncservice"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	DB      *pgxpool.Pool
	Sync    *syncservice.Service
	Issuer  *auth.Issuer
	Limiter Limiter
	Cfg     *config.Config
}

// Routes builds the router with the full middleware stack and all
// endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(Timing)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/auth/login/", s.Login)
	r.Post("/api/auth/refresh/", s.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(s.Authenticate)

		r.With(s.Throttle("sync_push", s.Cfg.SyncPush)).
			Post("/api/sync/push/", s.SyncPush)
		r.With(s.Throttle("sync_pull", s.Cfg.SyncPull)).
			Get("/api/sync/pull/", s.SyncPull)

		r.Get("/api/sync/conflicts/", s.ListConflicts)
		r.With(s.Throttle("conflict_resolution", s.Cfg.ConflictResolution)).
			Post("/api/sync/conflicts/{id}/resolve/", s.ResolveConflict)

		r.Get("/api/tasks/", s.ListTasks)
		r.Post("/api/tasks/", s.CreateTask)
		r.Get("/api/tasks/{id}/", s.GetTask)
		r.Patch("/api/tasks/{id}/", s.PatchTask)
		r.Delete("/api/tasks/{id}/", s.DeleteTask)
		r.Get("/api/tasks/{id}/comments/", s.ListComments)
		r.Post("/api/tasks/{id}/comments/", s.AddComment)
		r.Get("/api/tasks/{id}/history/", s.TaskHistory)
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
