package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// slowRequestThreshold is where a request stops being routine and gets
// a Warn entry.
const slowRequestThreshold = time.Second

// RequestID echoes the client's X-Request-Id or mints a UUID, sets it
// on the response, and threads it through chi's request-id context slot
// so writeError and downstream loggers agree on the value.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", reqID)

		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, reqID)
		logger := log.With().Str("requestId", reqID).Logger()
		ctx = logger.WithContext(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Timing records handler duration, exposes it as X-Request-Duration
// (milliseconds), and logs one line per request. Anything slower than
// a second logs at Warn.
func Timing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			elapsed := time.Since(start)
			evt := log.Ctx(r.Context()).Info()
			if elapsed > slowRequestThreshold {
				evt = log.Ctx(r.Context()).Warn()
			}
			evt.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", elapsed).
				Msg("request")
		}()

		next.ServeHTTP(&timedWriter{ww, start}, r)
	})
}

// timedWriter refreshes X-Request-Duration at the moment the status is
// written, so the header reflects handler time rather than zero.
type timedWriter struct {
	middleware.WrapResponseWriter
	start time.Time
}

func (t *timedWriter) WriteHeader(code int) {
	t.Header().Set("X-Request-Duration",
		strconv.FormatInt(time.Since(t.start).Milliseconds(), 10))
	t.WrapResponseWriter.WriteHeader(code)
}
