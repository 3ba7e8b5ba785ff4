package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Error codes carried in the response body alongside the HTTP status.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidDevice      = "INVALID_DEVICE"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Timestamp int64  `json:"timestamp"`
	RequestID string `json:"requestId"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// writeError emits the uniform error body. Client errors log at Warn,
// server errors at Error.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	reqID := middleware.GetReqID(r.Context())
	evt := log.Ctx(r.Context()).Warn()
	if status >= 500 {
		evt = log.Ctx(r.Context()).Error()
	}
	evt.Int("status", status).
		Str("code", code).
		Str("path", r.URL.Path).
		Msg(msg)

	writeJSON(w, status, errorBody{
		Error:     msg,
		Code:      code,
		Timestamp: time.Now().UnixMilli(),
		RequestID: reqID,
	})
}

// decodeJSON reads a request body into v. Returns false after writing a
// 400 when the body is malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, CodeValidation, "request body is required")
			return false
		}
		writeError(w, r, http.StatusBadRequest, CodeValidation, "malformed JSON body: "+err.Error())
		return false
	}
	return true
}
