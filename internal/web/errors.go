package web

// errors.go provides unified error response handling for the web layer.
// Technical errors are logged server-side with the request ID; clients get
// a structured JSON body with a machine-readable code.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/pjetools/triagem/internal/logging"
	"github.com/pjetools/triagem/internal/session"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError logs the technical error and writes the JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"request_id", middleware.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: err.Error(),
		Code:  errorCode(err, statusCode),
	})
}

// errorCode maps an error to its machine-readable code.
func errorCode(err error, statusCode int) string {
	switch {
	case errors.Is(err, session.ErrNoBatch):
		return "no_batch"
	case statusCode == http.StatusBadRequest:
		return "bad_request"
	case statusCode == http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	default:
		return "internal_error"
	}
}

// statusFor picks the HTTP status for a service-layer error.
func statusFor(err error) int {
	if errors.Is(err, session.ErrNoBatch) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
