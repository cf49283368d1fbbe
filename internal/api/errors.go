package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shvydak/homelab-dashboard/internal/auth"
)

// successResponse is the envelope for every 2xx response.
type successResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// errorResponse is the envelope for every failed request.
// Details is only populated outside production.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// Client-facing messages for failures not produced by the auth package.
const (
	msgInternal        = "Internal server error"
	msgInvalidBody     = "Invalid JSON body"
	msgUserNotFound    = "User not found"
	msgTooManyRequests = "Too many requests, please try again later."
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeSuccess wraps data in the success envelope.
func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, successResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// writeError writes a failure envelope without details.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeErrorDetails writes a failure envelope, attaching details unless the
// server runs in production.
func (s *Server) writeErrorDetails(w http.ResponseWriter, status int, message string, details any) {
	resp := errorResponse{Error: message}
	if !s.production {
		resp.Details = details
	}
	writeJSON(w, status, resp)
}

// writeInternal logs err against the request and answers 500 with message.
func (s *Server) writeInternal(w http.ResponseWriter, r *http.Request, message string, err error) {
	s.logger.Error(message,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestIDFromContext(r.Context()),
	)
	var details any
	if err != nil {
		details = err.Error()
	}
	s.writeErrorDetails(w, http.StatusInternalServerError, message, details)
}

// writeAuthError translates an auth package error into a response.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *auth.ValidationError
	if errors.As(err, &ve) {
		s.writeErrorDetails(w, http.StatusBadRequest, ve.Error(), ve.Fields)
		return
	}

	var ae *auth.Error
	if !errors.As(err, &ae) {
		s.writeInternal(w, r, msgInternal, err)
		return
	}

	if ae.Kind == auth.KindInternal {
		s.writeInternal(w, r, ae.Message, ae.Err)
		return
	}
	writeError(w, statusForKind(ae.Kind), ae.Message)
}

// statusForKind maps an error kind to its HTTP status.
func statusForKind(k auth.Kind) int {
	switch k {
	case auth.KindValidation:
		return http.StatusBadRequest
	case auth.KindUnauthorized:
		return http.StatusUnauthorized
	case auth.KindForbidden:
		return http.StatusForbidden
	case auth.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
