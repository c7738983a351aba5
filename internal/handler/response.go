package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "user not found with id abc123"}
//
// Validation errors also name the offending field:
//   {"error": "validation_error", "message": "Please enter a valid email", "field": "email"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/event-rsvp/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error     string     `json:"error"`               // Machine-readable error type (e.g., "not_found")
	Message   string     `json:"message"`             // Human-readable description
	Field     string     `json:"field,omitempty"`     // Offending field, for validation and duplicate errors
	Timestamp *time.Time `json:"timestamp,omitempty"` // Set on 500s to help match logs
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be written BEFORE the body. Once Encode calls
// w.Write, the headers are on the wire and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// Errors maps domain errors to HTTP responses. It is the single global error
// path: handlers hand it anything they can't answer themselves.
//
// ERROR MAPPING:
//
//	ErrValidation        → 400 validation_error
//	ErrDuplicateKey      → 400 duplicate_key
//	ErrIncompleteProfile → 400 incomplete_profile
//	ErrNotFound          → 404 not_found
//	ErrUnauthenticated   → 401 unauthenticated
//	ErrInvalidCredential → 401 unauthenticated
//	anything else        → 500 internal_error (logged)
//
// WHY HERE AND NOT IN THE SERVICE?
// The service layer should not know about HTTP status codes.
type Errors struct {
	logger *slog.Logger
	// development exposes the raw error text in 500 responses.
	development bool
}

func NewErrors(logger *slog.Logger, development bool) *Errors {
	return &Errors{logger: logger, development: development}
}

// Write sends the response for err.
func (e *Errors) Write(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType, ok := classify(err)
		if ok {
			writeJSON(w, status, ErrorResponse{
				Error:   errorType,
				Message: appErr.Message,
				Field:   appErr.Field,
			})
			return
		}
	}

	// Unknown error: log it, and only show the detail in development.
	// The raw message might contain connection strings or query text.
	e.logger.Error("unhandled error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)

	msg := "Something went wrong"
	if e.development {
		msg = err.Error()
	}
	now := time.Now().UTC()
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:     "internal_error",
		Message:   msg,
		Timestamp: &now,
	})
}

func classify(err error) (status int, errorType string, ok bool) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error", true
	case errors.Is(err, apperror.ErrDuplicateKey):
		return http.StatusBadRequest, "duplicate_key", true
	case errors.Is(err, apperror.ErrIncompleteProfile):
		return http.StatusBadRequest, "incomplete_profile", true
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found", true
	case errors.Is(err, apperror.ErrUnauthenticated), errors.Is(err, apperror.ErrInvalidCredential):
		return http.StatusUnauthorized, "unauthenticated", true
	}
	return 0, "", false
}

// badRequest is shorthand for a validation error raised by the handler
// itself (malformed body, wrong JSON type).
func badRequest(field, message string) error {
	return apperror.ValidationFailed(field, message)
}
