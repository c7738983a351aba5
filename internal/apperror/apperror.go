// Package apperror defines the application's error taxonomy.
//
// Every domain error is an *AppError wrapping one of the sentinel errors
// below. Callers test the category with errors.Is (which walks Unwrap) and
// read the human-readable message with errors.As. The HTTP layer is the only
// place that turns a category into a status code.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrIncompleteProfile = errors.New("incomplete profile")
)

type AppError struct {
	Err     error  // sentinel category
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// DuplicateKey reports a unique-constraint violation on field.
// Stores return it for a taken email or an already-linked Google ID.
func DuplicateKey(resource, field string) *AppError {
	return &AppError{
		Err:     ErrDuplicateKey,
		Message: fmt.Sprintf("%s with this %s already exists", resource, field),
		Field:   field,
	}
}

// Unauthenticated returns an AppError for a request with no usable session
// or bearer token. HTTP handlers map this to 401.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// InvalidCredential is returned when a bearer token fails verification:
// bad signature, wrong algorithm or issuer, or expired.
func InvalidCredential(reason string) *AppError {
	return &AppError{
		Err:     ErrInvalidCredential,
		Message: "invalid or expired token: " + reason,
	}
}

// IncompleteProfile is returned when an OAuth provider profile lacks a field
// required to create a local user.
func IncompleteProfile(field string) *AppError {
	return &AppError{
		Err:     ErrIncompleteProfile,
		Message: fmt.Sprintf("provider profile is missing %s", field),
		Field:   field,
	}
}
