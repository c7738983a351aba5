// Package repository declares the persistence boundary for users.
//
// Two backends implement it: repository/sqlite (embedded, used in tests and
// local development) and repository/mongodb (the production document store).
// Services depend only on these interfaces.
package repository

import (
	"context"

	"github.com/sakif/event-rsvp/internal/model"
)

// UserRepository stores user records.
//
// ERROR CONTRACT (every implementation):
//   - a missing record, or a malformed ID, is apperror.ErrNotFound
//   - a taken email or Google ID is apperror.ErrDuplicateKey
//   - anything else is an unexpected store fault, returned wrapped
type UserRepository interface {
	// Create inserts user and fills in ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByEmail matches case-insensitively; emails are stored lower-cased.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	// List returns every user, newest first.
	List(ctx context.Context) ([]model.User, error)
	// Update applies the non-nil fields of patch, bumps UpdatedAt and returns
	// the stored record.
	Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error)
	Delete(ctx context.Context, id string) error
}

// HealthChecker reports whether the store is currently reachable.
// Used by GET /health only; request handling is never gated on it.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Store is what the server owns: a user repository it can health-check and
// must close on shutdown.
type Store interface {
	UserRepository
	HealthChecker
	Close() error
}
