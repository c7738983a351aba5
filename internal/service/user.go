// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the user store
//
// Services take repository interfaces, not *sqlite.DB or *mongodb.DB. The
// same UserService runs against MongoDB in production and an in-memory
// SQLite database in tests, and handler tests can swap in a fake.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/event-rsvp/internal/events"
	"github.com/sakif/event-rsvp/internal/model"
	"github.com/sakif/event-rsvp/internal/repository"
)

// CreateUserInput is what a client may supply when registering directly.
// Everything else (ID, timestamps, RSVP flag, Google link) is server-owned.
type CreateUserInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// UserService handles business logic for guests and their RSVP flag.
type UserService struct {
	repo   repository.UserRepository
	events events.Publisher
	logger *slog.Logger
}

// NewUserService creates a new UserService. publisher may be events.Noop{}.
func NewUserService(repo repository.UserRepository, publisher events.Publisher, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		events: publisher,
		logger: logger,
	}
}

// Create validates the input and registers a new user with hasRSVPd=false.
//
// VALIDATION RULES:
//   - firstName, lastName: required, trimmed, at most 50 characters
//   - email: required, trimmed, lower-cased, must look like an email
//   - phone: optional, digits/spaces/dashes/parentheses with an optional leading +
//
// A duplicate email comes back from the store as apperror.ErrDuplicateKey.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	user, err := newUser(in.FirstName, in.LastName, in.Email, in.Phone)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("id", user.ID),
		slog.String("email", user.Email),
	)
	s.publish(ctx, events.UserCreated, user)
	return user, nil
}

// newUser validates and normalizes the registration fields. The identity
// reconciler uses it too, so Google-created users obey the same rules.
func newUser(firstName, lastName, email, phone string) (*model.User, error) {
	first, err := normalizeName("firstName", "First name", firstName)
	if err != nil {
		return nil, err
	}
	last, err := normalizeName("lastName", "Last name", lastName)
	if err != nil {
		return nil, err
	}
	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	tel, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}
	return &model.User{FirstName: first, LastName: last, Email: addr, Phone: tel}, nil
}

// List returns every user, newest first.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Get returns one user. An unknown (or malformed) ID is apperror.ErrNotFound.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return user, nil
}

// Update applies a partial update. Only the fields set in patch change, and
// each one is validated with the same rules as Create. An empty patch is a
// read: it returns the current user.
//
// GoogleID is never accepted from clients; the handler doesn't map it, and
// it is cleared here as well.
func (s *UserService) Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	patch.GoogleID = nil
	if err := normalizePatch(&patch); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return s.Get(ctx, id)
	}

	user, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("updating user %s: %w", id, err)
	}

	s.logger.Info("user updated", slog.String("id", id))
	s.publish(ctx, events.UserUpdated, user)
	if patch.HasRSVPd != nil {
		s.publish(ctx, events.UserRSVPChanged, user)
	}
	return user, nil
}

func normalizePatch(p *model.UserPatch) error {
	if p.FirstName != nil {
		v, err := normalizeName("firstName", "First name", *p.FirstName)
		if err != nil {
			return err
		}
		p.FirstName = &v
	}
	if p.LastName != nil {
		v, err := normalizeName("lastName", "Last name", *p.LastName)
		if err != nil {
			return err
		}
		p.LastName = &v
	}
	if p.Email != nil {
		v, err := normalizeEmail(*p.Email)
		if err != nil {
			return err
		}
		p.Email = &v
	}
	if p.Phone != nil {
		v, err := normalizePhone(*p.Phone)
		if err != nil {
			return err
		}
		p.Phone = &v
	}
	return nil
}

// Delete removes a user. Deleting a missing user is apperror.ErrNotFound.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting user %s: %w", id, err)
	}

	s.logger.Info("user deleted", slog.String("id", id))
	s.publish(ctx, events.UserDeleted, &model.User{ID: id})
	return nil
}

// GetRSVP returns only the user's RSVP flag.
func (s *UserService) GetRSVP(ctx context.Context, id string) (bool, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return user.HasRSVPd, nil
}

// SetRSVP sets the RSVP flag and returns the updated user.
func (s *UserService) SetRSVP(ctx context.Context, id string, attending bool) (*model.User, error) {
	user, err := s.repo.Update(ctx, id, model.UserPatch{HasRSVPd: &attending})
	if err != nil {
		return nil, fmt.Errorf("setting RSVP for user %s: %w", id, err)
	}

	s.logger.Info("rsvp changed",
		slog.String("id", id),
		slog.Bool("hasRSVPd", attending),
	)
	s.publish(ctx, events.UserRSVPChanged, user)
	return user, nil
}

// publish sends an event and logs (never returns) a failure. The write that
// triggered it has already committed.
func (s *UserService) publish(ctx context.Context, eventType string, user *model.User) {
	if err := s.events.Publish(ctx, events.NewUserEvent(eventType, user)); err != nil {
		s.logger.Warn("publishing event failed",
			slog.String("type", eventType),
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}
}
