package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/event-rsvp/internal/apperror"
	"github.com/sakif/event-rsvp/internal/events"
	"github.com/sakif/event-rsvp/internal/model"
	"github.com/sakif/event-rsvp/internal/repository"
)

// IdentityService maps an external OAuth profile onto exactly one local user.
//
// RECONCILIATION ORDER:
//  1. A user already linked to this Google account → return it, no write.
//  2. A user with the same email (registered directly before ever logging in
//     with Google, or linked to another Google account) → link this Google
//     account to it and refresh the picture.
//  3. Nobody → create a new user from the profile.
//
// Path 2 is why a guest who first RSVP'd through the form keeps their RSVP
// when they later log in with Google: it's the same record.
type IdentityService struct {
	users  repository.UserRepository
	events events.Publisher
	logger *slog.Logger
}

func NewIdentityService(users repository.UserRepository, publisher events.Publisher, logger *slog.Logger) *IdentityService {
	return &IdentityService{users: users, events: publisher, logger: logger}
}

// Reconcile returns the local user for profile, creating or linking one if
// needed. Calling it twice with the same profile yields the same user and
// the second call writes nothing.
//
// A profile without a provider ID, or one that would need a new user but
// lacks an email or a name, is apperror.ErrIncompleteProfile and nothing is
// written.
func (s *IdentityService) Reconcile(ctx context.Context, profile *model.Profile) (*model.User, error) {
	if profile == nil || strings.TrimSpace(profile.ProviderID) == "" {
		return nil, apperror.IncompleteProfile("provider ID")
	}
	return s.reconcile(ctx, profile, true)
}

// reconcile runs the three paths. When a write loses a race to a concurrent
// login for the same person, the store rejects it as a duplicate; retry
// re-runs the lookups once so the caller gets the record that won.
func (s *IdentityService) reconcile(ctx context.Context, p *model.Profile, retry bool) (*model.User, error) {
	// Path 1: already linked.
	user, err := s.users.GetByGoogleID(ctx, p.ProviderID)
	switch {
	case err == nil:
		return user, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("looking up google id: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(p.Email))

	// Path 2: same email, not yet linked.
	if email != "" {
		existing, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			linked, err := s.link(ctx, existing, p)
			if errors.Is(err, apperror.ErrDuplicateKey) && retry {
				s.logger.Warn("google link raced, re-reading", slog.String("userID", existing.ID))
				return s.reconcile(ctx, p, false)
			}
			return linked, err
		case !errors.Is(err, apperror.ErrNotFound):
			return nil, fmt.Errorf("looking up email: %w", err)
		}
	}

	// Path 3: new user.
	created, err := s.create(ctx, p, email)
	if errors.Is(err, apperror.ErrDuplicateKey) && retry {
		s.logger.Warn("google sign-up raced, re-reading", slog.String("email", email))
		return s.reconcile(ctx, p, false)
	}
	return created, err
}

// link attaches the provider ID to user. A user linked to a different Google
// account is relinked to this one; the store still rejects an ID that another
// user already holds.
func (s *IdentityService) link(ctx context.Context, user *model.User, p *model.Profile) (*model.User, error) {
	providerID := p.ProviderID
	patch := model.UserPatch{GoogleID: &providerID}
	if p.Picture != "" {
		picture := p.Picture
		patch.Picture = &picture
	}

	linked, err := s.users.Update(ctx, user.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("linking google account to user %s: %w", user.ID, err)
	}

	s.logger.Info("google account linked to existing user",
		slog.String("userID", linked.ID),
		slog.String("email", linked.Email),
	)
	s.publish(ctx, events.UserLinked, linked)
	return linked, nil
}

func (s *IdentityService) create(ctx context.Context, p *model.Profile, email string) (*model.User, error) {
	switch {
	case email == "":
		return nil, apperror.IncompleteProfile("email")
	case strings.TrimSpace(p.FirstName) == "":
		return nil, apperror.IncompleteProfile("first name")
	case strings.TrimSpace(p.LastName) == "":
		return nil, apperror.IncompleteProfile("last name")
	}

	user, err := newUser(p.FirstName, p.LastName, email, "")
	if err != nil {
		return nil, err
	}
	providerID := p.ProviderID
	user.GoogleID = &providerID
	user.Picture = p.Picture

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user from google profile: %w", err)
	}

	s.logger.Info("user created from google profile",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)
	s.publish(ctx, events.UserCreated, user)
	return user, nil
}

func (s *IdentityService) publish(ctx context.Context, eventType string, user *model.User) {
	if err := s.events.Publish(ctx, events.NewUserEvent(eventType, user)); err != nil {
		s.logger.Warn("publishing event failed",
			slog.String("type", eventType),
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}
}
