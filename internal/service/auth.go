package service

// AuthService is the business logic layer for Google login. It sits between
// the HTTP handlers and the identity reconciler / token service:
//
//	AuthHandler (HTTP) → AuthService → IdentityService → UserRepository
//	                               ↘ TokenService (JWT)
//
// WHAT THIS SERVICE DOES NOT DO:
//   - It does NOT set cookies or open sessions (HTTP concerns, see handler/auth.go)
//   - It does NOT talk to Google (auth.GoogleProvider does)

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/event-rsvp/internal/auth"
	"github.com/sakif/event-rsvp/internal/model"
)

// AuthService handles the authentication business logic.
type AuthService struct {
	identity *IdentityService
	tokens   *auth.TokenService
	logger   *slog.Logger
}

func NewAuthService(identity *IdentityService, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{identity: identity, tokens: tokens, logger: logger}
}

// Login resolves a verified provider profile to a local user.
func (s *AuthService) Login(ctx context.Context, profile *model.Profile) (*model.User, error) {
	user, err := s.identity.Reconcile(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("service/auth: reconciling google profile: %w", err)
	}

	s.logger.Info("user authenticated via Google",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// IssueToken signs a bearer token for user.
func (s *AuthService) IssueToken(user *model.User) (string, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}
	return token, nil
}
