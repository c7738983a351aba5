// Package auth issues and verifies bearer tokens, talks to Google as the OAuth
// identity provider, and resolves the authenticated principal of a request.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Browser visits /api/v1/auth/google → redirected to Google's consent page
//  2. Google calls back /api/v1/auth/google/callback with a code
//  3. Server exchanges the code, verifies Google's ID token and reconciles the
//     profile with a local user (service.IdentityService)
//  4. Server opens a server-side session (cookie) and issues a JWT
//  5. Browser is redirected to the front end with the JWT in the query string;
//     the front end sends it back as "Authorization: Bearer <jwt>"
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"id":..,"email":..,"name":..,"picture":..,"sub":..,"exp":..}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/event-rsvp/internal/apperror"
	"github.com/sakif/event-rsvp/internal/model"
)

const (
	issuer = "event-rsvp"

	// DefaultTokenTTL is how long an issued token stays valid.
	DefaultTokenTTL = 7 * 24 * time.Hour
)

// TokenService handles JWT creation and validation.
//
// The secret and lifetime are process-wide configuration, fixed at
// construction; nothing about signing is derived per request.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and lifetime.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token lifetime must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Claims is the JWT payload: the display projection of the user plus the
// registered claims. Subject repeats the user ID.
type Claims struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates and signs a token for user, valid for the configured TTL.
func (s *TokenService) Issue(user *model.User) (string, error) {
	return s.issueAt(user, time.Now())
}

// issueAt lets tests mint tokens with a backdated issue time.
func (s *TokenService) issueAt(user *model.User, now time.Time) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("auth: cannot issue a token for a user without an ID")
	}

	d := user.Display()
	c := Claims{
		ID:      d.ID,
		Email:   d.Email,
		Name:    d.Name,
		Picture: d.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   d.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and verifies a JWT string and returns its claims.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Algorithm is HS256 (prevents "alg: none" and algorithm confusion)
//   - Issuer matches
//   - exp is present and in the future
//
// Every failure is an apperror.ErrInvalidCredential. Claims are only
// returned when all checks pass.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.InvalidCredential("token expired")
		}
		return nil, apperror.InvalidCredential(err.Error())
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperror.InvalidCredential("invalid token claims")
	}
	if c.ID == "" || c.Subject != c.ID {
		return nil, apperror.InvalidCredential("token has no subject")
	}

	return c, nil
}
