package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/event-rsvp/internal/apperror"
	"github.com/sakif/event-rsvp/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "user", u), ANY package that knows the string "user"
// can read or shadow your value. A package-private type prevents collisions:
// only THIS package can create a key of type contextKey.
type contextKey string

const userKey contextKey = "user"

// SessionLoader resolves the server-side session attached to a request.
// It returns an apperror.ErrUnauthenticated error when the request carries
// no valid session; any other error is a store fault.
type SessionLoader interface {
	Load(ctx context.Context, r *http.Request) (*model.Session, error)
}

// UserFinder is the slice of the user store the authenticator needs.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// Authenticator attaches the authenticated user (the "principal") to the
// request context. A request can authenticate two ways:
//
//  1. A session cookie set by the Google callback (browser navigation)
//  2. "Authorization: Bearer <jwt>" (the SPA's fetch calls)
//
// The session is checked first. Either way, the user is re-read from the
// store so a deleted user stops being authenticated immediately, even while
// their token is still unexpired.
type Authenticator struct {
	sessions SessionLoader
	tokens   *TokenService
	users    UserFinder
	logger   *slog.Logger
}

func NewAuthenticator(sessions SessionLoader, tokens *TokenService, users UserFinder, logger *slog.Logger) *Authenticator {
	return &Authenticator{sessions: sessions, tokens: tokens, users: users, logger: logger}
}

// Identify is a middleware that resolves the principal if one is present,
// but does NOT block anonymous requests.
//
// Handlers check for the user via UserFromContext. Only a store fault stops
// the chain (500); bad or missing credentials just mean "anonymous".
//
// MIDDLEWARE PATTERN IN GO:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
func (a *Authenticator) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.resolve(r)
		if err != nil {
			a.logger.Error("resolving principal",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"internal_error","message":"Internal Server Error"}`))
			return
		}
		if user != nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// resolve returns (nil, nil) for an anonymous request.
func (a *Authenticator) resolve(r *http.Request) (*model.User, error) {
	ctx := r.Context()

	sess, err := a.sessions.Load(ctx, r)
	switch {
	case err == nil:
		return a.lookup(ctx, sess.UserID)
	case !errors.Is(err, apperror.ErrUnauthenticated):
		return nil, err
	}

	token, ok := bearerToken(r)
	if !ok {
		return nil, nil
	}
	claims, err := a.tokens.Verify(token)
	if err != nil {
		a.logger.Debug("rejected bearer token", slog.String("error", err.Error()))
		return nil, nil
	}
	return a.lookup(ctx, claims.ID)
}

func (a *Authenticator) lookup(ctx context.Context, userID string) (*model.User, error) {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Credential outlived its user.
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively (RFC 7235).
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithUser returns a copy of ctx carrying user as the principal.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user from the request context.
//
// Returns (nil, false) if the request is anonymous.
//
// Usage in handlers:
//
//	user, ok := auth.UserFromContext(r.Context())
//	if !ok {
//	    // anonymous
//	}
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}
