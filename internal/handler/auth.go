package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/event-rsvp/internal/apperror"
	"github.com/sakif/event-rsvp/internal/auth"
	"github.com/sakif/event-rsvp/internal/model"
	"github.com/sakif/event-rsvp/internal/service"
	"github.com/sakif/event-rsvp/internal/session"
)

const stateCookieName = "oauth_state"

// OAuthProvider is the identity provider the login flow talks to.
// auth.GoogleProvider implements it; tests use a fake.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*model.Profile, error)
}

// AuthConfig holds the URLs and cookie policy of the login flow.
type AuthConfig struct {
	// FrontendURL is where the browser ends up after login, e.g.
	// "http://localhost:3000". Success lands on /auth/callback, failure on
	// /auth/failure.
	FrontendURL string
	// FailurePath is this API's own failure route, e.g. "/api/v1/auth/failure".
	FailurePath string
	// SecureCookies sets Secure on the state cookie (production).
	SecureCookies bool
}

// AuthHandler manages the Google OAuth login flow and the session.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGoogleLogin     → redirect the browser to Google's consent page
//   - CompleteGoogleLogin   → middleware: state check, code exchange, reconcile, session
//   - HandleGoogleCallback  → issue the JWT and redirect to the front end
//   - HandleFailure         → send the browser to the front end's failure page
//   - HandleMe              → return the current user
//   - HandleLogout          → end the server-side session
type AuthHandler struct {
	google   OAuthProvider // nil when Google login isn't configured
	auth     *service.AuthService
	sessions *session.Manager
	errors   *Errors
	cfg      AuthConfig
	logger   *slog.Logger
}

func NewAuthHandler(
	google OAuthProvider,
	authService *service.AuthService,
	sessions *session.Manager,
	errs *Errors,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		google:   google,
		auth:     authService,
		sessions: sessions,
		errors:   errs,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleGoogleLogin redirects the user to Google's consent page.
//
// HTTP: GET /auth/google
//
// CSRF PROTECTION VIA STATE:
// We generate a random state and store it in a short-lived cookie. When
// Google calls back, CompleteGoogleLogin checks the state matches. The state
// is a UUIDv4 (crypto/rand) because it has to be unguessable.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "oauth_unavailable",
			Message: "Google login is not configured",
		})
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// CompleteGoogleLogin is the middleware half of the callback. It turns
// ?code=…&state=… into an authenticated principal:
//
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a verified Google profile
//  3. Reconcile the profile with a local user
//  4. Open a server-side session (sid cookie)
//  5. Put the user in the request context for the next handler
//
// Any failure redirects to the failure route; the browser never sees a raw
// error page in the middle of a login.
func (h *AuthHandler) CompleteGoogleLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.google == nil {
			h.fail(w, r, "google login not configured")
			return
		}

		q := r.URL.Query()

		// --- Step 1: Validate CSRF state ---
		stateCookie, err := r.Cookie(stateCookieName)
		// single-use either way
		http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})
		if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
			h.fail(w, r, "state mismatch")
			return
		}

		// The user pressed "Cancel" on the consent page.
		if errParam := q.Get("error"); errParam != "" {
			h.logger.Info("google login denied", slog.String("error", errParam))
			h.fail(w, r, "consent denied")
			return
		}

		code := q.Get("code")
		if code == "" {
			h.fail(w, r, "missing code")
			return
		}

		// --- Step 2: Exchange code for a verified profile ---
		profile, err := h.google.Exchange(r.Context(), code)
		if err != nil {
			h.logger.Warn("google exchange failed", slog.String("error", err.Error()))
			h.fail(w, r, "exchange failed")
			return
		}

		// --- Step 3: Reconcile ---
		user, err := h.auth.Login(r.Context(), profile)
		if err != nil {
			level := slog.LevelError
			if errors.Is(err, apperror.ErrIncompleteProfile) || errors.Is(err, apperror.ErrValidation) ||
				errors.Is(err, apperror.ErrDuplicateKey) {
				level = slog.LevelWarn
			}
			h.logger.Log(r.Context(), level, "google login rejected", slog.String("error", err.Error()))
			h.fail(w, r, "reconcile failed")
			return
		}

		// --- Step 4: Session ---
		if _, err := h.sessions.Start(r.Context(), w, user.ID); err != nil {
			h.logger.Error("opening session failed", slog.String("error", err.Error()))
			h.fail(w, r, "session failed")
			return
		}

		// --- Step 5: Hand the principal on ---
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, reason string) {
	h.logger.Debug("google login failed", slog.String("reason", reason))
	http.Redirect(w, r, h.cfg.FailurePath, http.StatusSeeOther)
}

// HandleGoogleCallback issues a JWT for the principal set by
// CompleteGoogleLogin and redirects to the front end:
//
//	{FRONTEND_URL}/auth/callback?token=<jwt>&user=<url-encoded JSON>
//
// HTTP: GET /auth/google/callback (after CompleteGoogleLogin)
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "Authentication failed",
		})
		return
	}

	token, err := h.auth.IssueToken(user)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	display, err := json.Marshal(user.Display())
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("user", string(display))

	http.Redirect(w, r, h.frontend("/auth/callback")+"?"+q.Encode(), http.StatusSeeOther)
}

// HandleFailure sends the browser to the front end's login-failed page.
//
// HTTP: GET /auth/failure
func (h *AuthHandler) HandleFailure(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.frontend("/auth/failure"), http.StatusSeeOther)
}

func (h *AuthHandler) frontend(path string) string {
	return strings.TrimRight(h.cfg.FrontendURL, "/") + path
}

// HandleMe returns the current user.
//
// HTTP: GET /auth/me
// AUTH: session cookie or "Authorization: Bearer <jwt>" (see auth.Authenticator)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "Not authenticated",
		})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleLogout ends the server-side session and clears the cookie.
//
// HTTP: POST /auth/logout
//
// WHY POST AND NOT GET?
// Logout changes state. A GET could be triggered by an <img> tag on another
// site or by a browser prefetching the link.
//
// Bearer tokens are stateless and stay valid until they expire; the front
// end drops its copy.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context(), w, r); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
