package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/event-rsvp/internal/auth"
	"github.com/sakif/event-rsvp/internal/events"
	"github.com/sakif/event-rsvp/internal/handler"
	"github.com/sakif/event-rsvp/internal/model"
	"github.com/sakif/event-rsvp/internal/repository/sqlite"
	"github.com/sakif/event-rsvp/internal/service"
	"github.com/sakif/event-rsvp/internal/session"
)

const (
	testFrontend    = "http://localhost:3000"
	testFailurePath = "/api/v1/auth/failure"
)

// fakeGoogle stands in for auth.GoogleProvider. Exchange accepts the code
// "good-code" and returns profile; anything else fails.
type fakeGoogle struct {
	profile *model.Profile
}

func (f *fakeGoogle) AuthURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (f *fakeGoogle) Exchange(_ context.Context, code string) (*model.Profile, error) {
	if code != "good-code" {
		return nil, errors.New("oauth2: invalid_grant")
	}
	p := *f.profile
	return &p, nil
}

// sessionStore is a session.Store tests can count.
type sessionStore interface {
	session.Store
	Len() int
}

// testEnv is a router wired the way the server wires it, on an in-memory
// SQLite store.
type testEnv struct {
	router   *chi.Mux
	store    *sqlite.DB
	tokens   *auth.TokenService
	sessions sessionStore
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv builds the routes. google may be nil to test the
// "Google login not configured" paths.
func newTestEnv(t *testing.T, google *fakeGoogle) *testEnv {
	t.Helper()
	return newTestEnvWithSessions(t, google, session.NewMemoryStore(time.Minute))
}

func newTestEnvWithSessions(t *testing.T, google *fakeGoogle, sessStore sessionStore) *testEnv {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := discardLogger()

	tokens, err := auth.NewTokenService("handler-test-jwt-secret", time.Hour)
	require.NoError(t, err)

	sessions, err := session.NewManager(sessStore, "handler-test-session-secret", time.Hour, false)
	require.NoError(t, err)

	users := service.NewUserService(store, events.Noop{}, logger)
	identity := service.NewIdentityService(store, events.Noop{}, logger)
	authService := service.NewAuthService(identity, tokens, logger)

	var provider handler.OAuthProvider
	if google != nil {
		provider = google
	}

	errs := handler.NewErrors(logger, false)
	userHandler := handler.NewUserHandler(users, errs, logger)
	authHandler := handler.NewAuthHandler(provider, authService, sessions, errs, handler.AuthConfig{
		FrontendURL: testFrontend,
		FailurePath: testFailurePath,
	}, logger)
	meta := handler.NewMetaHandler(store, "test", "/api/v1", "v1")

	r := chi.NewRouter()
	r.NotFound(meta.HandleNotFound)
	r.MethodNotAllowed(meta.HandleNotFound)
	r.Get("/", meta.HandleRoot)
	r.Get("/health", meta.HandleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.NewAuthenticator(sessions, tokens, store, logger).Identify)
		r.Get("/", meta.HandleAPIInfo)

		r.Post("/users", userHandler.HandleCreate)
		r.Get("/users", userHandler.HandleList)
		r.Get("/users/{id}", userHandler.HandleGet)
		r.Put("/users/{id}", userHandler.HandleUpdate)
		r.Delete("/users/{id}", userHandler.HandleDelete)
		r.Get("/users/{id}/rsvp", userHandler.HandleGetRSVP)
		r.Put("/users/{id}/rsvp", userHandler.HandleSetRSVP)

		r.Get("/auth/google", authHandler.HandleGoogleLogin)
		r.With(authHandler.CompleteGoogleLogin).Get("/auth/google/callback", authHandler.HandleGoogleCallback)
		r.Get("/auth/failure", authHandler.HandleFailure)
		r.Get("/auth/me", authHandler.HandleMe)
		r.Post("/auth/logout", authHandler.HandleLogout)
	})

	return &testEnv{router: r, store: store, tokens: tokens, sessions: sessStore}
}

// do sends a request through the router. body may be nil, a string (sent
// verbatim) or anything else (JSON-encoded).
func (e *testEnv) do(t *testing.T, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// createUser registers a user through the API and returns the decoded body.
func (e *testEnv) createUser(t *testing.T, first, email string) map[string]any {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/v1/users", map[string]string{
		"firstName": first,
		"lastName":  "Doe",
		"email":     email,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode(t, rr)
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m), rr.Body.String())
	return m
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
