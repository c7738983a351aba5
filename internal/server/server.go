// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects stores, services, handlers,
// and middleware, and decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → New() opens: store, event publisher, session store, Google provider
//	NewWithDependencies() builds: services → handlers → routes
//
// Tests skip New and hand NewWithDependencies an in-memory SQLite store and a
// fake Google provider.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-multierror"

	"github.com/sakif/event-rsvp/internal/auth"
	"github.com/sakif/event-rsvp/internal/config"
	"github.com/sakif/event-rsvp/internal/events"
	"github.com/sakif/event-rsvp/internal/handler"
	"github.com/sakif/event-rsvp/internal/middleware"
	"github.com/sakif/event-rsvp/internal/repository"
	"github.com/sakif/event-rsvp/internal/repository/mongodb"
	sqliteRepo "github.com/sakif/event-rsvp/internal/repository/sqlite"
	"github.com/sakif/event-rsvp/internal/service"
	"github.com/sakif/event-rsvp/internal/session"
)

const (
	// maxBodyBytes caps request bodies at 10 MB.
	maxBodyBytes = 10 << 20

	shutdownTimeout = 30 * time.Second

	sessionCleanupInterval = 10 * time.Minute
)

// Dependencies are the external resources the server runs on. The server
// owns Store and Events: it closes them on shutdown.
type Dependencies struct {
	Store    repository.Store
	Sessions session.Store         // defaults to an in-memory store
	Events   events.Publisher      // defaults to events.Noop
	Google   handler.OAuthProvider // nil disables Google login
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	deps   Dependencies
}

// New opens everything the configuration points at and builds the server.
//
// Startup fails fast: an unreachable database, NATS server or OIDC discovery
// document is an error here rather than a surprise on the first request.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg.DatabaseURL(), logger)
	if err != nil {
		return nil, err
	}

	deps := Dependencies{
		Store:    store,
		Sessions: session.NewMemoryStore(sessionCleanupInterval),
		Events:   events.Noop{},
	}

	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		deps.Events = pub
	} else {
		logger.Info("NATS_URL not set, lifecycle events are disabled")
	}

	if cfg.GoogleEnabled() {
		google, err := auth.NewGoogleProvider(ctx, cfg.Google.Issuer, cfg.Google.ClientID,
			cfg.Google.ClientSecret, cfg.Google.CallbackURL)
		if err != nil {
			deps.Events.Close()
			store.Close()
			return nil, err
		}
		deps.Google = google
	} else {
		logger.Warn("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set, Google login is disabled")
	}

	s, err := NewWithDependencies(cfg, logger, deps)
	if err != nil {
		deps.Events.Close()
		store.Close()
		return nil, err
	}
	return s, nil
}

// openStore picks the backend from the URI scheme.
//
// IMPORT ALIAS:
// repository/sqlite is imported as sqliteRepo so it doesn't read like the
// driver package.
func openStore(ctx context.Context, uri string, logger *slog.Logger) (repository.Store, error) {
	backend, err := config.Backend(uri)
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.BackendSQLite:
		db, err := sqliteRepo.New(config.SQLitePath(uri))
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	default:
		db, err := mongodb.New(ctx, uri, logger)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	}
}

// NewWithDependencies builds the server on already-open resources.
func NewWithDependencies(cfg config.Config, logger *slog.Logger, deps Dependencies) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("server: a store is required")
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewMemoryStore(sessionCleanupInterval)
	}
	if deps.Events == nil {
		deps.Events = events.Noop{}
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		deps:   deps,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE (base = API_PREFIX + "/" + API_VERSION, default /api/v1):
//
//	GET    /                          → welcome
//	GET    /health                    → liveness + database state
//	GET    {base}                     → API info
//	POST   {base}/users               → create user
//	GET    {base}/users               → list users
//	GET    {base}/users/{id}          → get user
//	PUT    {base}/users/{id}          → partial update
//	DELETE {base}/users/{id}          → delete user
//	GET    {base}/users/{id}/rsvp     → RSVP flag
//	PUT    {base}/users/{id}/rsvp     → set RSVP flag
//	GET    {base}/auth/google         → redirect to Google
//	GET    {base}/auth/google/callback → finish login, redirect to the front end
//	GET    {base}/auth/failure        → redirect to the front end's failure page
//	GET    {base}/auth/me             → current user
//	POST   {base}/auth/logout         → end the session
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: unique ID per request, picked up by the logger
//  2. RealIP: client IP from proxy headers
//  3. Logger: one line per request
//  4. Recoverer: a panic becomes a 500 instead of a crash
//  5. SecureHeaders, CORS: set before any handler can write
//  6. RequestSize: 10 MB body cap
func (s *Server) setupRoutes() error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn.Std())
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	sessions, err := session.NewManager(s.deps.Sessions, cfg.SessionSecret, session.DefaultTTL, cfg.IsProduction())
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}

	// === Services ===
	userService := service.NewUserService(s.deps.Store, s.deps.Events, s.logger)
	identityService := service.NewIdentityService(s.deps.Store, s.deps.Events, s.logger)
	authService := service.NewAuthService(identityService, tokens, s.logger)

	// === Handlers ===
	apiBase := cfg.APIBase()
	errs := handler.NewErrors(s.logger, cfg.IsDevelopment())
	userHandler := handler.NewUserHandler(userService, errs, s.logger)
	authHandler := handler.NewAuthHandler(s.deps.Google, authService, sessions, errs, handler.AuthConfig{
		FrontendURL:   cfg.FrontendURL,
		FailurePath:   apiBase + "/auth/failure",
		SecureCookies: cfg.IsProduction(),
	}, s.logger)
	metaHandler := handler.NewMetaHandler(s.deps.Store, cfg.Environment, apiBase, cfg.APIVersion)
	authenticator := auth.NewAuthenticator(sessions, tokens, s.deps.Store, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecureHeaders(cfg.CORSOrigin != ""))
	s.router.Use(middleware.CORS(cfg.CORSOrigin))
	s.router.Use(chimiddleware.RequestSize(maxBodyBytes))

	// Set before Route() so the API sub-router inherits them.
	s.router.NotFound(metaHandler.HandleNotFound)
	s.router.MethodNotAllowed(metaHandler.HandleNotFound)

	s.router.Get("/", metaHandler.HandleRoot)
	s.router.Get("/health", metaHandler.HandleHealth)

	s.router.Route(apiBase, func(r chi.Router) {
		r.Use(authenticator.Identify)

		r.Get("/", metaHandler.HandleAPIInfo)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.HandleCreate)
			r.Get("/", userHandler.HandleList)
			r.Get("/{id}", userHandler.HandleGet)
			r.Put("/{id}", userHandler.HandleUpdate)
			r.Delete("/{id}", userHandler.HandleDelete)
			r.Get("/{id}/rsvp", userHandler.HandleGetRSVP)
			r.Put("/{id}/rsvp", userHandler.HandleSetRSVP)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Get("/google", authHandler.HandleGoogleLogin)
			r.With(authHandler.CompleteGoogleLogin).Get("/google/callback", authHandler.HandleGoogleCallback)
			r.Get("/failure", authHandler.HandleFailure)
			r.Get("/me", authHandler.HandleMe)
			r.Post("/logout", authHandler.HandleLogout)
		})
	})

	return nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests to finish
//  3. Close the store, then the event publisher
//
// Step 3 runs only after step 2, so a request that is still draining never
// finds its database closed underneath it.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("environment", s.config.Environment),
			slog.String("api", s.config.APIBase()),
			slog.Bool("google_login", s.deps.Google != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	var result *multierror.Error

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			result = multierror.Append(result, fmt.Errorf("server error: %w", err))
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("graceful shutdown failed: %w", err))
		} else {
			s.logger.Info("server stopped gracefully")
		}
	}

	if err := s.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Close releases the store and the event publisher, in that order. Both are
// attempted; their errors are combined.
func (s *Server) Close() error {
	var result *multierror.Error
	if err := s.deps.Store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing store: %w", err))
	}
	if err := s.deps.Events.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing event publisher: %w", err))
	}
	return result.ErrorOrNil()
}
