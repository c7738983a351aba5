package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sakif/event-rsvp/internal/repository"
)

// MetaHandler serves the endpoints that describe the service itself:
// health, API info, the root greeting and the JSON 404.
type MetaHandler struct {
	db          repository.HealthChecker
	environment string
	apiBase     string
	version     string
	started     time.Time
}

// NewMetaHandler creates a MetaHandler. apiBase is the versioned API mount
// point ("/api/v1"), version its version segment ("v1").
func NewMetaHandler(db repository.HealthChecker, environment, apiBase, version string) *MetaHandler {
	return &MetaHandler{
		db:          db,
		environment: environment,
		apiBase:     apiBase,
		version:     version,
		started:     time.Now(),
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Uptime      float64   `json:"uptime"` // seconds
	Environment string    `json:"environment"`
	Database    string    `json:"database"` // "Connected" or "Disconnected"
}

// HandleHealth reports liveness and the store's connection state.
//
// HTTP: GET /health
//
// The endpoint answers 200 even when the database is down: the process is
// alive and the body says what's wrong. A load balancer that needs
// readiness semantics can check the database field.
func (h *MetaHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	db := "Disconnected"
	if h.db.Healthy(ctx) {
		db = "Connected"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "OK",
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.started).Seconds(),
		Environment: h.environment,
		Database:    db,
	})
}

// HandleAPIInfo describes the API.
//
// HTTP: GET /api/v1
func (h *MetaHandler) HandleAPIInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Event RSVP API",
		"version":   h.version,
		"status":    "Running",
		"timestamp": time.Now().UTC(),
	})
}

// HandleRoot points visitors at the API and the health check.
//
// HTTP: GET /
func (h *MetaHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":       "Welcome to the Event RSVP API",
		"version":       h.version,
		"documentation": h.apiBase,
		"health":        "/health",
	})
}

// HandleNotFound is the JSON 404 for every unmatched route.
func (h *MetaHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error":  "Route not found",
		"path":   r.URL.RequestURI(),
		"method": r.Method,
	})
}
