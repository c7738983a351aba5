package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// preflightMaxAge is how long, in seconds, a browser may cache a preflight.
const preflightMaxAge = 600

// CORS allows the configured front-end origin to call the API from the
// browser, with credentials (the session cookie).
//
// HOW CORS WORKS:
// A page on http://localhost:3000 calling http://localhost:8000 is a
// cross-origin request. The browser sends an Origin header; the response must
// echo that origin in Access-Control-Allow-Origin or the page can't read it.
// For non-simple requests (PUT, DELETE, JSON bodies, Authorization headers)
// the browser first sends an OPTIONS "preflight" asking what's allowed.
// go-chi/cors answers preflights itself, so they never reach the router.
//
// With credentials the allowed origin must be an exact origin, never "*".
// If allowedOrigin is "*", any origin is echoed back instead.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           preflightMaxAge,
	}

	if allowedOrigin == "*" {
		opts.AllowOriginFunc = func(*http.Request, string) bool { return true }
	} else {
		opts.AllowedOrigins = []string{strings.TrimRight(allowedOrigin, "/")}
	}

	return cors.Handler(opts)
}
