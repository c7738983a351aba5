package middleware

import (
	"net/http"

	"github.com/unrolled/secure"
)

// SecureHeaders sets the usual hardening headers for a JSON API that is never
// meant to be framed or rendered as a page. They are written before the
// handler runs, so errors and redirects carry them too.
//
// Cross-Origin-Resource-Policy is relaxed to cross-origin when allowCrossOrigin
// is true, otherwise a front end on another origin couldn't read responses
// even with CORS allowing it.
func SecureHeaders(allowCrossOrigin bool) func(http.Handler) http.Handler {
	corp := "same-origin"
	if allowCrossOrigin {
		corp = "cross-origin"
	}

	s := secure.New(secure.Options{
		ContentSecurityPolicy:         "default-src 'self';base-uri 'self';frame-ancestors 'self';object-src 'none'",
		CrossOriginOpenerPolicy:       "same-origin",
		CrossOriginResourcePolicy:     corp,
		ReferrerPolicy:                "no-referrer",
		STSSeconds:                    15552000,
		STSIncludeSubdomains:          true,
		ForceSTSHeader:                true,
		ContentTypeNosniff:            true,
		XDNSPrefetchControl:           "off",
		CustomFrameOptionsValue:       "SAMEORIGIN",
		XPermittedCrossDomainPolicies: "none",
		CustomBrowserXssValue:         "0",
	})

	return func(next http.Handler) http.Handler {
		return s.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Not covered by secure.Options.
			h := w.Header()
			h.Set("Origin-Agent-Cluster", "?1")
			h.Set("X-Download-Options", "noopen")
			next.ServeHTTP(w, r)
		}))
	}
}
