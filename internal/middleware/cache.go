package middleware

import (
	"net/http"
	"strings"
)

// NoStore sets no-cache headers on API responses. Eligibility and insights
// change with every submission, so intermediaries must not keep them.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/health" {
			SetNoStore(w.Header())
		}
		next.ServeHTTP(w, r)
	})
}

// SetNoStore writes the no-cache header set, also used on proxied frontend responses.
func SetNoStore(h http.Header) {
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}
