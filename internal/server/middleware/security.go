package middleware

import (
	"net/http"
	"strings"
)

// SecurityHeaders sets the response headers every relay response carries.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// RequireUserAgent rejects requests whose trimmed User-Agent is shorter than
// minLength with 403. A minLength of 0 disables the check.
func RequireUserAgent(minLength int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if minLength > 0 && len(strings.TrimSpace(r.UserAgent())) < minLength {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"detail":"Invalid client"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
