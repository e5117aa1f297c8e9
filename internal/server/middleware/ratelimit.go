package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
	"github.com/alanyoungcy/oraclerelay/internal/metrics"
	"github.com/alanyoungcy/oraclerelay/internal/service"
)

// IdentityResolver assigns a rate-limit identity to a caller.
type IdentityResolver interface {
	Resolve(origin, referer, remoteAddr string) service.Identity
}

// RateLimitConfig configures one rate-limited route.
type RateLimitConfig struct {
	// Route namespaces the limiter keys so routes do not share buckets.
	Route  string
	Limit  int
	Window time.Duration
	// TrustProxyHeaders takes the caller address from X-Forwarded-For or
	// X-Real-IP instead of the socket peer.
	TrustProxyHeaders bool
}

// RateLimit returns middleware that limits each caller identity to
// cfg.Limit requests per cfg.Window. The identity comes from resolver.
// Trusted identities bypass the limiter and never allocate a bucket.
func RateLimit(limiter domain.RateLimiter, resolver IdentityResolver, cfg RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := r.RemoteAddr
			if cfg.TrustProxyHeaders {
				addr = extractClientIP(r)
			}
			id := resolver.Resolve(r.Header.Get("Origin"), r.Header.Get("Referer"), addr)
			if id.Trusted {
				metrics.RecordRateLimit(true, true)
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), cfg.Route+":"+id.Key, cfg.Limit, cfg.Window)
			if err != nil {
				// On rate-limiter errors, fail open to avoid blocking
				// legitimate traffic. The error is not surfaced to the client.
				logger.WarnContext(r.Context(), "rate limiter unavailable",
					slog.String("route", cfg.Route),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			metrics.RecordRateLimit(id.Trusted, allowed)

			if !allowed {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"detail":"Too many requests"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractClientIP attempts to determine the real client IP from standard
// proxy headers, falling back to the direct remote address.
func extractClientIP(r *http.Request) string {
	// Check X-Forwarded-For first (may contain multiple IPs).
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}

	// Check X-Real-IP.
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
