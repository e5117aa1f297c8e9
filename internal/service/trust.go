package service

import (
	"net"
	"strings"

	"github.com/google/uuid"
)

// Identity is the rate-limit bucket assigned to one inbound call.
type Identity struct {
	Key     string
	Trusted bool
}

// TrustResolver classifies callers by their Origin and Referer headers.
//
// Trust is granted when either header contains a configured origin as a
// substring. Any client can forge these headers, so this only exempts a
// known first-party UI from rate limiting; it is not an access control.
type TrustResolver struct {
	origins []string
}

// NewTrustResolver creates a TrustResolver for the given trusted origins.
// Blank entries are ignored, since an empty substring would match every
// caller.
func NewTrustResolver(origins []string) *TrustResolver {
	cleaned := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	return &TrustResolver{origins: cleaned}
}

// IsTrusted reports whether origin or referer contains a trusted origin.
func (t *TrustResolver) IsTrusted(origin, referer string) bool {
	return t.matches(origin) || t.matches(referer)
}

// Resolve returns the rate-limit identity for a call. Trusted callers get a
// fresh random key on every call, which puts each request in its own bucket.
// Everyone else shares one bucket per source host.
func (t *TrustResolver) Resolve(origin, referer, remoteAddr string) Identity {
	if t.IsTrusted(origin, referer) {
		return Identity{Key: uuid.NewString(), Trusted: true}
	}
	return Identity{Key: hostOnly(remoteAddr)}
}

func (t *TrustResolver) matches(header string) bool {
	if header == "" {
		return false
	}
	for _, o := range t.origins {
		if strings.Contains(header, o) {
			return true
		}
	}
	return false
}

// hostOnly strips the port from a host:port address.
func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.TrimSpace(addr)
	}
	return host
}
