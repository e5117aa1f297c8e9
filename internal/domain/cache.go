package domain

import (
	"context"
	"time"
)

// RateLimiter provides keyed rate limiting. Keys are rate-limit identities
// produced by the trust resolver.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
