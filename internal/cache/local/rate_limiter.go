// Package local provides an in-process rate limiter for single-instance
// deployments.
package local

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type bucketKey struct {
	key    string
	limit  int
	window time.Duration
}

// RateLimiter implements domain.RateLimiter with one token bucket per
// (key, limit, window). A bucket holds limit tokens and refills one token
// every window/limit.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[bucketKey]*entry
	clk     clock.Clock
}

// NewRateLimiter creates a RateLimiter. A nil clk uses the wall clock.
func NewRateLimiter(clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &RateLimiter{
		entries: make(map[bucketKey]*entry),
		clk:     clk,
	}
}

// Allow reports whether one more request for key is permitted.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, nil
	}
	now := rl.clk.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	bk := bucketKey{key: key, limit: limit, window: window}
	e, ok := rl.entries[bk]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		rl.entries[bk] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1), nil
}

// Len returns the number of live buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// Cleanup removes buckets idle for longer than their window. An idle bucket
// has fully refilled, so dropping it loses no state. Trusted callers get a
// new key per request, which makes this necessary to bound memory.
func (rl *RateLimiter) Cleanup() {
	now := rl.clk.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, e := range rl.entries {
		if now.Sub(e.lastSeen) > k.window {
			delete(rl.entries, k)
		}
	}
}

// Run calls Cleanup every interval until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) error {
	ticker := rl.clk.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
