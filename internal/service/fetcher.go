package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/facebookgo/clock"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
	"github.com/alanyoungcy/oraclerelay/internal/metrics"
)

// SnapshotSource performs a single upstream fetch.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (domain.OracleSnapshot, error)
}

// OracleFetcher implements fetch-with-fallback over a SnapshotSource. A
// successful fetch replaces the cached snapshot; a failed one serves an aged
// copy of it.
type OracleFetcher struct {
	source SnapshotSource
	store  *SnapshotStore
	clk    clock.Clock
	logger *slog.Logger
}

// NewOracleFetcher creates an OracleFetcher. A nil clk uses the wall clock.
func NewOracleFetcher(source SnapshotSource, store *SnapshotStore, clk clock.Clock, logger *slog.Logger) *OracleFetcher {
	if clk == nil {
		clk = clock.New()
	}
	return &OracleFetcher{
		source: source,
		store:  store,
		clk:    clk,
		logger: logger.With(slog.String("component", "oracle_fetcher")),
	}
}

// Fetch returns a live snapshot, or a stale one derived from the cache when
// the upstream fails. It returns domain.ErrUnavailable when the upstream
// fails and nothing has ever been cached. Fetch never retries.
func (f *OracleFetcher) Fetch(ctx context.Context) (domain.OracleSnapshot, error) {
	start := f.clk.Now()
	snap, err := f.source.FetchSnapshot(ctx)
	metrics.ObserveUpstream(f.clk.Now().Sub(start))

	if err == nil {
		f.store.Put(snap, f.clk.Now())
		metrics.RecordFetch(metrics.FetchLive)
		metrics.SetServedLatency(snap.LatencySeconds)
		metrics.SetSnapshotQuality(snap)
		return snap, nil
	}

	f.logger.WarnContext(ctx, "oracle fetch failed",
		slog.String("kind", failureKind(err)),
		slog.String("error", err.Error()),
	)

	cached, ok := f.store.Get()
	if !ok {
		metrics.RecordFetch(metrics.FetchUnavailable)
		return domain.OracleSnapshot{}, fmt.Errorf("oracle_fetcher: %w: %w: %w", domain.ErrUnavailable, domain.ErrNoCachedData, err)
	}

	stale := cached.Aged(f.clk.Now())
	f.logger.WarnContext(ctx, "serving stale snapshot",
		slog.Time("captured_at", cached.CapturedAt),
		slog.Float64("latency_seconds", stale.LatencySeconds),
	)
	metrics.RecordFetch(metrics.FetchStale)
	metrics.SetServedLatency(stale.LatencySeconds)
	return stale, nil
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrMalformedUpstreamResponse):
		return "malformed_response"
	case errors.Is(err, domain.ErrUpstreamUnreachable):
		return "unreachable"
	default:
		return "unknown"
	}
}
