package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
	"github.com/alanyoungcy/oraclerelay/internal/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedSource returns the next queued result on every call.
type scriptedSource struct {
	results []sourceResult
	onFetch func()
}

type sourceResult struct {
	snap domain.OracleSnapshot
	err  error
}

func (s *scriptedSource) FetchSnapshot(context.Context) (domain.OracleSnapshot, error) {
	if s.onFetch != nil {
		s.onFetch()
	}
	if len(s.results) == 0 {
		return domain.OracleSnapshot{}, fmt.Errorf("oracle: fetch: %w", domain.ErrUpstreamUnreachable)
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.snap, r.err
}

func liveSnapshot(price, latency float64) domain.OracleSnapshot {
	return domain.OracleSnapshot{
		Price:          price,
		Status:         "healthy",
		PriceState:     domain.PriceStateFresh,
		LatencySeconds: latency,
	}
}

func TestOracleFetcher_LiveSnapshotIsCached(t *testing.T) {
	clk := clock.NewMock()
	store := NewSnapshotStore()
	src := &scriptedSource{results: []sourceResult{{snap: liveSnapshot(100, 4)}}}
	f := NewOracleFetcher(src, store, clk, discardLogger())

	snap, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, liveSnapshot(100, 4), snap)

	cached, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, snap, cached.Snapshot)
	assert.Equal(t, clk.Now(), cached.CapturedAt)
}

func TestOracleFetcher_StaleLatencyGrowsWithElapsedTime(t *testing.T) {
	clk := clock.NewMock()
	src := &scriptedSource{results: []sourceResult{{snap: liveSnapshot(100, 4)}}}
	f := NewOracleFetcher(src, NewSnapshotStore(), clk, discardLogger())

	_, err := f.Fetch(context.Background())
	require.NoError(t, err)

	failures := []error{
		fmt.Errorf("oracle: fetch: %w", domain.ErrUpstreamUnreachable),
		fmt.Errorf("oracle: status 502: %w", domain.ErrMalformedUpstreamResponse),
		fmt.Errorf("oracle: missing price: %w", domain.ErrMalformedUpstreamResponse),
	}

	last := 4.0
	for i, failure := range failures {
		src.results = append(src.results, sourceResult{err: failure})
		clk.Add(time.Duration(i+1) * 7 * time.Second)

		snap, err := f.Fetch(context.Background())
		require.NoError(t, err)

		assert.True(t, snap.IsStale())
		assert.Equal(t, 100.0, snap.Price)
		assert.Greater(t, snap.LatencySeconds, last, "latency must grow")
		last = snap.LatencySeconds
	}
	// 4s original latency plus 7+14+21 seconds since capture.
	assert.InDelta(t, 46.0, last, 1e-9)
}

func scrapeMetrics(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestOracleFetcher_ExportsLiveSnapshotQuality(t *testing.T) {
	clk := clock.NewMock()
	live := liveSnapshot(100, 4)
	live.Score = 88.5
	live.AvgDeviationPercent = 0.25
	live.MaxDeviationPercent = 0.75
	live.Checks = 7
	src := &scriptedSource{results: []sourceResult{
		{snap: live},
		{err: domain.ErrUpstreamUnreachable},
	}}
	f := NewOracleFetcher(src, NewSnapshotStore(), clk, discardLogger())

	_, err := f.Fetch(context.Background())
	require.NoError(t, err)
	stale, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, stale.IsStale())

	// The stale fallback leaves the live quality figures in place.
	body := scrapeMetrics(t)
	assert.Contains(t, body, "oraclerelay_oracle_score 88.5")
	assert.Contains(t, body, `oraclerelay_oracle_deviation_percent{stat="avg"} 0.25`)
	assert.Contains(t, body, `oraclerelay_oracle_deviation_percent{stat="max"} 0.75`)
	assert.Contains(t, body, "oraclerelay_oracle_checks 7")
	assert.Contains(t, body, `oraclerelay_oracle_status_info{price_state="fresh",status="healthy"} 1`)
	assert.NotContains(t, body, `price_state="stale"`)
}

func TestOracleFetcher_ClockRewindNeverShrinksLatency(t *testing.T) {
	clk := clock.NewMock()
	clk.Add(time.Hour)
	src := &scriptedSource{results: []sourceResult{{snap: liveSnapshot(100, 4)}}}
	f := NewOracleFetcher(src, NewSnapshotStore(), clk, discardLogger())
	_, err := f.Fetch(context.Background())
	require.NoError(t, err)

	clk.Add(-10 * time.Second)
	snap, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4.0, snap.LatencySeconds)
}

func TestOracleFetcher_SuccessAfterFailureReplacesCache(t *testing.T) {
	clk := clock.NewMock()
	src := &scriptedSource{results: []sourceResult{
		{snap: liveSnapshot(100, 4)},
		{err: domain.ErrUpstreamUnreachable},
		{snap: liveSnapshot(105, 1)},
	}}
	f := NewOracleFetcher(src, NewSnapshotStore(), clk, discardLogger())

	_, _ = f.Fetch(context.Background())
	clk.Add(10 * time.Second)
	stale, _ := f.Fetch(context.Background())
	require.True(t, stale.IsStale())

	fresh, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, liveSnapshot(105, 1), fresh)
}

func TestOracleFetcher_UnavailableWithoutCache(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{
		{err: fmt.Errorf("oracle: fetch: %w", domain.ErrUpstreamUnreachable)},
		{err: fmt.Errorf("oracle: decode: %w", domain.ErrMalformedUpstreamResponse)},
	}}
	f := NewOracleFetcher(src, NewSnapshotStore(), clock.NewMock(), discardLogger())

	for _, cause := range []error{domain.ErrUpstreamUnreachable, domain.ErrMalformedUpstreamResponse} {
		snap, err := f.Fetch(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnavailable)
		assert.ErrorIs(t, err, domain.ErrNoCachedData)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, domain.OracleSnapshot{}, snap)
	}
}

func TestOracleFetcher_StoreUnlockedDuringFetch(t *testing.T) {
	store := NewSnapshotStore()
	store.Put(liveSnapshot(100, 0), time.Unix(0, 0))

	done := make(chan struct{})
	src := &scriptedSource{onFetch: func() {
		// Would deadlock if Fetch held the store lock across the call.
		_, _ = store.Get()
		close(done)
	}}
	f := NewOracleFetcher(src, store, clock.NewMock(), discardLogger())

	_, err := f.Fetch(context.Background())
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("source was not called")
	}
}

func TestFailureKind(t *testing.T) {
	assert.Equal(t, "unreachable", failureKind(fmt.Errorf("x: %w", domain.ErrUpstreamUnreachable)))
	assert.Equal(t, "malformed_response", failureKind(fmt.Errorf("x: %w", domain.ErrMalformedUpstreamResponse)))
	assert.Equal(t, "unknown", failureKind(errors.New("boom")))
}
