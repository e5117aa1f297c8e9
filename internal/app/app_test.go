package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oraclerelay/internal/config"
)

func testConfig(upstreamURL string) *config.Config {
	cfg := config.Defaults()
	cfg.Upstream.URL = upstreamURL
	cfg.Poller.Enabled = false
	return &cfg
}

func startApp(t *testing.T, cfg *config.Config) (baseURL string, stop func() error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	a := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	return "http://" + ln.Addr().String(), func() error {
		cancel()
		defer a.Close()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			return context.DeadlineExceeded
		}
	}
}

func getPrice(t *testing.T, baseURL string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, baseURL+"/public/price", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "relay-test/1.0")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestApp_ServesLiveThenStale(t *testing.T) {
	var up atomic.Bool
	up.Store(true)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy","price_state":"fresh","latency_seconds":3,"last_oracle_price":55000000}`))
	}))
	defer upstream.Close()

	baseURL, stop := startApp(t, testConfig(upstream.URL))

	var (
		status int
		body   map[string]any
	)
	// The listener is bound before Serve runs, so the first request may
	// race only with wiring.
	require.Eventually(t, func() bool {
		status, body = getPrice(t, baseURL)
		return status == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, "Rp 55.000.000", body["formatted_price"])
	assert.Equal(t, "fresh", body["price_state"])
	assert.Equal(t, true, body["is_neutral"])

	up.Store(false)
	status, body = getPrice(t, baseURL)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "stale", body["price_state"])
	assert.GreaterOrEqual(t, body["price_age_seconds"].(float64), 3.0)

	assert.ErrorIs(t, stop(), context.Canceled)
}

func TestApp_UnavailableWithoutCache(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	baseURL, stop := startApp(t, testConfig(upstream.URL))

	var (
		status int
		body   map[string]any
	)
	require.Eventually(t, func() bool {
		status, body = getPrice(t, baseURL)
		return status == http.StatusServiceUnavailable
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "Oracle unavailable", body["detail"])

	assert.ErrorIs(t, stop(), context.Canceled)
}

func TestWire_PostgresUnreachable(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1/oracle/health")
	cfg.History.Backend = "postgres"
	cfg.Postgres.DSN = "postgres://postgres@127.0.0.1:1/oraclerelay?sslmode=disable&connect_timeout=1"

	_, _, err := Wire(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wire: postgres")
}
