// Package oracle is the HTTP client for the internal price-oracle health
// endpoint.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
)

const (
	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

// Client fetches snapshots from a single fixed upstream URL.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a Client for url. A zero timeout falls back to 5s.
// Ambient proxy settings (HTTP_PROXY and friends) are ignored: the upstream
// is an internal endpoint and must be dialled directly.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil

	return &Client{
		url: strings.TrimSpace(url),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// URL returns the upstream endpoint.
func (c *Client) URL() string {
	return c.url
}

// FetchSnapshot performs one GET against the upstream. Transport failures
// wrap domain.ErrUpstreamUnreachable; bad status codes, undecodable bodies
// and a missing price wrap domain.ErrMalformedUpstreamResponse.
func (c *Client) FetchSnapshot(ctx context.Context) (domain.OracleSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return domain.OracleSnapshot{}, fmt.Errorf("oracle: create request: %w: %w", domain.ErrUpstreamUnreachable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.OracleSnapshot{}, fmt.Errorf("oracle: http request: %w: %w", domain.ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.OracleSnapshot{}, fmt.Errorf("oracle: read response: %w: %w", domain.ErrUpstreamUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.OracleSnapshot{}, fmt.Errorf("oracle: HTTP %d: %w", resp.StatusCode, domain.ErrMalformedUpstreamResponse)
	}

	var payload healthResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.OracleSnapshot{}, fmt.Errorf("oracle: decode response: %w: %w", domain.ErrMalformedUpstreamResponse, err)
	}

	snap, ok := payload.toSnapshot()
	if !ok {
		return domain.OracleSnapshot{}, fmt.Errorf("oracle: last_oracle_price missing: %w", domain.ErrMalformedUpstreamResponse)
	}
	return snap, nil
}
