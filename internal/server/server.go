package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
	"github.com/alanyoungcy/oraclerelay/internal/server/handler"
	"github.com/alanyoungcy/oraclerelay/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port               int
	CORSOrigins        []string
	MinUserAgentLength int
	PriceLimit         int
	RateLimitWindow    time.Duration
	TrustProxyHeaders  bool
}

// Deps aggregates what the server needs to register its routes.
type Deps struct {
	Quotes   handler.QuoteSource
	Limiter  domain.RateLimiter
	Resolver middleware.IdentityResolver
	// Metrics serves GET /metrics. Nil leaves the route unregistered.
	Metrics http.Handler
}

// Server is the public HTTP API of the relay.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	health := handler.NewHealthHandler()
	price := handler.NewPriceHandler(deps.Quotes, logger)

	// Liveness only; not rate limited.
	mux.HandleFunc("GET /api/health", health.HealthCheck)

	var priceRoute http.Handler = http.HandlerFunc(price.GetPrice)
	priceRoute = middleware.RequireUserAgent(cfg.MinUserAgentLength)(priceRoute)
	priceRoute = middleware.RateLimit(deps.Limiter, deps.Resolver, middleware.RateLimitConfig{
		Route:             "price",
		Limit:             cfg.PriceLimit,
		Window:            cfg.RateLimitWindow,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	}, logger)(priceRoute)
	mux.Handle("GET /public/price", priceRoute)

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.SecurityHeaders(h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve accepts connections on ln until the server is shut down.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server: starting",
		slog.String("addr", ln.Addr().String()),
	)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
