// Package app provides the top-level application lifecycle management for the
// oracle relay. It wires together the history store, rate limiter, oracle
// client and relay services, then runs the HTTP server and background
// workers until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oraclerelay/internal/config"
	"github.com/alanyoungcy/oraclerelay/internal/metrics"
	"github.com/alanyoungcy/oraclerelay/internal/platform/oracle"
	"github.com/alanyoungcy/oraclerelay/internal/server"
	"github.com/alanyoungcy/oraclerelay/internal/service"
)

const shutdownTimeout = 5 * time.Second

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the server and background workers, and
// blocks until the context is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on a caller-supplied listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("upstream", a.cfg.Upstream.URL),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	relay, ledger := a.buildServices(deps)

	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		MinUserAgentLength: a.cfg.Server.MinUserAgentLength,
		PriceLimit:         a.cfg.RateLimit.PriceLimit,
		RateLimitWindow:    a.cfg.RateLimit.Window.Duration,
		TrustProxyHeaders:  a.cfg.RateLimit.TrustProxyHeaders,
	}, server.Deps{
		Quotes:   relay,
		Limiter:  deps.RateLimiter,
		Resolver: service.NewTrustResolver(a.cfg.Trust.Origins),
		Metrics:  metrics.Handler(),
	}, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ledger.Run(ctx)
	})

	if deps.LocalLimiter != nil {
		g.Go(func() error {
			return deps.LocalLimiter.Run(ctx, a.cfg.RateLimit.CleanupInterval.Duration)
		})
	}

	if a.cfg.Poller.Enabled {
		poller := service.NewPoller(relay, a.cfg.Poller.Schedule, a.logger)
		g.Go(func() error {
			return poller.Run(ctx)
		})
	}

	g.Go(func() error {
		return srv.Serve(ln)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

func (a *App) buildServices(deps *Dependencies) (*service.RelayService, *service.HistoryLedger) {
	client := oracle.NewClient(a.cfg.Upstream.URL, a.cfg.Upstream.Timeout.Duration)
	fetcher := service.NewOracleFetcher(client, service.NewSnapshotStore(), nil, a.logger)

	ledger := service.NewHistoryLedger(deps.HistoryStore, service.LedgerConfig{
		PriceDeltaThreshold: a.cfg.History.PriceDeltaThreshold,
		Debounce:            a.cfg.History.DebounceInterval.Duration,
		MinUpdateInterval:   a.cfg.History.MinUpdateInterval.Duration,
		QueueSize:           a.cfg.History.QueueSize,
	}, nil, a.logger)

	relay := service.NewRelayService(fetcher, ledger, service.PriceFormat{
		CurrencyPrefix:     a.cfg.Display.CurrencyPrefix,
		ThousandsSeparator: a.cfg.Display.ThousandsSeparator,
	}, a.logger)

	return relay, ledger
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
