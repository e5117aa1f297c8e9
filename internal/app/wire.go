package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/oraclerelay/internal/cache/local"
	"github.com/alanyoungcy/oraclerelay/internal/cache/redis"
	"github.com/alanyoungcy/oraclerelay/internal/config"
	"github.com/alanyoungcy/oraclerelay/internal/domain"
	"github.com/alanyoungcy/oraclerelay/internal/store/memory"
	"github.com/alanyoungcy/oraclerelay/internal/store/postgres"
)

// Dependencies bundles the backends selected by configuration. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	HistoryStore domain.HistoryStore
	RateLimiter  domain.RateLimiter

	// LocalLimiter is set when the in-process limiter is in use; its idle
	// buckets need periodic cleanup.
	LocalLimiter *local.RateLimiter
}

// Wire constructs the history store and rate limiter backends from the
// given configuration and returns them together with a cleanup function
// that should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- History store ---
	switch cfg.History.Backend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:            cfg.Postgres.DSN,
			Host:           cfg.Postgres.Host,
			Port:           cfg.Postgres.Port,
			Database:       cfg.Postgres.Database,
			User:           cfg.Postgres.User,
			Password:       cfg.Postgres.Password,
			SSLMode:        cfg.Postgres.SSLMode,
			MaxConns:       cfg.Postgres.PoolMaxConns,
			MinConns:       cfg.Postgres.PoolMinConns,
			ConnectTimeout: cfg.Postgres.ConnectTimeout.Duration,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.HistoryStore = postgres.NewHistoryStore(pgClient.Pool())
	default:
		deps.HistoryStore = memory.NewHistoryStore()
	}

	// --- Rate limiter ---
	switch cfg.RateLimit.Backend {
	case "redis":
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			MaxRetries:  cfg.Redis.MaxRetries,
			TLSEnabled:  cfg.Redis.TLSEnabled,
			DialTimeout: cfg.Redis.DialTimeout.Duration,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	default:
		deps.LocalLimiter = local.NewRateLimiter(nil)
		deps.RateLimiter = deps.LocalLimiter
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("history_backend", cfg.History.Backend),
		slog.String("rate_limit_backend", cfg.RateLimit.Backend),
	)
	return deps, cleanup, nil
}
