// Package config defines the top-level configuration for the oracle relay
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ORACLERELAY_* environment variables.
type Config struct {
	Upstream  UpstreamConfig  `toml:"upstream"`
	Trust     TrustConfig     `toml:"trust"`
	History   HistoryConfig   `toml:"history"`
	Display   DisplayConfig   `toml:"display"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Poller    PollerConfig    `toml:"poller"`
	Server    ServerConfig    `toml:"server"`
	LogLevel  string          `toml:"log_level"`
}

// UpstreamConfig points at the oracle health endpoint.
type UpstreamConfig struct {
	URL     string   `toml:"url"`
	Timeout duration `toml:"timeout"`
}

// TrustConfig lists the origins whose callers get a fresh rate-limit identity
// on every request. Matching is by substring on Origin or Referer.
type TrustConfig struct {
	Origins []string `toml:"origins"`
}

// HistoryConfig holds the price history backend and dedup thresholds.
type HistoryConfig struct {
	// Backend is "memory" or "postgres".
	Backend             string   `toml:"backend"`
	PriceDeltaThreshold float64  `toml:"price_delta_threshold"`
	DebounceInterval    duration `toml:"debounce_interval"`
	MinUpdateInterval   duration `toml:"min_update_interval"`
	QueueSize           int      `toml:"queue_size"`
}

// DisplayConfig controls formatted_price rendering.
type DisplayConfig struct {
	CurrencyPrefix     string `toml:"currency_prefix"`
	ThousandsSeparator string `toml:"thousands_separator"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN            string   `toml:"dsn"`
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Database       string   `toml:"database"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	SSLMode        string   `toml:"ssl_mode"`
	PoolMaxConns   int      `toml:"pool_max_conns"`
	PoolMinConns   int      `toml:"pool_min_conns"`
	ConnectTimeout duration `toml:"connect_timeout"`
	RunMigrations  bool     `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr        string   `toml:"addr"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	PoolSize    int      `toml:"pool_size"`
	MaxRetries  int      `toml:"max_retries"`
	TLSEnabled  bool     `toml:"tls_enabled"`
	DialTimeout duration `toml:"dial_timeout"`
}

// RateLimitConfig holds request limits per route.
type RateLimitConfig struct {
	// Backend is "memory" for a per-process limiter or "redis" for one
	// shared across replicas.
	Backend string `toml:"backend"`
	// PriceLimit is the number of price requests allowed per Window.
	PriceLimit int      `toml:"price_limit"`
	Window     duration `toml:"window"`
	// TrustProxyHeaders makes X-Forwarded-For / X-Real-IP the caller
	// address. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool     `toml:"trust_proxy_headers"`
	CleanupInterval   duration `toml:"cleanup_interval"`
}

// PollerConfig controls background snapshot refreshes.
type PollerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port               int      `toml:"port"`
	CORSOrigins        []string `toml:"cors_origins"`
	MinUserAgentLength int      `toml:"min_user_agent_length"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Upstream: UpstreamConfig{
			URL:     "http://localhost:29600/oracle/health",
			Timeout: duration{5 * time.Second},
		},
		Trust: TrustConfig{
			Origins: []string{"http://localhost:4932"},
		},
		History: HistoryConfig{
			Backend:             "memory",
			PriceDeltaThreshold: 1,
			DebounceInterval:    duration{2 * time.Second},
			MinUpdateInterval:   duration{300 * time.Second},
			QueueSize:           64,
		},
		Display: DisplayConfig{
			CurrencyPrefix:     "Rp ",
			ThousandsSeparator: ".",
		},
		Postgres: PostgresConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "oraclerelay",
			User:           "postgres",
			SSLMode:        "disable",
			PoolMaxConns:   4,
			PoolMinConns:   1,
			ConnectTimeout: duration{5 * time.Second},
			RunMigrations:  true,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PoolSize:    10,
			MaxRetries:  3,
			DialTimeout: duration{5 * time.Second},
		},
		RateLimit: RateLimitConfig{
			Backend:         "memory",
			PriceLimit:      20,
			Window:          duration{time.Minute},
			CleanupInterval: duration{time.Minute},
		},
		Poller: PollerConfig{
			Enabled:  true,
			Schedule: "@every 30s",
		},
		Server: ServerConfig{
			Port:               40865,
			CORSOrigins:        []string{"http://localhost:4932"},
			MinUserAgentLength: 5,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Upstream
	if !strings.HasPrefix(c.Upstream.URL, "http://") && !strings.HasPrefix(c.Upstream.URL, "https://") {
		errs = append(errs, fmt.Sprintf("upstream: url must be an http(s) URL, got %q", c.Upstream.URL))
	}
	if c.Upstream.Timeout.Duration <= 0 {
		errs = append(errs, "upstream: timeout must be > 0")
	}

	// History
	switch c.History.Backend {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("history: unknown backend %q (valid: memory, postgres)", c.History.Backend))
	}
	if c.History.PriceDeltaThreshold < 0 {
		errs = append(errs, "history: price_delta_threshold must be >= 0")
	}
	if c.History.DebounceInterval.Duration < 0 {
		errs = append(errs, "history: debounce_interval must be >= 0")
	}
	if c.History.MinUpdateInterval.Duration <= 0 {
		errs = append(errs, "history: min_update_interval must be > 0")
	}
	if c.History.QueueSize < 1 {
		errs = append(errs, "history: queue_size must be >= 1")
	}

	// Postgres
	if c.History.Backend == "postgres" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Rate limit
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	default:
		errs = append(errs, fmt.Sprintf("rate_limit: unknown backend %q (valid: memory, redis)", c.RateLimit.Backend))
	}
	if c.RateLimit.PriceLimit < 1 {
		errs = append(errs, "rate_limit: price_limit must be >= 1")
	}
	if c.RateLimit.Window.Duration <= 0 {
		errs = append(errs, "rate_limit: window must be > 0")
	}
	if c.RateLimit.CleanupInterval.Duration <= 0 {
		errs = append(errs, "rate_limit: cleanup_interval must be > 0")
	}

	// Poller
	if c.Poller.Enabled && strings.TrimSpace(c.Poller.Schedule) == "" {
		errs = append(errs, "poller: schedule must not be empty when enabled")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.MinUserAgentLength < 0 {
		errs = append(errs, "server: min_user_agent_length must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
