package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ORACLERELAY_* environment variable overrides,
// and returns the final Config. An empty path skips the file. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	return &cfg, nil
}

// applyEnvOverrides reads well-known ORACLERELAY_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Upstream ──
	setStr(&cfg.Upstream.URL, "ORACLERELAY_UPSTREAM_URL")
	setDuration(&cfg.Upstream.Timeout, "ORACLERELAY_UPSTREAM_TIMEOUT")

	// ── Trust ──
	setStringSlice(&cfg.Trust.Origins, "ORACLERELAY_TRUST_ORIGINS")

	// ── History ──
	setStr(&cfg.History.Backend, "ORACLERELAY_HISTORY_BACKEND")
	setFloat64(&cfg.History.PriceDeltaThreshold, "ORACLERELAY_HISTORY_PRICE_DELTA_THRESHOLD")
	setDuration(&cfg.History.DebounceInterval, "ORACLERELAY_HISTORY_DEBOUNCE_INTERVAL")
	setDuration(&cfg.History.MinUpdateInterval, "ORACLERELAY_HISTORY_MIN_UPDATE_INTERVAL")
	setInt(&cfg.History.QueueSize, "ORACLERELAY_HISTORY_QUEUE_SIZE")

	// ── Display ──
	setStr(&cfg.Display.CurrencyPrefix, "ORACLERELAY_DISPLAY_CURRENCY_PREFIX")
	setStr(&cfg.Display.ThousandsSeparator, "ORACLERELAY_DISPLAY_THOUSANDS_SEPARATOR")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ORACLERELAY_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ORACLERELAY_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ORACLERELAY_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ORACLERELAY_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ORACLERELAY_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ORACLERELAY_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ORACLERELAY_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ORACLERELAY_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ORACLERELAY_POSTGRES_POOL_MIN_CONNS")
	setDuration(&cfg.Postgres.ConnectTimeout, "ORACLERELAY_POSTGRES_CONNECT_TIMEOUT")
	setBool(&cfg.Postgres.RunMigrations, "ORACLERELAY_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ORACLERELAY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ORACLERELAY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ORACLERELAY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ORACLERELAY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ORACLERELAY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ORACLERELAY_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.DialTimeout, "ORACLERELAY_REDIS_DIAL_TIMEOUT")

	// ── Rate limit ──
	setStr(&cfg.RateLimit.Backend, "ORACLERELAY_RATE_LIMIT_BACKEND")
	setInt(&cfg.RateLimit.PriceLimit, "ORACLERELAY_RATE_LIMIT_PRICE_LIMIT")
	setDuration(&cfg.RateLimit.Window, "ORACLERELAY_RATE_LIMIT_WINDOW")
	setBool(&cfg.RateLimit.TrustProxyHeaders, "ORACLERELAY_RATE_LIMIT_TRUST_PROXY_HEADERS")
	setDuration(&cfg.RateLimit.CleanupInterval, "ORACLERELAY_RATE_LIMIT_CLEANUP_INTERVAL")

	// ── Poller ──
	setBool(&cfg.Poller.Enabled, "ORACLERELAY_POLLER_ENABLED")
	setStr(&cfg.Poller.Schedule, "ORACLERELAY_POLLER_SCHEDULE")

	// ── Server ──
	setInt(&cfg.Server.Port, "ORACLERELAY_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ORACLERELAY_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.MinUserAgentLength, "ORACLERELAY_SERVER_MIN_USER_AGENT_LENGTH")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ORACLERELAY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
