package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, and applies DRIFT_* environment variable overrides.
// An empty path skips the file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env if present; silently ignore when missing.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from well-known DRIFT_*
// variables when set, so operators can inject secrets at deploy time
// without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Postgres.DSN, "DRIFT_POSTGRES_DSN")
	setStr(&cfg.Postgres.MigrationsDir, "DRIFT_POSTGRES_MIGRATIONS_DIR")
	setBool(&cfg.Postgres.RunMigrations, "DRIFT_POSTGRES_RUN_MIGRATIONS")
	setInt(&cfg.Postgres.MaxOpenConns, "DRIFT_POSTGRES_MAX_OPEN_CONNS")

	setStr(&cfg.NATS.URL, "DRIFT_NATS_URL")
	setInt(&cfg.NATS.BufferSize, "DRIFT_NATS_BUFFER_SIZE")

	setStr(&cfg.Redis.Addr, "DRIFT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DRIFT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DRIFT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DRIFT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DRIFT_REDIS_MAX_RETRIES")
	setDuration(&cfg.Redis.PriceTTL, "DRIFT_REDIS_PRICE_TTL")

	setStr(&cfg.Server.Addr, "DRIFT_SERVER_ADDR")
	setStr(&cfg.Server.MetricsAddr, "DRIFT_SERVER_METRICS_ADDR")
	setDuration(&cfg.Server.ShutdownTimeout, "DRIFT_SERVER_SHUTDOWN_TIMEOUT")

	setUint64(&cfg.Market.DefaultMinStake, "DRIFT_MARKET_DEFAULT_MIN_STAKE")
	setUint64(&cfg.Market.DefaultVirtualLiquidity, "DRIFT_MARKET_DEFAULT_VIRTUAL_LIQUIDITY")

	setStr(&cfg.LogLevel, "DRIFT_LOG_LEVEL")
}

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

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
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

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
