package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
log_level = "debug"

[server]
addr = ":9999"

[market]
default_min_stake = 500
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DRIFT_SERVER_ADDR", ":7777")
	t.Setenv("DRIFT_REDIS_PRICE_TTL", "30s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug (from file)", cfg.LogLevel)
	}
	if cfg.Market.DefaultMinStake != 500 {
		t.Errorf("min stake = %d, want 500 (from file)", cfg.Market.DefaultMinStake)
	}
	// Env wins over file.
	if cfg.Server.Addr != ":7777" {
		t.Errorf("server addr = %q, want :7777 (from env)", cfg.Server.Addr)
	}
	if cfg.Redis.PriceTTL != 30*time.Second {
		t.Errorf("price ttl = %v, want 30s (from env)", cfg.Redis.PriceTTL)
	}
	// Untouched fields keep defaults.
	if cfg.Postgres.MigrationsDir != "migrations" {
		t.Errorf("migrations dir = %q, want default", cfg.Postgres.MigrationsDir)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[market]
default_virtual_liquidity = 0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("load should fail when virtual liquidity is zero")
	}

	body = `
[postgres]
dsn = ""
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("load should fail when postgres dsn is empty")
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load without file: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}
