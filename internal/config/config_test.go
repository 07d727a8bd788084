package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Proxy.Endpoint != "http://localhost:8191/v1" {
		t.Fatalf("unexpected proxy endpoint %q", cfg.Proxy.Endpoint)
	}
	if cfg.Proxy.MaxTimeout != 180*time.Second || cfg.Proxy.RequestTimeout != 200*time.Second {
		t.Fatalf("unexpected proxy timeouts: %+v", cfg.Proxy)
	}
	if cfg.Retry.SeasonAttempts != 3 || cfg.Retry.BackoffUnit != 10*time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Pacing.PageDelay != 3*time.Second || cfg.Pacing.HealthCheckEvery != 3 {
		t.Fatalf("unexpected pacing defaults: %+v", cfg.Pacing)
	}
	if cfg.Output.DebugMinBytes != 10000 {
		t.Fatalf("expected debug threshold 10000, got %d", cfg.Output.DebugMinBytes)
	}
	if cfg.Site.CurrentSeason != "2024-2025" {
		t.Fatalf("unexpected current season %q", cfg.Site.CurrentSeason)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
site:
  base_url: https://example.test
  current_season: 2025-2026
proxy:
  endpoint: http://proxy.test:8191/v1
  max_timeout: 60s
  request_timeout: 90s
retry:
  season_attempts: 5
pacing:
  season_delay_min: 1s
  season_delay_max: 2s
input:
  clubs_file: /tmp/clubs.txt
  start_marker: Bury
output:
  dir: /tmp/out
storage:
  postgres:
    dsn: postgres://localhost/scraper
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Site.BaseURL != "https://example.test" || cfg.Site.CurrentSeason != "2025-2026" {
		t.Fatalf("expected site overrides, got %+v", cfg.Site)
	}
	if cfg.Proxy.MaxTimeout != time.Minute || cfg.Proxy.RequestTimeout != 90*time.Second {
		t.Fatalf("expected proxy overrides, got %+v", cfg.Proxy)
	}
	if cfg.Retry.SeasonAttempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", cfg.Retry.SeasonAttempts)
	}
	if cfg.Input.StartMarker != "Bury" {
		t.Fatalf("expected marker override, got %q", cfg.Input.StartMarker)
	}
	if cfg.Storage.Postgres.Table != "season_results" {
		t.Fatalf("expected default table, got %q", cfg.Storage.Postgres.Table)
	}
	if cfg.Logging.Development {
		t.Fatal("expected production logging")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "missing base url", mutate: func(c *Config) { c.Site.BaseURL = "" }, want: "site.base_url"},
		{name: "bad season", mutate: func(c *Config) { c.Site.CurrentSeason = "2024/25" }, want: "site.current_season"},
		{name: "missing endpoint", mutate: func(c *Config) { c.Proxy.Endpoint = "" }, want: "proxy.endpoint"},
		{name: "request shorter than max", mutate: func(c *Config) { c.Proxy.RequestTimeout = time.Second }, want: "proxy.request_timeout"},
		{name: "zero attempts", mutate: func(c *Config) { c.Retry.SeasonAttempts = 0 }, want: "retry.season_attempts"},
		{name: "inverted season delay", mutate: func(c *Config) { c.Pacing.SeasonDelayMax = 0 }, want: "pacing.season_delay_max"},
		{name: "inverted range", mutate: func(c *Config) { c.Extract.MaxAppearances = 0 }, want: "extract"},
		{name: "missing output", mutate: func(c *Config) { c.Output.Dir = "" }, want: "output.dir"},
		{
			name: "dsn without table",
			mutate: func(c *Config) {
				c.Storage.Postgres.DSN = "postgres://x"
				c.Storage.Postgres.Table = ""
			},
			want: "storage.postgres.table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadStorageFromEnv(t *testing.T) {
	t.Setenv("SCRAPER_STORAGE_POSTGRES_DSN", "postgres://db.test/scraper")
	t.Setenv("SCRAPER_STORAGE_GCS_BUCKET", "season-bucket")
	t.Setenv("SCRAPER_STORAGE_PUBSUB_PROJECT_ID", "proj")
	t.Setenv("SCRAPER_STORAGE_PUBSUB_TOPIC", "season-events")
	t.Setenv("SCRAPER_STORAGE_DRY_RUN", "true")
	t.Setenv("SCRAPER_OUTPUT_DIR", "outdir")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Postgres.DSN != "postgres://db.test/scraper" {
		t.Fatalf("expected dsn from env, got %q", cfg.Storage.Postgres.DSN)
	}
	if cfg.Storage.GCS.Bucket != "season-bucket" {
		t.Fatalf("expected bucket from env, got %q", cfg.Storage.GCS.Bucket)
	}
	if cfg.Storage.PubSub.ProjectID != "proj" || cfg.Storage.PubSub.Topic != "season-events" {
		t.Fatalf("expected pubsub from env, got %+v", cfg.Storage.PubSub)
	}
	if !cfg.Storage.DryRun {
		t.Fatal("expected dry run from env")
	}
	if cfg.Output.Dir != "outdir" {
		t.Fatalf("expected output dir from env, got %q", cfg.Output.Dir)
	}
}
