// Package config loads and validates scraper configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

// Config captures all scraper configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Pacing    PacingConfig    `mapstructure:"pacing"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Input     InputConfig     `mapstructure:"input"`
	Output    OutputConfig    `mapstructure:"output"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Preflight PreflightConfig `mapstructure:"preflight"`
}

// SiteConfig describes the target site.
type SiteConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	CurrentSeason string `mapstructure:"current_season"`
}

// ProxyConfig configures the challenge-bypass proxy and its container.
type ProxyConfig struct {
	Endpoint             string        `mapstructure:"endpoint"`
	HealthTimeout        time.Duration `mapstructure:"health_timeout"`
	CommandTimeout       time.Duration `mapstructure:"command_timeout"`
	MaxTimeout           time.Duration `mapstructure:"max_timeout"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	SessionPrefix        string        `mapstructure:"session_prefix"`
	ContainerName        string        `mapstructure:"container_name"`
	Image                string        `mapstructure:"image"`
	DockerBinary         string        `mapstructure:"docker_binary"`
	Port                 int           `mapstructure:"port"`
	RestartSettle        time.Duration `mapstructure:"restart_settle"`
	RestartReadyAttempts int           `mapstructure:"restart_ready_attempts"`
	RestartPollInterval  time.Duration `mapstructure:"restart_poll_interval"`
}

// RetryConfig controls the resilience controller.
type RetryConfig struct {
	SeasonAttempts     int           `mapstructure:"season_attempts"`
	DiscoveryAttempts  int           `mapstructure:"discovery_attempts"`
	BackoffUnit        time.Duration `mapstructure:"backoff_unit"`
	TimeoutBackoffUnit time.Duration `mapstructure:"timeout_backoff_unit"`
	FlatBackoff        time.Duration `mapstructure:"flat_backoff"`
	RestartBackoff     time.Duration `mapstructure:"restart_backoff"`
}

// PacingConfig controls the politeness delays between requests.
type PacingConfig struct {
	PageDelay        time.Duration `mapstructure:"page_delay"`
	SeasonDelayMin   time.Duration `mapstructure:"season_delay_min"`
	SeasonDelayMax   time.Duration `mapstructure:"season_delay_max"`
	ClubDelayMin     time.Duration `mapstructure:"club_delay_min"`
	ClubDelayMax     time.Duration `mapstructure:"club_delay_max"`
	HealthCheckEvery int           `mapstructure:"health_check_every"`
	Settle           time.Duration `mapstructure:"settle"`
}

// ExtractConfig bounds what counts as a plausible appearance count.
type ExtractConfig struct {
	MinAppearances int `mapstructure:"min_appearances"`
	MaxAppearances int `mapstructure:"max_appearances"`
}

// InputConfig locates the club and season lists.
type InputConfig struct {
	ClubsFile   string `mapstructure:"clubs_file"`
	StartMarker string `mapstructure:"start_marker"`
	SeasonsFile string `mapstructure:"seasons_file"`
}

// OutputConfig controls the local output tree.
type OutputConfig struct {
	Dir           string `mapstructure:"dir"`
	DebugMinBytes int    `mapstructure:"debug_min_bytes"`
}

// StorageConfig enables the optional remote season stores. DryRun keeps results
// in memory and disables every other store.
type StorageConfig struct {
	DryRun   bool           `mapstructure:"dry_run"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// PostgresConfig configures the Postgres season store.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// GCSConfig configures the GCS season store.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PubSubConfig configures the season completion event publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig configures the status server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// PreflightConfig controls the proxy check run before the first club.
type PreflightConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	MinBytes int    `mapstructure:"min_bytes"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.footballwebpages.co.uk")
	v.SetDefault("site.current_season", "2024-2025")

	v.SetDefault("proxy.endpoint", "http://localhost:8191/v1")
	v.SetDefault("proxy.health_timeout", "10s")
	v.SetDefault("proxy.command_timeout", "30s")
	v.SetDefault("proxy.max_timeout", "180s")
	v.SetDefault("proxy.request_timeout", "200s")
	v.SetDefault("proxy.session_prefix", "scraper")
	v.SetDefault("proxy.container_name", "flaresolverr")
	v.SetDefault("proxy.image", "ghcr.io/flaresolverr/flaresolverr:latest")
	v.SetDefault("proxy.docker_binary", "docker")
	v.SetDefault("proxy.port", 8191)
	v.SetDefault("proxy.restart_settle", "3s")
	v.SetDefault("proxy.restart_ready_attempts", 30)
	v.SetDefault("proxy.restart_poll_interval", "2s")

	v.SetDefault("retry.season_attempts", 3)
	v.SetDefault("retry.discovery_attempts", 3)
	v.SetDefault("retry.backoff_unit", "10s")
	v.SetDefault("retry.timeout_backoff_unit", "15s")
	v.SetDefault("retry.flat_backoff", "5s")
	v.SetDefault("retry.restart_backoff", "10s")

	v.SetDefault("pacing.page_delay", "3s")
	v.SetDefault("pacing.season_delay_min", "10s")
	v.SetDefault("pacing.season_delay_max", "20s")
	v.SetDefault("pacing.club_delay_min", "20s")
	v.SetDefault("pacing.club_delay_max", "40s")
	v.SetDefault("pacing.health_check_every", 3)
	v.SetDefault("pacing.settle", "5s")

	v.SetDefault("extract.min_appearances", 1)
	v.SetDefault("extract.max_appearances", 50)

	v.SetDefault("input.clubs_file", "clubs.txt")
	v.SetDefault("input.start_marker", "")
	v.SetDefault("input.seasons_file", "")

	v.SetDefault("output.dir", "football_data")
	v.SetDefault("output.debug_min_bytes", 10000)

	v.SetDefault("storage.dry_run", false)
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.table", "season_results")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.prefix", "seasons")
	v.SetDefault("storage.pubsub.project_id", "")
	v.SetDefault("storage.pubsub.topic", "")

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("preflight.enabled", true)
	v.SetDefault("preflight.url", "https://httpbin.org/html")
	v.SetDefault("preflight.min_bytes", 100)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return errors.New("site.base_url must be set")
	}
	if !roster.IsSeasonToken(c.Site.CurrentSeason) {
		return fmt.Errorf("site.current_season must look like YYYY-YYYY, got %q", c.Site.CurrentSeason)
	}
	if c.Proxy.Endpoint == "" {
		return errors.New("proxy.endpoint must be set")
	}
	if c.Proxy.MaxTimeout <= 0 {
		return errors.New("proxy.max_timeout must be > 0")
	}
	if c.Proxy.RequestTimeout < c.Proxy.MaxTimeout {
		return errors.New("proxy.request_timeout must be >= proxy.max_timeout")
	}
	if c.Retry.SeasonAttempts <= 0 {
		return errors.New("retry.season_attempts must be > 0")
	}
	if c.Retry.DiscoveryAttempts <= 0 {
		return errors.New("retry.discovery_attempts must be > 0")
	}
	if c.Pacing.SeasonDelayMax < c.Pacing.SeasonDelayMin {
		return errors.New("pacing.season_delay_max must be >= pacing.season_delay_min")
	}
	if c.Pacing.ClubDelayMax < c.Pacing.ClubDelayMin {
		return errors.New("pacing.club_delay_max must be >= pacing.club_delay_min")
	}
	if c.Extract.MinAppearances <= 0 || c.Extract.MaxAppearances < c.Extract.MinAppearances {
		return errors.New("extract.min_appearances and extract.max_appearances must form a positive range")
	}
	if c.Input.ClubsFile == "" {
		return errors.New("input.clubs_file must be set")
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir must be set")
	}
	if c.Storage.Postgres.DSN != "" && c.Storage.Postgres.Table == "" {
		return errors.New("storage.postgres.table must be set when a dsn is configured")
	}
	if c.Storage.PubSub.Topic != "" && c.Storage.PubSub.ProjectID == "" {
		return errors.New("storage.pubsub.project_id must be set when a topic is configured")
	}
	return nil
}
