// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Harvest Harvest `mapstructure:"harvest"`
	Render  Render  `mapstructure:"render"`
	Probe   Probe   `mapstructure:"probe"`
	Store   Store   `mapstructure:"store"`
	Server  Server  `mapstructure:"server"`
	Archive Archive `mapstructure:"archive"`
	PubSub  PubSub  `mapstructure:"pubsub"`
	Logging Logging `mapstructure:"logging"`
}

// Harvest governs the crawl pipeline itself.
type Harvest struct {
	BaseURL            string   `mapstructure:"base_url"`
	CityListPath       string   `mapstructure:"city_list_path"`
	PriorityCities     []string `mapstructure:"priority_cities"`
	PoolWidth          int      `mapstructure:"pool_width"`
	FlushThreshold     int      `mapstructure:"flush_threshold"`
	ScrollSettleSec    int      `mapstructure:"scroll_settle_seconds"`
	DetailSettleSec    int      `mapstructure:"detail_settle_seconds"`
	MaxScrollRounds    int      `mapstructure:"max_scroll_rounds"`
	EventBufferSize    int      `mapstructure:"event_buffer_size"`
	SinkTimeoutSeconds int      `mapstructure:"sink_timeout_seconds"`
}

// Render configures the headless browser pool.
type Render struct {
	MaxSessions    int     `mapstructure:"max_sessions"`
	UserAgent      string  `mapstructure:"user_agent"`
	NavTimeoutSec  int     `mapstructure:"nav_timeout_seconds"`
	QueryTimeoutMs int     `mapstructure:"query_timeout_ms"`
	DomainQPS      float64 `mapstructure:"domain_qps"`
}

// Probe configures the static fetch tried before a render is paid for.
type Probe struct {
	Enabled        bool `mapstructure:"enabled"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	MinHTMLBytes   int  `mapstructure:"min_html_bytes"`
}

// Store selects and configures the checkpoint backend.
type Store struct {
	// Backend is "csv" or "postgres".
	Backend string `mapstructure:"backend"`
	CSVPath string `mapstructure:"csv_path"`
	DSN     string `mapstructure:"dsn"`
}

// Server controls the status/metrics HTTP listener.
type Server struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Archive configures post-run upload of the CSV checkpoint.
type Archive struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
}

// PubSub holds metadata for run-completion notifications.
type PubSub struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Logging toggles zap development features.
type Logging struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CARHARVEST")
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
	v.SetDefault("harvest.base_url", "https://www.carwale.com")
	v.SetDefault("harvest.city_list_path", "cities.csv")
	v.SetDefault("harvest.pool_width", 5)
	v.SetDefault("harvest.flush_threshold", 20)
	v.SetDefault("harvest.scroll_settle_seconds", 2)
	v.SetDefault("harvest.detail_settle_seconds", 5)
	v.SetDefault("harvest.max_scroll_rounds", 40)
	v.SetDefault("harvest.event_buffer_size", 1024)
	v.SetDefault("harvest.sink_timeout_seconds", 10)
	v.SetDefault("render.max_sessions", 6)
	v.SetDefault("render.user_agent", "carharvest-bot/0.1")
	v.SetDefault("render.nav_timeout_seconds", 45)
	v.SetDefault("render.query_timeout_ms", 10000)
	v.SetDefault("render.domain_qps", 1.0)
	v.SetDefault("probe.enabled", true)
	v.SetDefault("probe.timeout_seconds", 15)
	v.SetDefault("probe.min_html_bytes", 2048)
	v.SetDefault("store.backend", "csv")
	v.SetDefault("store.csv_path", "used_cars.csv")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("archive.prefix", "harvests")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Harvest.BaseURL == "" {
		return fmt.Errorf("harvest.base_url must be set")
	}
	if c.Harvest.CityListPath == "" {
		return fmt.Errorf("harvest.city_list_path must be set")
	}
	if c.Harvest.PoolWidth <= 0 {
		return fmt.Errorf("harvest.pool_width must be > 0")
	}
	if c.Harvest.FlushThreshold <= 0 {
		return fmt.Errorf("harvest.flush_threshold must be > 0")
	}
	if c.Render.MaxSessions <= 0 {
		return fmt.Errorf("render.max_sessions must be > 0")
	}
	switch c.Store.Backend {
	case "csv":
		if c.Store.CSVPath == "" {
			return fmt.Errorf("store.csv_path must be set for the csv backend")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend must be csv or postgres, got %q", c.Store.Backend)
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	return nil
}

// ScrollSettle converts the listing-page settle knob to a duration.
func (c Config) ScrollSettle() time.Duration {
	return time.Duration(c.Harvest.ScrollSettleSec) * time.Second
}

// DetailSettle converts the detail-page settle knob to a duration.
func (c Config) DetailSettle() time.Duration {
	return time.Duration(c.Harvest.DetailSettleSec) * time.Second
}

// NavTimeout converts the navigation knob to a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Render.NavTimeoutSec) * time.Second
}

// QueryTimeout converts the per-lookup knob to a duration.
func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.Render.QueryTimeoutMs) * time.Millisecond
}

// ProbeTimeout converts the static-probe knob to a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// SinkTimeout converts the progress sink knob to a duration.
func (c Config) SinkTimeout() time.Duration {
	return time.Duration(c.Harvest.SinkTimeoutSeconds) * time.Second
}
