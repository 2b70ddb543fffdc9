// Package config loads and validates metascan configuration via Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/metascan/internal/crawler"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Scan      ScanConfig      `mapstructure:"scan"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ScanConfig names the source page and where results land.
type ScanConfig struct {
	URL         string `mapstructure:"url"`
	Name        string `mapstructure:"name"`
	DownloadDir string `mapstructure:"download_dir"`
}

// HTTPConfig configures the fetcher and document retries.
type HTTPConfig struct {
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxBodyBytes      int           `mapstructure:"max_body_bytes"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
	FailOnErrorStatus bool          `mapstructure:"fail_on_error_status"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	// RateLimitRPS paces requests per host. Zero disables pacing.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// DiscoveryConfig decides when the source page is rendered in a browser.
type DiscoveryConfig struct {
	// Headless is one of off, auto or always.
	Headless    string   `mapstructure:"headless"`
	JSMinBytes  int      `mapstructure:"js_min_bytes"`
	JSSelectors []string `mapstructure:"js_selectors"`
	JSKeywords  []string `mapstructure:"js_keywords"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	ExecPath    string        `mapstructure:"exec_path"`
}

// StorageConfig enables the GCS mirror when a bucket is set.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// DBConfig enables the Postgres record sink when a DSN is set.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for run notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls the end-of-run metrics dump.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load registers defaults on v, unmarshals it and validates the result. Flags
// and config files must already be bound to v.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// SetDefaults registers every known key so environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("scan.url", "")
	v.SetDefault("scan.name", "")
	v.SetDefault("scan.download_dir", "downloaded_pdfs")
	v.SetDefault("http.user_agent", "metascan/1.0")
	v.SetDefault("http.timeout", "60s")
	v.SetDefault("http.max_body_bytes", 0)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.fail_on_error_status", false)
	v.SetDefault("http.max_retries", 0)
	v.SetDefault("http.backoff_initial", "250ms")
	v.SetDefault("http.backoff_max", "5s")
	v.SetDefault("http.rate_limit_rps", 0)
	v.SetDefault("http.rate_limit_burst", 1)
	v.SetDefault("discovery.headless", string(crawler.RenderOff))
	v.SetDefault("discovery.js_min_bytes", 1500)
	v.SetDefault("discovery.js_selectors", []string{})
	v.SetDefault("discovery.js_keywords", crawler.DefaultJSKeywords)
	v.SetDefault("headless.nav_timeout", "30s")
	v.SetDefault("headless.settle_delay", "500ms")
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.gcs_prefix", "metascan")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "pdf_metadata")
	v.SetDefault("db.max_conns", 0)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scan.URL == "" {
		return fmt.Errorf("scan.url is required")
	}
	if _, err := crawler.ParsePageURL(c.Scan.URL); err != nil {
		return fmt.Errorf("scan.url: %w", err)
	}
	if c.Scan.Name == "" {
		return fmt.Errorf("scan.name is required")
	}
	if c.Scan.DownloadDir == "" {
		return fmt.Errorf("scan.download_dir is required")
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must be >= 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must be >= 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.RateLimitRPS < 0 || c.HTTP.RateLimitBurst < 0 {
		return fmt.Errorf("http rate limit must be >= 0")
	}
	if c.HTTP.BackoffInitial < 0 || c.HTTP.BackoffMax < 0 {
		return fmt.Errorf("http backoff durations must be >= 0")
	}
	if _, err := crawler.ParseRenderMode(c.Discovery.Headless); err != nil {
		return fmt.Errorf("discovery.headless: %w", err)
	}
	if c.Headless.NavTimeout < 0 || c.Headless.SettleDelay < 0 {
		return fmt.Errorf("headless durations must be >= 0")
	}
	if c.DB.DSN != "" && c.DB.Table == "" {
		return fmt.Errorf("db.table must be set when db.dsn is set")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	return nil
}

// RenderMode returns the parsed discovery mode. Validate has already vetted it.
func (c Config) RenderMode() crawler.RenderMode {
	mode, err := crawler.ParseRenderMode(c.Discovery.Headless)
	if err != nil {
		return crawler.RenderOff
	}
	return mode
}
