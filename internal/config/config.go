// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CARTCRAWLER_SITE_BASE_URL.
const EnvPrefix = "CARTCRAWLER"

// Storage backends.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SiteConfig identifies the cart listing to crawl.
type SiteConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Category int    `mapstructure:"category"`
	Sub      int    `mapstructure:"sub"`
}

// CrawlerConfig governs enumeration, retrieval and download behavior.
type CrawlerConfig struct {
	PageWaveSize    int           `mapstructure:"page_wave_size"`
	MaxFailedWaves  int           `mapstructure:"max_failed_waves"`
	PageMaxAttempts int           `mapstructure:"page_max_attempts"`
	PageWaitTimeout time.Duration `mapstructure:"page_wait_timeout"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay   time.Duration `mapstructure:"retry_max_delay"`
	PoolBatchSize   int           `mapstructure:"pool_batch_size"`
	DedupeIDs       bool          `mapstructure:"dedupe_ids"`
	DownloadAssets  bool          `mapstructure:"download_assets"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// HTTPConfig configures the detail page and asset fetcher.
type HTTPConfig struct {
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	MaxBodyBytes      int     `mapstructure:"max_body_bytes"`
	RespectRobots     bool    `mapstructure:"respect_robots"`
}

// HeadlessConfig configures the listing browser.
type HeadlessConfig struct {
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	Headless      bool `mapstructure:"headless"`
}

// StorageConfig selects where assets and the snapshot are written.
type StorageConfig struct {
	Backend      string `mapstructure:"backend"`
	AssetsDir    string `mapstructure:"assets_dir"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	Prefix       string `mapstructure:"prefix"`
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
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
	v.SetDefault("site.base_url", "https://www.lexaloffle.com")
	v.SetDefault("site.category", 7)
	v.SetDefault("site.sub", 2)
	v.SetDefault("crawler.page_wave_size", 10)
	v.SetDefault("crawler.max_failed_waves", 3)
	v.SetDefault("crawler.page_max_attempts", 5)
	v.SetDefault("crawler.page_wait_timeout", 5*time.Second)
	v.SetDefault("crawler.retry_base_delay", 250*time.Millisecond)
	v.SetDefault("crawler.retry_max_delay", 5*time.Second)
	v.SetDefault("crawler.pool_batch_size", 25)
	v.SetDefault("crawler.dedupe_ids", false)
	v.SetDefault("crawler.download_assets", true)
	v.SetDefault("crawler.user_agent", "cart-crawler/0.1")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.headless", true)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.assets_dir", "carts")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.snapshot_path", "carts.json")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Site.BaseURL) == "" {
		return fmt.Errorf("site.base_url must be set")
	}
	if c.Crawler.PageWaveSize <= 0 {
		return fmt.Errorf("crawler.page_wave_size must be > 0")
	}
	if c.Crawler.MaxFailedWaves <= 0 {
		return fmt.Errorf("crawler.max_failed_waves must be > 0")
	}
	if c.Crawler.PageMaxAttempts <= 0 {
		return fmt.Errorf("crawler.page_max_attempts must be > 0")
	}
	if c.Crawler.PageWaitTimeout <= 0 {
		return fmt.Errorf("crawler.page_wait_timeout must be > 0")
	}
	if c.Crawler.RetryBaseDelay < 0 || c.Crawler.RetryMaxDelay < 0 {
		return fmt.Errorf("crawler retry delays must be >= 0")
	}
	if c.Crawler.PoolBatchSize <= 0 {
		return fmt.Errorf("crawler.pool_batch_size must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.Headless.NavTimeoutSec <= 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be > 0")
	}
	if strings.TrimSpace(c.Storage.SnapshotPath) == "" {
		return fmt.Errorf("storage.snapshot_path must be set")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Storage.AssetsDir) == "" {
			return fmt.Errorf("storage.assets_dir must be set for the local backend")
		}
	case BackendGCS:
		if strings.TrimSpace(c.Storage.GCSBucket) == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	return nil
}

// HTTPTimeout returns the per-request fetch timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NavigationTimeout returns the headless navigation budget per page.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
