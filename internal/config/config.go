// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/crawlkit/crawlkit/internal/crawler"
)

// AppDirName is the directory name used under the XDG base directories.
const AppDirName = "crawlkit"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Browser BrowserConfig `mapstructure:"browser"`
	Run     RunDefaults   `mapstructure:"run"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Models  ModelsConfig  `mapstructure:"models"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIToken string `mapstructure:"api_token"`
}

// CrawlerConfig governs the fetch pipeline and worker pool.
type CrawlerConfig struct {
	UserAgent          string        `mapstructure:"user_agent"`
	Concurrency        int           `mapstructure:"concurrency"`
	RateLimitPerDomain int           `mapstructure:"rate_limit_per_domain"`
	RespectRobots      bool          `mapstructure:"respect_robots"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	QueueDepth         int           `mapstructure:"queue_depth"`
	BlockedDomains     []string      `mapstructure:"blocked_domains"`
	MaxBodyBytes       int64         `mapstructure:"max_body_bytes"`
	ForbiddenThreshold int           `mapstructure:"max_forbidden_responses"`
}

// BrowserConfig configures the headless rendering subsystem.
type BrowserConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ExecPath       string        `mapstructure:"exec_path"`
	Headless       bool          `mapstructure:"headless"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout"`
	DomainQPS      float64       `mapstructure:"domain_qps"`
	// Detector thresholds for deciding when a plain fetch is not enough.
	DetectorMinHTMLBytes int      `mapstructure:"detector_min_html_bytes"`
	DetectorSelectors    []string `mapstructure:"detector_selectors"`
	DetectorKeywords     []string `mapstructure:"detector_keywords"`
}

// RunDefaults supplies per-crawl defaults applied when a request omits them.
type RunDefaults struct {
	WordCountThreshold int           `mapstructure:"word_count_threshold"`
	ExcludedTags       []string      `mapstructure:"excluded_tags"`
	CacheMode          string        `mapstructure:"cache_mode"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxDepth           int           `mapstructure:"max_depth"`
	MaxPages           int           `mapstructure:"max_pages"`
}

// ToRunConfig converts the configured defaults into a crawler.RunConfig the
// engine and API can merge per-request options over.
func (d RunDefaults) ToRunConfig() crawler.RunConfig {
	return crawler.RunConfig{
		WordCountThreshold: d.WordCountThreshold,
		ExcludedTags:       append([]string(nil), d.ExcludedTags...),
		CacheMode:          crawler.CacheMode(d.CacheMode),
		Timeout:            d.Timeout,
		MaxDepth:           d.MaxDepth,
		MaxPages:           d.MaxPages,
	}
}

// CacheConfig controls the on-disk result cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// StorageConfig sets paths and content types for raw HTML persistence.
type StorageConfig struct {
	Provider    string `mapstructure:"provider"`
	BaseDir     string `mapstructure:"base_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls the task store backend.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ModelsConfig points at the extraction-asset manifest and cache.
type ModelsConfig struct {
	ManifestURL string `mapstructure:"manifest_url"`
	Dir         string `mapstructure:"dir"`
	Parallel    int    `mapstructure:"parallel"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppDirName))
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
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
	v.SetDefault("server.port", 11235)

	v.SetDefault("crawler.user_agent", "crawlkit/1.0 (+https://github.com/crawlkit/crawlkit)")
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.rate_limit_per_domain", 2)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.request_timeout", "15s")
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.blocked_domains", []string{})
	v.SetDefault("crawler.max_body_bytes", 10*1024*1024)
	v.SetDefault("crawler.max_forbidden_responses", 3)

	v.SetDefault("browser.enabled", false)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.max_concurrency", 2)
	v.SetDefault("browser.nav_timeout", "25s")
	v.SetDefault("browser.domain_qps", 0.5)
	v.SetDefault("browser.detector_min_html_bytes", 2000)
	v.SetDefault("browser.detector_selectors", []string{"main", "article", ".content"})
	v.SetDefault("browser.detector_keywords", []string{
		"__NEXT_DATA__",
		"data-reactroot",
		"ng-app",
		"window.__APOLLO_STATE__",
	})

	v.SetDefault("run.word_count_threshold", 5)
	v.SetDefault("run.excluded_tags", []string{"nav", "footer", "aside"})
	v.SetDefault("run.cache_mode", "enabled")
	v.SetDefault("run.timeout", "60s")
	v.SetDefault("run.max_depth", 0)
	v.SetDefault("run.max_pages", 10)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", filepath.Join(xdg.CacheHome, AppDirName, "results"))

	v.SetDefault("storage.provider", "noop")
	v.SetDefault("storage.base_dir", filepath.Join(xdg.DataHome, AppDirName, "pages"))
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")

	v.SetDefault("db.provider", "memory")
	v.SetDefault("pubsub.provider", "noop")

	v.SetDefault("models.manifest_url", "https://assets.crawlkit.dev/models/manifest.json")
	v.SetDefault("models.dir", filepath.Join(xdg.CacheHome, AppDirName, "models"))
	v.SetDefault("models.parallel", 3)

	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535]")
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.RateLimitPerDomain <= 0 {
		return fmt.Errorf("crawler.rate_limit_per_domain must be > 0")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.QueueDepth <= 0 {
		return fmt.Errorf("crawler.queue_depth must be > 0")
	}
	if c.Browser.Enabled && c.Browser.MaxConcurrency <= 0 {
		return fmt.Errorf("browser.max_concurrency must be > 0 when browser is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIToken == "" {
		return fmt.Errorf("auth.api_token must be set when auth is enabled")
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir must be set when cache is enabled")
	}
	switch c.DB.Provider {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown db provider: %s", c.DB.Provider)
	}
	switch c.Storage.Provider {
	case "noop", "local":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	switch c.PubSub.Provider {
	case "noop", "memory":
	case "pubsub":
		if c.PubSub.ProjectID == "" || c.PubSub.TopicName == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown pubsub provider: %s", c.PubSub.Provider)
	}
	return nil
}
