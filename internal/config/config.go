// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Progress ProgressConfig `mapstructure:"progress"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig selects the zap preset and optional rotating file output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// CrawlerConfig holds service-level crawl knobs and the defaults applied to
// submitted jobs that leave a field unset.
type CrawlerConfig struct {
	Workers          int           `mapstructure:"workers"`
	QueueDepth       int           `mapstructure:"queue_depth"`
	UserAgent        string        `mapstructure:"user_agent"`
	MaxDepth         int           `mapstructure:"max_depth"`
	MaxPages         int           `mapstructure:"max_pages"`
	Concurrency      int           `mapstructure:"concurrency"`
	Retries          int           `mapstructure:"retries"`
	Timeout          time.Duration `mapstructure:"timeout"`
	CrawlDelay       time.Duration `mapstructure:"crawl_delay"`
	DefaultDelay     time.Duration `mapstructure:"default_delay"`
	RespectRobots    bool          `mapstructure:"respect_robots"`
	RobotsTTL        time.Duration `mapstructure:"robots_ttl"`
	RenderMode       string        `mapstructure:"render_mode"`
	MaxHTMLBytes     int           `mapstructure:"max_html_bytes"`
	MaxBodyBytes     int           `mapstructure:"max_body_bytes"`
	SeedFromSitemaps bool          `mapstructure:"seed_from_sitemaps"`
}

// HeadlessConfig configures the chromedp renderer.
type HeadlessConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	MaxParallel       int           `mapstructure:"max_parallel"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	ExecPath          string        `mapstructure:"exec_path"`
	NoSandbox         bool          `mapstructure:"no_sandbox"`
	MinTextLength     int           `mapstructure:"min_text_length"`
}

// StorageConfig selects the HTML archive backend: "" (disabled), "memory",
// "local" or "gcs".
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DatabaseConfig controls the Postgres job repository. An empty DSN keeps
// jobs in memory.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// ProgressConfig tunes the progress hub and enables optional sinks.
type ProgressConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
	Log            bool          `mapstructure:"log"`
	Prometheus     bool          `mapstructure:"prometheus"`
	Kafka          KafkaConfig   `mapstructure:"kafka"`
	Redis          RedisConfig   `mapstructure:"redis"`
	PubSub         PubSubConfig  `mapstructure:"pubsub"`
}

// KafkaConfig enables the Kafka sink when Brokers and Topic are set.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Events  []string `mapstructure:"events"`
}

// RedisConfig enables the Redis live-status sink when Addr is set.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// PubSubConfig enables the Pub/Sub sink when ProjectID and Topic are set.
type PubSubConfig struct {
	ProjectID string   `mapstructure:"project_id"`
	Topic     string   `mapstructure:"topic"`
	Events    []string `mapstructure:"events"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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
	job := crawler.DefaultJob()
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("crawler.workers", 2)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.user_agent", job.UserAgent)
	v.SetDefault("crawler.max_depth", job.MaxDepth)
	v.SetDefault("crawler.max_pages", job.MaxPages)
	v.SetDefault("crawler.concurrency", job.Concurrency)
	v.SetDefault("crawler.retries", job.Retries)
	v.SetDefault("crawler.timeout", job.Timeout)
	v.SetDefault("crawler.crawl_delay", job.CrawlDelay)
	v.SetDefault("crawler.default_delay", time.Duration(0))
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.robots_ttl", time.Hour)
	v.SetDefault("crawler.render_mode", string(crawler.RenderNever))
	v.SetDefault("crawler.max_html_bytes", job.MaxHTMLBytes)
	v.SetDefault("crawler.max_body_bytes", 10<<20)
	v.SetDefault("crawler.seed_from_sitemaps", false)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.navigation_timeout", 45*time.Second)
	v.SetDefault("headless.settle_delay", 500*time.Millisecond)
	v.SetDefault("headless.min_text_length", 200)
	v.SetDefault("storage.prefix", "")
	v.SetDefault("database.migrate", true)
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.max_batch_events", 1000)
	v.SetDefault("progress.max_batch_wait", 500*time.Millisecond)
	v.SetDefault("progress.sink_timeout", 10*time.Second)
	v.SetDefault("progress.log", false)
	v.SetDefault("progress.prometheus", true)
	v.SetDefault("progress.redis.key_prefix", "crawl:status:")
	v.SetDefault("progress.redis.ttl", 24*time.Hour)
	v.SetDefault("metrics.enabled", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.QueueDepth <= 0 {
		return fmt.Errorf("crawler.queue_depth must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxPages < 1 {
		return fmt.Errorf("crawler.max_pages must be >= 1")
	}
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Crawler.Timeout <= 0 {
		return fmt.Errorf("crawler.timeout must be > 0")
	}
	switch crawler.RenderMode(c.Crawler.RenderMode) {
	case crawler.RenderNever:
	case crawler.RenderAuto, crawler.RenderAlways:
		if !c.Headless.Enabled {
			return fmt.Errorf("crawler.render_mode %q requires headless.enabled", c.Crawler.RenderMode)
		}
	default:
		return fmt.Errorf("crawler.render_mode %q is not one of never, auto, always", c.Crawler.RenderMode)
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Storage.Backend {
	case "", "memory":
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, local, gcs", c.Storage.Backend)
	}
	if (len(c.Progress.Kafka.Brokers) == 0) != (c.Progress.Kafka.Topic == "") {
		return fmt.Errorf("progress.kafka needs both brokers and topic")
	}
	if (c.Progress.PubSub.ProjectID == "") != (c.Progress.PubSub.Topic == "") {
		return fmt.Errorf("progress.pubsub needs both project_id and topic")
	}
	return nil
}

// JobDefaults returns the job template submissions start from.
func (c Config) JobDefaults() crawler.CrawlJob {
	job := crawler.DefaultJob()
	respect := c.Crawler.RespectRobots
	job.UserAgent = c.Crawler.UserAgent
	job.MaxDepth = c.Crawler.MaxDepth
	job.MaxPages = c.Crawler.MaxPages
	job.Concurrency = c.Crawler.Concurrency
	job.Retries = c.Crawler.Retries
	job.Timeout = c.Crawler.Timeout
	job.CrawlDelay = c.Crawler.CrawlDelay
	job.RespectRobots = &respect
	job.RenderMode = crawler.RenderMode(c.Crawler.RenderMode)
	job.MaxHTMLBytes = c.Crawler.MaxHTMLBytes
	job.SeedFromSitemaps = c.Crawler.SeedFromSitemaps
	return job
}

// EventTypes converts configured event names, dropping blanks.
func EventTypes(names []string) []crawler.EventType {
	out := make([]crawler.EventType, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, crawler.EventType(n))
		}
	}
	return out
}
