// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by storage.backend and reports.backend.
const (
	BackendMemory   = "memory"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Generation GenerationConfig `mapstructure:"generation"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Reports    ReportsConfig    `mapstructure:"reports"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// GenerationConfig governs the worker pool and simulator pacing.
type GenerationConfig struct {
	Concurrency       int `mapstructure:"concurrency"`
	QueueDepth        int `mapstructure:"queue_depth"`
	StepIntervalMs    int `mapstructure:"step_interval_ms"`
	SettleMs          int `mapstructure:"settle_ms"`
	QuietMs           int `mapstructure:"quiet_ms"`
	EnqueueTimeoutMs  int `mapstructure:"enqueue_timeout_ms"`
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds"`
}

// CatalogConfig sets the artificial latency of canned responses.
type CatalogConfig struct {
	LatencyMs       int `mapstructure:"latency_ms"`
	ReportLatencyMs int `mapstructure:"report_latency_ms"`
}

// RateLimitConfig bounds generation submissions per client.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// StorageConfig selects where report bodies are written.
type StorageConfig struct {
	Backend     string             `mapstructure:"backend"`
	Bucket      string             `mapstructure:"bucket"`
	Prefix      string             `mapstructure:"prefix"`
	ContentType string             `mapstructure:"content_type"`
	Local       LocalStorageConfig `mapstructure:"local"`
}

// LocalStorageConfig configures the filesystem blob backend.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// ReportsConfig selects the report history backend.
type ReportsConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for report-ready notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig tunes the progress event hub.
type ProgressConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	LogEnabled    bool                `mapstructure:"log_enabled"`
	BufferSize    int                 `mapstructure:"buffer_size"`
	Batch         ProgressBatchConfig `mapstructure:"batch"`
	SinkTimeoutMs int                 `mapstructure:"sink_timeout_ms"`
}

// ProgressBatchConfig bounds how many events are delivered together.
type ProgressBatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SIGNAL")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("generation.concurrency", 4)
	v.SetDefault("generation.queue_depth", 64)
	v.SetDefault("generation.step_interval_ms", 800)
	v.SetDefault("generation.settle_ms", 1000)
	v.SetDefault("generation.quiet_ms", 3000)
	v.SetDefault("generation.enqueue_timeout_ms", 2000)
	v.SetDefault("generation.job_timeout_seconds", 60)
	v.SetDefault("catalog.latency_ms", 500)
	v.SetDefault("catalog.report_latency_ms", 1000)
	v.SetDefault("ratelimit.rps", 1.0)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "reports")
	v.SetDefault("storage.content_type", "text/markdown; charset=utf-8")
	v.SetDefault("storage.local.base_dir", "./data/reports")
	v.SetDefault("reports.backend", BackendMemory)
	v.SetDefault("reports.sqlite_path", "./data/signal.db")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", true)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.batch.max_events", 64)
	v.SetDefault("progress.batch.max_wait_ms", 250)
	v.SetDefault("progress.sink_timeout_ms", 5000)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "signal-news")
	v.SetDefault("tracing.service_version", "dev")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Generation.Concurrency <= 0 {
		return fmt.Errorf("generation.concurrency must be > 0")
	}
	if c.Generation.QueueDepth <= 0 {
		return fmt.Errorf("generation.queue_depth must be > 0")
	}
	if c.Generation.StepIntervalMs < 0 || c.Generation.SettleMs < 0 || c.Generation.QuietMs < 0 {
		return fmt.Errorf("generation pacing values must be >= 0")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("ratelimit.rps and ratelimit.burst must be >= 0")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	switch c.Reports.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Reports.SQLitePath == "" {
			return fmt.Errorf("reports.sqlite_path must be set for the sqlite backend")
		}
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("reports.backend %q is not supported", c.Reports.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Tracing.Enabled && (c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1) {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}
	if c.Progress.Enabled && c.Progress.BufferSize <= 0 {
		return fmt.Errorf("progress.buffer_size must be > 0 when progress is enabled")
	}
	return nil
}

// StepInterval is the spacing between simulated steps.
func (c Config) StepInterval() time.Duration {
	return time.Duration(c.Generation.StepIntervalMs) * time.Millisecond
}

// Settle is the pause after the last step before a report resolves.
func (c Config) Settle() time.Duration {
	return time.Duration(c.Generation.SettleMs) * time.Millisecond
}

// Quiet is the total wait of a generation run without step notifications.
func (c Config) Quiet() time.Duration {
	return time.Duration(c.Generation.QuietMs) * time.Millisecond
}

// EnqueueTimeout bounds how long a submission waits for queue capacity.
func (c Config) EnqueueTimeout() time.Duration {
	return time.Duration(c.Generation.EnqueueTimeoutMs) * time.Millisecond
}

// JobBudget is the maximum duration of one generation.
func (c Config) JobBudget() time.Duration {
	return time.Duration(c.Generation.JobTimeoutSeconds) * time.Second
}

// CatalogLatency is the delay applied to canned feed, topic and history responses.
func (c Config) CatalogLatency() time.Duration {
	return time.Duration(c.Catalog.LatencyMs) * time.Millisecond
}

// ReportLatency is the delay applied to single-report lookups.
func (c Config) ReportLatency() time.Duration {
	return time.Duration(c.Catalog.ReportLatencyMs) * time.Millisecond
}
