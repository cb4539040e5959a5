// ABOUTME: Configuration loading and defaults for hikmaai-bytescan
// ABOUTME: Reads an optional YAML file over built-in defaults; CLI flags override both

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete configuration for hikmaai-bytescan.
type Config struct {
	// Data directory for BadgerDB.
	DataDir string `yaml:"data_dir"`

	Engine  EngineConfig  `yaml:"engine"`
	Cache   CacheConfig   `yaml:"cache"`
	NATS    NATSConfig    `yaml:"nats"`
	HTTP    HTTPConfig    `yaml:"http"`
	Redis   RedisConfig   `yaml:"redis"`
	GCS     GCSConfig     `yaml:"gcs"`
	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`
	Feeds   FeedsConfig   `yaml:"feeds"`
}

// EngineConfig holds scan engine settings.
type EngineConfig struct {
	// Concurrency bounds window groups hashed in parallel (0 = GOMAXPROCS).
	Concurrency int `yaml:"concurrency"`

	// Mode is "first" or "all".
	Mode string `yaml:"mode"`
}

// CacheConfig holds report cache settings.
type CacheConfig struct {
	Enabled           bool          `yaml:"enabled"`
	TTL               time.Duration `yaml:"ttl"`
	ExpectedItems     uint          `yaml:"expected_items"`
	FalsePositiveRate float64       `yaml:"false_positive_rate"`
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Addr          string `yaml:"addr"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

// RedisConfig holds Redis settings for distributed file locks and scan events.
type RedisConfig struct {
	// Addr enables Redis when set.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`

	LockTTL  time.Duration `yaml:"lock_ttl"`
	LockWait time.Duration `yaml:"lock_wait"`

	BreakerMaxFailures  int           `yaml:"breaker_max_failures"`
	BreakerResetTimeout time.Duration `yaml:"breaker_reset_timeout"`

	// EventStream enables scan event publishing when set.
	EventStream    string `yaml:"event_stream"`
	EventStreamLen int64  `yaml:"event_stream_len"`
}

// GCSConfig holds Google Cloud Storage import settings.
type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	AllowedPrefix   string `yaml:"allowed_prefix"`
	CredentialsFile string `yaml:"credentials_file"`
	EmulatorHost    string `yaml:"emulator_host"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig holds tracing settings.
type TracingConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Endpoint      string  `yaml:"endpoint"`
	Insecure      bool    `yaml:"insecure"`
	SamplingRatio float64 `yaml:"sampling_ratio"`
}

// FeedsConfig holds periodic signature feed import settings.
type FeedsConfig struct {
	// Sources are URLs, gs:// URIs, or local paths imported on each update.
	Sources        []string      `yaml:"sources"`
	Format         string        `yaml:"format"`
	UpdateInterval time.Duration `yaml:"update_interval"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxSize        int64         `yaml:"max_size"`
}

// DefaultConfig returns a Config with default values.
// All external dependencies (NATS, Redis, GCS, tracing) are disabled by default
// for standalone single-binary operation.
func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Engine: EngineConfig{
			Mode: "first",
		},
		Cache: CacheConfig{
			Enabled:           true,
			TTL:               24 * time.Hour,
			ExpectedItems:     100_000,
			FalsePositiveRate: 0.01,
		},
		NATS: NATSConfig{
			// Disabled by default; set URL to enable
			URL:     "",
			Subject: "hikmaai.bytescan.scan",
			Queue:   "bytescan-workers",
		},
		HTTP: HTTPConfig{
			Addr:          ":8080",
			MaxUploadSize: 100 * 1024 * 1024,
		},
		Redis: RedisConfig{
			Prefix:              "bytescan:",
			LockTTL:             2 * time.Minute,
			LockWait:            30 * time.Second,
			BreakerMaxFailures:  5,
			BreakerResetTimeout: 30 * time.Second,
			EventStreamLen:      10_000,
		},
		GCS: GCSConfig{},
		Log: LogConfig{
			Level:  "info",
			Format: "text", // Human-readable by default
		},
		Tracing: TracingConfig{
			Enabled:       false,
			Endpoint:      "localhost:4317",
			Insecure:      true,
			SamplingRatio: 1.0,
		},
		Feeds: FeedsConfig{
			Format:         "csv",
			UpdateInterval: time.Hour,
			Timeout:        2 * time.Minute,
			MaxSize:        100 * 1024 * 1024,
		},
	}
}

// Load reads path over the defaults. A missing file at the default
// location is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	switch c.Engine.Mode {
	case "first", "all":
	default:
		errs = append(errs, fmt.Errorf("engine.mode %q must be first or all", c.Engine.Mode))
	}
	if c.Engine.Concurrency < 0 {
		errs = append(errs, errors.New("engine.concurrency must not be negative"))
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive when the cache is enabled"))
	}
	if c.Cache.FalsePositiveRate < 0 || c.Cache.FalsePositiveRate >= 1 {
		errs = append(errs, errors.New("cache.false_positive_rate must be in [0, 1)"))
	}
	if c.Tracing.SamplingRatio < 0 || c.Tracing.SamplingRatio > 1 {
		errs = append(errs, errors.New("tracing.sampling_ratio must be in [0, 1]"))
	}
	if len(c.Feeds.Sources) > 0 && c.Feeds.UpdateInterval <= 0 {
		errs = append(errs, errors.New("feeds.update_interval must be positive when sources are set"))
	}

	return errors.Join(errs...)
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	// Try XDG_DATA_HOME first.
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "hikmaai-bytescan")
	}

	// Fall back to home directory.
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/hikmaai-bytescan"
	}

	return filepath.Join(home, ".local", "share", "hikmaai-bytescan")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	// Try XDG_CONFIG_HOME first.
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hikmaai-bytescan", "config.yaml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/hikmaai-bytescan/config.yaml"
	}

	return filepath.Join(home, ".config", "hikmaai-bytescan", "config.yaml")
}
