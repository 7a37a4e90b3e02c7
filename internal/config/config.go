// Package config loads the bitmapist CLI configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all CLI configuration.
type Config struct {
	Redis   RedisConfig   `yaml:"redis"`
	Keys    KeysConfig    `yaml:"keys"`
	Archive ArchiveConfig `yaml:"archive"`
	Logging LoggingConfig `yaml:"logging"`
}

// RedisConfig configures the store connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// RateLimit caps commands per second; 0 disables throttling.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// KeysConfig configures the key layout.
type KeysConfig struct {
	Prefix  string `yaml:"prefix"`
	Divider string `yaml:"divider"`
	TempTTL string `yaml:"temp_ttl"`
}

// ArchiveConfig configures where archived bitmaps go.
type ArchiveConfig struct {
	Backend     string `yaml:"backend"` // local, minio, s3
	Path        string `yaml:"path"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Endpoint    string `yaml:"endpoint"`
	Region      string `yaml:"region"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Secure      bool   `yaml:"secure"`
	Codec       string `yaml:"codec"`
	Concurrency int    `yaml:"concurrency"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Keys: KeysConfig{
			Prefix:  "trackist",
			Divider: ":",
			TempTTL: "60s",
		},
		Archive: ArchiveConfig{
			Backend:     "local",
			Path:        "bitmapist-archive",
			Codec:       "zstd",
			Concurrency: 8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the configuration at path. A missing file yields the defaults;
// environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BITMAPIST_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("BITMAPIST_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("BITMAPIST_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("BITMAPIST_PREFIX"); v != "" {
		c.Keys.Prefix = v
	}
	if v := os.Getenv("BITMAPIST_ARCHIVE_BUCKET"); v != "" {
		c.Archive.Bucket = v
	}

	// Credentials follow the usual conventions of each backend.
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Archive.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Archive.SecretKey = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" && c.Archive.Region == "" {
		c.Archive.Region = v
	}
}

// TempTTLDuration parses Keys.TempTTL, falling back to 60s.
func (c *Config) TempTTLDuration() time.Duration {
	if d, err := time.ParseDuration(c.Keys.TempTTL); err == nil && d > 0 {
		return d
	}
	return 60 * time.Second
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Redis.RateLimit < 0 {
		return fmt.Errorf("redis.rate_limit must not be negative")
	}
	if c.Keys.TempTTL != "" {
		if _, err := time.ParseDuration(c.Keys.TempTTL); err != nil {
			return fmt.Errorf("keys.temp_ttl: %w", err)
		}
	}

	switch c.Archive.Backend {
	case "local":
		if c.Archive.Path == "" {
			return fmt.Errorf("archive.path is required for the local backend")
		}
	case "minio":
		if c.Archive.Endpoint == "" || c.Archive.Bucket == "" {
			return fmt.Errorf("archive.endpoint and archive.bucket are required for the minio backend")
		}
	case "s3":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive.Backend)
	}
	return nil
}
