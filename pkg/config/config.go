// Package config loads service configuration from an optional YAML file with
// environment-variable overrides. Environment always wins so deployments can
// keep secrets out of the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Stripe    StripeConfig    `yaml:"stripe"`
	S3        S3Config        `yaml:"s3"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	LogLevel  string          `yaml:"log_level"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	// BaseURL is the public site URL used to build checkout redirect targets
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL         string        `yaml:"url"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	MaxIdleTime time.Duration `yaml:"max_idle_time"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RedisConfig holds the reference-data cache settings
type RedisConfig struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// StripeConfig holds billing credentials
type StripeConfig struct {
	APIKey        string `yaml:"api_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// S3Config holds invoice-archive object storage settings
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// ReconcileConfig controls the background Stripe sweep
type ReconcileConfig struct {
	// Schedule is a cron expression; empty disables the reconciler
	Schedule string `yaml:"schedule"`
}

// Default returns the baseline configuration before file and env overrides
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			MetricsAddr: ":9090",
			BaseURL:     "http://localhost:3000",
		},
		Database: DatabaseConfig{
			MaxConns:    25,
			MinConns:    5,
			MaxLifetime: 30 * time.Minute,
			MaxIdleTime: 5 * time.Minute,
			Timeout:     10 * time.Second,
		},
		Redis: RedisConfig{
			CacheTTL: 10 * time.Minute,
		},
		Reconcile: ReconcileConfig{
			Schedule: "@every 15m",
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path (if non-empty and present) and applies
// environment overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "WASHDECK_ADDR")
	setString(&c.Server.MetricsAddr, "WASHDECK_METRICS_ADDR")
	setString(&c.Server.BaseURL, "SITE_BASE_URL")
	setString(&c.Database.URL, "DATABASE_URL")
	setInt(&c.Database.MaxConns, "WASHDECK_DB_MAX_CONNS")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Stripe.APIKey, "STRIPE_SECRET_KEY")
	setString(&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setString(&c.S3.Bucket, "WASHDECK_S3_BUCKET")
	setString(&c.S3.Region, "WASHDECK_S3_REGION")
	setString(&c.S3.Endpoint, "WASHDECK_S3_ENDPOINT")
	setString(&c.S3.AccessKey, "WASHDECK_S3_ACCESS_KEY")
	setString(&c.S3.SecretKey, "WASHDECK_S3_SECRET_KEY")
	setString(&c.Reconcile.Schedule, "WASHDECK_RECONCILE_SCHEDULE")
	setString(&c.LogLevel, "WASHDECK_LOG_LEVEL")
}

// Validate checks that required settings are present
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required (DATABASE_URL)")
	}
	if c.Stripe.APIKey == "" {
		return fmt.Errorf("stripe API key is required (STRIPE_SECRET_KEY)")
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("stripe webhook secret is required (STRIPE_WEBHOOK_SECRET)")
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("site base URL is required (SITE_BASE_URL)")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
