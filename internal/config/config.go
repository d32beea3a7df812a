// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Apify    ApifyConfig    `mapstructure:"apify"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DatabaseConfig controls access to the relational database.
type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	MaxConns           int32  `mapstructure:"max_conns"`
	MinConns           int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMin int    `mapstructure:"max_conn_lifetime_minutes"`
}

// AuthConfig wires the hosted identity provider gate.
type AuthConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ClerkSecretKey string `mapstructure:"clerk_secret_key"`
	AdminPrefix    string `mapstructure:"admin_prefix"`
}

// ApifyConfig configures the hosted crawling service client.
type ApifyConfig struct {
	Token              string `mapstructure:"token"`
	Actor              string `mapstructure:"actor"`
	BaseURL            string `mapstructure:"base_url"`
	WaitSeconds        int    `mapstructure:"wait_seconds"`
	DefaultMaxRequests int    `mapstructure:"default_max_requests"`
}

// GeminiConfig configures the generative-language extraction client.
type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ArchiveConfig selects the raw-content archive backend.
type ArchiveConfig struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	Dir     string `mapstructure:"dir"`
	Prefix  string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for application-created notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("APPTRACK")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)
	v.SetDefault("auth.admin_prefix", "/api/admin")
	v.SetDefault("apify.actor", "apify~website-content-crawler")
	v.SetDefault("apify.base_url", "https://api.apify.com")
	v.SetDefault("apify.wait_seconds", 120)
	v.SetDefault("apify.default_max_requests", 10)
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.timeout_seconds", 60)
	v.SetDefault("archive.backend", "memory")
	v.SetDefault("archive.dir", "archive")
	v.SetDefault("archive.prefix", "scrapes")
}

// Validate enforces required values and reasonable limits. Credentials for
// the hosted services are deliberately not required here; their absence
// surfaces as a configuration error when the scraper endpoint is used.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Apify.WaitSeconds <= 0 {
		return fmt.Errorf("apify.wait_seconds must be > 0")
	}
	if c.Apify.DefaultMaxRequests <= 0 {
		return fmt.Errorf("apify.default_max_requests must be > 0")
	}
	if c.Gemini.TimeoutSeconds <= 0 {
		return fmt.Errorf("gemini.timeout_seconds must be > 0")
	}
	switch c.Archive.Backend {
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set when backend is gcs")
		}
	case "local", "memory":
	default:
		return fmt.Errorf("archive.backend must be one of gcs, local, memory")
	}
	if c.Auth.Enabled && c.Auth.ClerkSecretKey == "" {
		return fmt.Errorf("auth.clerk_secret_key must be set when auth is enabled")
	}
	return nil
}

// CrawlBudget is the time allowed for a synchronous crawl run.
func (c Config) CrawlBudget() time.Duration {
	return time.Duration(c.Apify.WaitSeconds) * time.Second
}

// ExtractionBudget is the time allowed for one generative-text call.
func (c Config) ExtractionBudget() time.Duration {
	return time.Duration(c.Gemini.TimeoutSeconds) * time.Second
}
