package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Builds   BuildsConfig   `mapstructure:"builds"`
	Domain   DomainConfig   `mapstructure:"domain"`
	Deploy   DeployConfig   `mapstructure:"deploy"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	SSL      SSLConfig      `mapstructure:"ssl"`
	Seed     SeedConfig     `mapstructure:"seed"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// BuildsConfig holds build storage configuration.
type BuildsConfig struct {
	// Root is the directory artifact trees are published under.
	Root string `mapstructure:"root"`
}

// DomainConfig holds public URL and custom domain configuration.
type DomainConfig struct {
	// BaseSuffix is the platform subdomain suffix, including the leading
	// dot, e.g. ".stores.buildcart.ai".
	BaseSuffix string `mapstructure:"base_suffix"`
}

// DeployConfig holds deployment pipeline configuration.
type DeployConfig struct {
	// Timeout bounds a single deployment's render and publish phases.
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotifyConfig holds deployment notification configuration.
type NotifyConfig struct {
	// Enabled determines if owner notifications are delivered.
	Enabled bool `mapstructure:"enabled"`

	// WebhookURL is the base URL of the platform notification endpoint.
	WebhookURL string `mapstructure:"webhook_url"`

	// APIKey authenticates against the notification endpoint.
	APIKey string `mapstructure:"api_key"`

	// Timeout is the per-notification request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// SSLConfig holds the certificate provisioning worker configuration.
type SSLConfig struct {
	// Enabled determines if the SSL provisioning worker runs.
	Enabled bool `mapstructure:"enabled"`

	// Interval is how often pending certificate requests are processed.
	Interval time.Duration `mapstructure:"interval"`

	// MaxConcurrent is the max number of in-flight issuance requests.
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// SeedConfig holds demo data configuration.
type SeedConfig struct {
	// Enabled inserts the demo stores on first boot when the database is
	// empty.
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/buildcart.db")
	v.SetDefault("builds.root", "./data/builds")
	v.SetDefault("domain.base_suffix", ".stores.buildcart.ai")
	v.SetDefault("deploy.timeout", "2m")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.webhook_url", "http://localhost:8085")
	v.SetDefault("notify.api_key", "")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("ssl.enabled", true)
	v.SetDefault("ssl.interval", "60s")
	v.SetDefault("ssl.max_concurrent", 5)
	v.SetDefault("seed.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("BUILDCART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Domain.BaseSuffix != "" && !strings.HasPrefix(cfg.Domain.BaseSuffix, ".") {
		return nil, fmt.Errorf("domain.base_suffix must start with a dot, got %q", cfg.Domain.BaseSuffix)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
