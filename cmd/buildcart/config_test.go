package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./data/buildcart.db", cfg.Database.DSN)
	assert.Equal(t, "./data/builds", cfg.Builds.Root)
	assert.Equal(t, ".stores.buildcart.ai", cfg.Domain.BaseSuffix)
	assert.Equal(t, 2*time.Minute, cfg.Deploy.Timeout)
	assert.False(t, cfg.Notify.Enabled)
	assert.True(t, cfg.SSL.Enabled)
	assert.Equal(t, 60*time.Second, cfg.SSL.Interval)
	assert.False(t, cfg.Seed.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
server:
  host: "127.0.0.1"
  port: 9000
  shutdown_timeout: 15s

database:
  dsn: "/tmp/test.db"

builds:
  root: "/srv/builds"

domain:
  base_suffix: ".shops.example.com"

deploy:
  timeout: 5m

notify:
  enabled: true
  webhook_url: "https://notify.example.com"
  api_key: "secret"

seed:
  enabled: true

log:
  level: "debug"
  format: "text"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/tmp/test.db", cfg.Database.DSN)
	assert.Equal(t, "/srv/builds", cfg.Builds.Root)
	assert.Equal(t, ".shops.example.com", cfg.Domain.BaseSuffix)
	assert.Equal(t, 5*time.Minute, cfg.Deploy.Timeout)
	assert.True(t, cfg.Notify.Enabled)
	assert.Equal(t, "https://notify.example.com", cfg.Notify.WebhookURL)
	assert.True(t, cfg.Seed.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("BUILDCART_SERVER_HOST", "192.168.1.1")
	t.Setenv("BUILDCART_SERVER_PORT", "3000")
	t.Setenv("BUILDCART_DATABASE_DSN", "/custom/path.db")
	t.Setenv("BUILDCART_BUILDS_ROOT", "/custom/builds")
	t.Setenv("BUILDCART_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.1", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/custom/path.db", cfg.Database.DSN)
	assert.Equal(t, "/custom/builds", cfg.Builds.Root)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_FileNotFound_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	require.NoError(t, err) // Should not error, just use defaults

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	_, err := LoadConfig(tmpFile)
	assert.Error(t, err)
}

func TestLoadConfig_BaseSuffixMustStartWithDot(t *testing.T) {
	clearEnv(t)

	t.Setenv("BUILDCART_DOMAIN_BASE_SUFFIX", "stores.buildcart.ai")

	_, err := LoadConfig("")
	assert.Error(t, err)
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_JSONFormat(t *testing.T) {
	cfg := &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}

	logger := SetupLogger(cfg)
	assert.NotNil(t, logger)
}

func TestSetupLogger_TextFormat(t *testing.T) {
	cfg := &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}

	logger := SetupLogger(cfg)
	assert.NotNil(t, logger)
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	cfg := &Config{
		Log: LogConfig{
			Level:  "invalid",
			Format: "json",
		},
	}

	// Should fall back to info level, not panic
	logger := SetupLogger(cfg)
	assert.NotNil(t, logger)
}

// =============================================================================
// Config Validation Tests
// =============================================================================

func TestConfig_Address(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}

	assert.Equal(t, "localhost:8080", cfg.Server.Address())
}

// =============================================================================
// Test Helpers
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"BUILDCART_SERVER_HOST",
		"BUILDCART_SERVER_PORT",
		"BUILDCART_DATABASE_DSN",
		"BUILDCART_BUILDS_ROOT",
		"BUILDCART_DOMAIN_BASE_SUFFIX",
		"BUILDCART_LOG_LEVEL",
		"BUILDCART_LOG_FORMAT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}
