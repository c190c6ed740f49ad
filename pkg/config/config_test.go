package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "custom")
	t.Setenv("TEST_BOOL", "1")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_LIST", "a, b,,c")

	assert.Equal(t, "custom", getEnv("TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("TEST_UNSET", "default"))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 0))
	assert.Equal(t, 7, getEnvInt("TEST_BAD_INT", 7))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", 0))
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvList("TEST_UNSET", []string{"x"}))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TASKHUB_JWT_SECRET", testSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, store.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.Level())
	assert.False(t, cfg.OAuth.Google.Enabled())
	assert.Empty(t, cfg.Prediction.URL)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
database:
  driver: sqlite3
  url: "file:taskhub.db"
auth:
  jwt_secret: "`+testSecret+`"
  token_ttl: 2h
prediction:
  url: http://ml:5000
observability:
  log_level: debug
oauth:
  github:
    client_id: gh-id
    client_secret: gh-secret
`), 0o600))

	t.Setenv("TASKHUB_CONFIG_FILE", path)
	t.Setenv("TASKHUB_PORT", "9100")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port, "environment wins over file")
	assert.Equal(t, store.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "http://ml:5000", cfg.Prediction.URL)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.Level())
	assert.True(t, cfg.OAuth.GitHub.Enabled())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "unset keys keep defaults")
}

func TestLoadConfig_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	t.Setenv("TASKHUB_CONFIG_FILE", path)

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Auth.JWTSecret = testSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "invalid database driver"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "JWT secret"},
		{"webhook without secret", func(c *Config) { c.Webhook.URL = "http://hook" }, "webhook secret"},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, "OpenTelemetry endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateArchive(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.ValidateArchive())
	cfg.Archive.S3Bucket = "taskhub-archive"
	assert.NoError(t, cfg.ValidateArchive())
}

func TestWatchFile_ReloadsLogLevel(t *testing.T) {
	t.Setenv("TASKHUB_JWT_SECRET", testSecret)
	path := filepath.Join(t.TempDir(), "taskhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("observability:\n  log_level: info\n"), 0o600))

	logger := observability.NewLogger(observability.InfoLevel, &bytes.Buffer{})
	reloaded := make(chan *Config, 1)
	apply := LogLevelReloader(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = WatchFile(ctx, path, logger, func(cfg *Config) {
			apply(cfg)
			if cfg.Observability.LogLevel != "debug" {
				return
			}
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-reloaded:
			assert.Equal(t, "debug", cfg.Observability.LogLevel)
			assert.True(t, logger.Enabled(observability.DebugLevel))
			return
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("observability:\n  log_level: debug\n"), 0o600))
		case <-deadline:
			t.Fatal("config change was not observed")
		}
	}
}
