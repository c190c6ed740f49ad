package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/store"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      store.Config        `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	OAuth         OAuthConfig         `yaml:"oauth"`
	Prediction    PredictionConfig    `yaml:"prediction"`
	Webhook       WebhookConfig       `yaml:"webhook"`
	Archive       ArchiveConfig       `yaml:"archive"`
	SuperAdmin    SuperAdminConfig    `yaml:"super_admin"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	FrontendURL     string        `yaml:"frontend_url"`
}

// Addr is the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// RedisConfig configures realtime notification publishing and login rate limiting.
// An empty URL disables both.
type RedisConfig struct {
	URL           string        `yaml:"url"`
	PoolSize      int           `yaml:"pool_size"`
	LoginAttempts int           `yaml:"login_attempts"`
	LoginWindow   time.Duration `yaml:"login_window"`
}

// AuthConfig configures session tokens
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Issuer    string        `yaml:"issuer"`
}

// OAuthProvider holds client credentials for one external login provider
type OAuthProvider struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// Enabled reports whether the provider is configured
func (p OAuthProvider) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// OAuthConfig holds external login providers
type OAuthConfig struct {
	Google OAuthProvider `yaml:"google"`
	GitHub OAuthProvider `yaml:"github"`
}

// PredictionConfig configures the external prediction service.
// An empty URL disables enrichment.
type PredictionConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// WebhookConfig configures the outbound activity webhook. An empty URL disables it.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
}

// ArchiveConfig configures the retention janitor
type ArchiveConfig struct {
	S3Endpoint            string        `yaml:"s3_endpoint"`
	S3Region              string        `yaml:"s3_region"`
	S3Bucket              string        `yaml:"s3_bucket"`
	S3AccessKey           string        `yaml:"s3_access_key"`
	S3SecretKey           string        `yaml:"s3_secret_key"`
	S3UsePathStyle        bool          `yaml:"s3_use_path_style"`
	ActivityRetention     time.Duration `yaml:"activity_retention"`
	NotificationRetention time.Duration `yaml:"notification_retention"`
	Schedule              string        `yaml:"schedule"`
	BatchSize             int           `yaml:"batch_size"`
}

// SuperAdminConfig is the account created by taskhub-seed
type SuperAdminConfig struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel           string  `yaml:"log_level"`
	MetricsEnabled     bool    `yaml:"metrics_enabled"`
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:5173"},
			FrontendURL:     "http://localhost:5173",
		},
		Database: store.DefaultConfig(),
		Redis: RedisConfig{
			PoolSize:      10,
			LoginAttempts: 10,
			LoginWindow:   15 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
			Issuer:   "taskhub",
		},
		Prediction: PredictionConfig{Timeout: 5 * time.Second},
		Webhook:    WebhookConfig{Timeout: 5 * time.Second},
		Archive: ArchiveConfig{
			S3Region:              "us-east-1",
			ActivityRetention:     90 * 24 * time.Hour,
			NotificationRetention: 30 * 24 * time.Hour,
			Schedule:              "0 3 * * *",
			BatchSize:             1000,
		},
		SuperAdmin: SuperAdminConfig{Name: "Super Admin"},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "taskhub",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file named
// by TASKHUB_CONFIG_FILE when set, then TASKHUB_* environment variables.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("TASKHUB_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("TASKHUB_HOST", s.Host)
	s.Port = getEnv("TASKHUB_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("TASKHUB_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("TASKHUB_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("TASKHUB_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("TASKHUB_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.AllowedOrigins = getEnvList("TASKHUB_ALLOWED_ORIGINS", s.AllowedOrigins)
	s.FrontendURL = getEnv("TASKHUB_FRONTEND_URL", s.FrontendURL)

	d := &c.Database
	d.Driver = getEnv("TASKHUB_DB_DRIVER", d.Driver)
	d.URL = getEnv("TASKHUB_DATABASE_URL", d.URL)
	d.MaxConns = getEnvInt("TASKHUB_DB_MAX_CONNS", d.MaxConns)
	d.MinConns = getEnvInt("TASKHUB_DB_MIN_CONNS", d.MinConns)
	d.Timeout = getEnvDuration("TASKHUB_DB_TIMEOUT", d.Timeout)

	r := &c.Redis
	r.URL = getEnv("TASKHUB_REDIS_URL", r.URL)
	r.PoolSize = getEnvInt("TASKHUB_REDIS_POOL_SIZE", r.PoolSize)
	r.LoginAttempts = getEnvInt("TASKHUB_LOGIN_ATTEMPTS", r.LoginAttempts)
	r.LoginWindow = getEnvDuration("TASKHUB_LOGIN_WINDOW", r.LoginWindow)

	a := &c.Auth
	a.JWTSecret = getEnv("TASKHUB_JWT_SECRET", a.JWTSecret)
	a.TokenTTL = getEnvDuration("TASKHUB_TOKEN_TTL", a.TokenTTL)
	a.Issuer = getEnv("TASKHUB_JWT_ISSUER", a.Issuer)

	applyProviderEnv("GOOGLE", &c.OAuth.Google)
	applyProviderEnv("GITHUB", &c.OAuth.GitHub)

	c.Prediction.URL = getEnv("TASKHUB_ML_SERVICE_URL", c.Prediction.URL)
	c.Prediction.Timeout = getEnvDuration("TASKHUB_ML_SERVICE_TIMEOUT", c.Prediction.Timeout)

	c.Webhook.URL = getEnv("TASKHUB_WEBHOOK_URL", c.Webhook.URL)
	c.Webhook.Secret = getEnv("TASKHUB_WEBHOOK_SECRET", c.Webhook.Secret)
	c.Webhook.Timeout = getEnvDuration("TASKHUB_WEBHOOK_TIMEOUT", c.Webhook.Timeout)

	ar := &c.Archive
	ar.S3Endpoint = getEnv("TASKHUB_S3_ENDPOINT", ar.S3Endpoint)
	ar.S3Region = getEnv("TASKHUB_S3_REGION", ar.S3Region)
	ar.S3Bucket = getEnv("TASKHUB_S3_BUCKET", ar.S3Bucket)
	ar.S3AccessKey = getEnv("TASKHUB_S3_ACCESS_KEY", ar.S3AccessKey)
	ar.S3SecretKey = getEnv("TASKHUB_S3_SECRET_KEY", ar.S3SecretKey)
	ar.S3UsePathStyle = getEnvBool("TASKHUB_S3_USE_PATH_STYLE", ar.S3UsePathStyle)
	ar.ActivityRetention = getEnvDuration("TASKHUB_ACTIVITY_RETENTION", ar.ActivityRetention)
	ar.NotificationRetention = getEnvDuration("TASKHUB_NOTIFICATION_RETENTION", ar.NotificationRetention)
	ar.Schedule = getEnv("TASKHUB_JANITOR_SCHEDULE", ar.Schedule)
	ar.BatchSize = getEnvInt("TASKHUB_ARCHIVE_BATCH_SIZE", ar.BatchSize)

	c.SuperAdmin.Email = getEnv("TASKHUB_SUPER_ADMIN_EMAIL", c.SuperAdmin.Email)
	c.SuperAdmin.Name = getEnv("TASKHUB_SUPER_ADMIN_NAME", c.SuperAdmin.Name)
	c.SuperAdmin.Password = getEnv("TASKHUB_SUPER_ADMIN_PASSWORD", c.SuperAdmin.Password)

	o := &c.Observability
	o.LogLevel = getEnv("TASKHUB_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("TASKHUB_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("TASKHUB_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("TASKHUB_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("TASKHUB_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("TASKHUB_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("TASKHUB_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("TASKHUB_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

func applyProviderEnv(name string, p *OAuthProvider) {
	p.ClientID = getEnv("TASKHUB_"+name+"_CLIENT_ID", p.ClientID)
	p.ClientSecret = getEnv("TASKHUB_"+name+"_CLIENT_SECRET", p.ClientSecret)
	p.RedirectURL = getEnv("TASKHUB_"+name+"_REDIRECT_URL", p.RedirectURL)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Database.Driver {
	case store.DriverPostgres, store.DriverSQLite:
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}

	if c.Webhook.URL != "" && c.Webhook.Secret == "" {
		return fmt.Errorf("webhook secret is required when a webhook URL is set")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// ValidateArchive checks the settings the janitor needs on top of Validate
func (c *Config) ValidateArchive() error {
	if c.Archive.S3Bucket == "" {
		return fmt.Errorf("S3 bucket is required for activity archival")
	}
	if c.Archive.ActivityRetention <= 0 || c.Archive.NotificationRetention <= 0 {
		return fmt.Errorf("retention periods must be positive")
	}
	if c.Archive.BatchSize <= 0 {
		return fmt.Errorf("archive batch size must be positive")
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated environment variable or returns a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
