package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"canvashistory/pkg/utils"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Auth modes
const (
	AuthModeNone     = "none"
	AuthModeJWT      = "jwt"
	AuthModeSupabase = "supabase"
)

// Config holds all application configuration
type Config struct {
	Environment string `yaml:"environment" validate:"oneof=development staging production test"`
	LogLevel    string `yaml:"log_level"`

	Server   ServerConfig   `yaml:"server"`
	History  HistoryConfig  `yaml:"history"`
	Sessions SessionsConfig `yaml:"sessions"`
	Auth     AuthConfig     `yaml:"auth"`
	Events   EventsConfig   `yaml:"events"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	CORS     CORSConfig     `yaml:"cors"`

	// File is the YAML file the configuration was read from, if any.
	File string `yaml:"-"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Address         string        `yaml:"address" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" validate:"min=1024"`
}

// HistoryConfig configures every session history
type HistoryConfig struct {
	Limit int `yaml:"limit" validate:"min=1,max=1000"`
	// RestoreTimeout releases a restore that was never completed.
	// Negative disables the timeout.
	RestoreTimeout time.Duration `yaml:"restore_timeout"`
}

// SessionsConfig bounds the session registry
type SessionsConfig struct {
	MaxSessions   int           `yaml:"max_sessions" validate:"min=0"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// AuthConfig selects how requests are authenticated
type AuthConfig struct {
	Mode        string        `yaml:"mode" validate:"oneof=none jwt supabase"`
	JWTSecret   string        `yaml:"jwt_secret"`
	JWTIssuer   string        `yaml:"jwt_issuer"`
	JWTAudience []string      `yaml:"jwt_audience"`
	SupabaseURL string        `yaml:"supabase_url"`
	SupabaseKey string        `yaml:"supabase_key"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker around remote token checks
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	MinRequests      uint32        `yaml:"min_requests"`
	FailureThreshold float64       `yaml:"failure_threshold" validate:"gte=0,lte=1"`
}

// EventsConfig configures domain event export to EventBridge
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	BusName string `yaml:"bus_name"`
	Source  string `yaml:"source"`
	Region  string `yaml:"region"`
}

// TracingConfig configures OTLP span export
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Namespace string `yaml:"namespace" validate:"required"`
}

// CORSConfig configures cross-origin access for browser editors
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    4 << 20,
		},
		History: HistoryConfig{
			Limit:          50,
			RestoreTimeout: 5 * time.Second,
		},
		Sessions: SessionsConfig{
			MaxSessions:   10000,
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Auth: AuthConfig{
			Mode:        AuthModeNone,
			JWTAudience: []string{"authenticated"},
			Breaker: BreakerConfig{
				MaxRequests:      3,
				Interval:         60 * time.Second,
				Timeout:          30 * time.Second,
				MinRequests:      5,
				FailureThreshold: 0.6,
			},
		},
		Events: EventsConfig{
			Source: "canvas-history",
		},
		Tracing: TracingConfig{
			Insecure:    true,
			SampleRatio: 1,
		},
		Metrics: MetricsConfig{
			Namespace: "canvas_history",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment, in increasing priority. An empty path falls back to
// CONFIG_FILE; when both are empty no file is read.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.File = path
	}

	cfg.loadEnvironmentVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// loadEnvironmentVariables overlays environment variables on the configuration
func (c *Config) loadEnvironmentVariables() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Server.Address = getEnv("SERVER_ADDRESS", c.Server.Address)
	c.Server.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(c.Server.MaxBodyBytes)))

	c.History.Limit = getEnvInt("HISTORY_LIMIT", c.History.Limit)
	c.History.RestoreTimeout = getEnvDuration("HISTORY_RESTORE_TIMEOUT", c.History.RestoreTimeout)

	c.Sessions.MaxSessions = getEnvInt("MAX_SESSIONS", c.Sessions.MaxSessions)
	c.Sessions.IdleTimeout = getEnvDuration("SESSION_IDLE_TIMEOUT", c.Sessions.IdleTimeout)

	c.Auth.Mode = getEnv("AUTH_MODE", c.Auth.Mode)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTIssuer = getEnv("JWT_ISSUER", c.Auth.JWTIssuer)
	c.Auth.JWTAudience = getEnvList("JWT_AUDIENCE", c.Auth.JWTAudience)
	c.Auth.SupabaseURL = getEnv("SUPABASE_URL", c.Auth.SupabaseURL)
	c.Auth.SupabaseKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", c.Auth.SupabaseKey)

	c.Events.Enabled = getEnvBool("EVENTS_ENABLED", c.Events.Enabled)
	c.Events.BusName = getEnv("EVENT_BUS_NAME", c.Events.BusName)
	c.Events.Source = getEnv("EVENT_SOURCE", c.Events.Source)
	c.Events.Region = getEnv("AWS_REGION", c.Events.Region)

	c.Tracing.Enabled = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)

	c.Metrics.Namespace = getEnv("METRICS_NAMESPACE", c.Metrics.Namespace)
	c.CORS.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.CORS.AllowedOrigins)
}

// Validate checks field ranges and the combinations that only make sense together
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}

	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	var errs []error
	switch c.Auth.Mode {
	case AuthModeNone:
		if c.IsProduction() {
			errs = append(errs, errors.New("auth mode none is not allowed in production"))
		}
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required for auth mode jwt"))
		}
	case AuthModeSupabase:
		if c.Auth.SupabaseURL == "" || c.Auth.SupabaseKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for auth mode supabase"))
		}
	}

	if c.Events.Enabled && c.Events.BusName == "" {
		errs = append(errs, errors.New("EVENT_BUS_NAME is required when events are enabled"))
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required when tracing is enabled"))
	}

	return errors.Join(errs...)
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// YAML renders the configuration with secrets masked
func (c *Config) YAML() ([]byte, error) {
	masked := *c
	masked.Auth.JWTSecret = mask(c.Auth.JWTSecret)
	masked.Auth.SupabaseKey = mask(c.Auth.SupabaseKey)
	return yaml.Marshal(&masked)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable such as "5s"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList gets a comma separated environment variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
