package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/zeal/pkg/client"
	"github.com/platinummonkey/zeal/pkg/observability"
	"github.com/platinummonkey/zeal/pkg/subscription"
)

// Config holds all listener configuration
type Config struct {
	// Client configures calls to the remote Zeal API
	Client client.Config `yaml:"client"`

	// Subscription configures the local webhook receiver
	Subscription subscription.Options `yaml:"subscription"`

	// Server configures the process-level health/metrics server
	Server ServerConfig `yaml:"server"`

	// Redis enables the shared delivery dedupe store when URL is set
	Redis RedisConfig `yaml:"redis"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds the health/metrics server settings
type ServerConfig struct {
	HealthPort      string        `yaml:"health_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// Default returns the configuration used before files and environment are applied
func Default() *Config {
	return &Config{
		Client:       client.DefaultConfig(),
		Subscription: subscription.DefaultOptions(),
		Server: ServerConfig{
			HealthPort:      "9090",
			ShutdownTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "zeal-listener",
			OTelServiceVersion: client.Version,
			OTelInsecure:       true,
		},
	}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := Default()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFile loads a YAML file and then overlays environment variables
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides cfg with every ZEAL_* variable that is set
func applyEnv(cfg *Config) {
	c := &cfg.Client
	c.BaseURL = getEnv("ZEAL_BASE_URL", c.BaseURL)
	c.AuthToken = getEnv("ZEAL_AUTH_TOKEN", c.AuthToken)
	c.UserAgent = getEnv("ZEAL_USER_AGENT", c.UserAgent)
	c.Timeout = getEnvDuration("ZEAL_TIMEOUT", c.Timeout)
	c.MaxRetries = getEnvInt("ZEAL_MAX_RETRIES", c.MaxRetries)
	c.RetryBackoff = getEnvDuration("ZEAL_RETRY_BACKOFF", c.RetryBackoff)
	c.MaxRetryBackoff = getEnvDuration("ZEAL_MAX_RETRY_BACKOFF", c.MaxRetryBackoff)

	s := &cfg.Subscription
	s.Port = getEnvInt("ZEAL_WEBHOOK_PORT", s.Port)
	s.Host = getEnv("ZEAL_WEBHOOK_HOST", s.Host)
	s.Path = getEnv("ZEAL_WEBHOOK_PATH", s.Path)
	s.HTTPS = getEnvBool("ZEAL_WEBHOOK_HTTPS", s.HTTPS)
	s.CertFile = getEnv("ZEAL_WEBHOOK_CERT_FILE", s.CertFile)
	s.KeyFile = getEnv("ZEAL_WEBHOOK_KEY_FILE", s.KeyFile)
	s.AutoRegister = getEnvBool("ZEAL_WEBHOOK_AUTO_REGISTER", s.AutoRegister)
	s.Namespace = getEnv("ZEAL_NAMESPACE", s.Namespace)
	s.Events = getEnvList("ZEAL_WEBHOOK_EVENTS", s.Events)
	s.Headers = getEnvMap("ZEAL_WEBHOOK_HEADERS", s.Headers)
	s.BufferSize = getEnvInt("ZEAL_WEBHOOK_BUFFER_SIZE", s.BufferSize)
	s.VerifySignature = getEnvBool("ZEAL_WEBHOOK_VERIFY_SIGNATURE", s.VerifySignature)
	s.SecretKey = getEnv("ZEAL_WEBHOOK_SECRET", s.SecretKey)
	s.PublicURL = getEnv("ZEAL_WEBHOOK_PUBLIC_URL", s.PublicURL)
	s.ReregisterInterval = getEnvDuration("ZEAL_WEBHOOK_REREGISTER_INTERVAL", s.ReregisterInterval)
	s.DedupeWindow = getEnvDuration("ZEAL_WEBHOOK_DEDUPE_WINDOW", s.DedupeWindow)
	s.DedupeSize = getEnvInt("ZEAL_WEBHOOK_DEDUPE_SIZE", s.DedupeSize)
	s.ShutdownTimeout = getEnvDuration("ZEAL_WEBHOOK_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("ZEAL_WEBHOOK_MAX_BODY_BYTES", s.MaxBodyBytes)

	cfg.Server.HealthPort = getEnv("ZEAL_HEALTH_PORT", cfg.Server.HealthPort)
	cfg.Server.ShutdownTimeout = getEnvDuration("ZEAL_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Redis.URL = getEnv("ZEAL_REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Password = getEnv("ZEAL_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("ZEAL_REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Prefix = getEnv("ZEAL_REDIS_PREFIX", cfg.Redis.Prefix)

	o := &cfg.Observability
	o.LogLevel = getEnv("ZEAL_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("ZEAL_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("ZEAL_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("ZEAL_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("ZEAL_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("ZEAL_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("ZEAL_OTEL_INSECURE", o.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Subscription.Validate(); err != nil {
		return err
	}

	if c.Subscription.AutoRegister || c.Subscription.ReregisterInterval > 0 {
		if c.Client.BaseURL == "" {
			return fmt.Errorf("base URL is required when webhook registration is enabled")
		}
	}
	if c.Client.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}

	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.HealthPort == strconv.Itoa(c.Subscription.Port) {
		return fmt.Errorf("webhook port and health port must be different")
	}

	if c.Redis.URL != "" {
		if _, err := c.RedisOptions(); err != nil {
			return err
		}
		if c.Subscription.DedupeWindow <= 0 {
			return fmt.Errorf("redis dedupe requires a positive dedupe window")
		}
	}

	// Validate OpenTelemetry config
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

// RedisOptions parses the Redis URL. Password and DB override the URL when set.
func (c *Config) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if c.Redis.Password != "" {
		opts.Password = c.Redis.Password
	}
	if c.Redis.DB > 0 {
		opts.DB = c.Redis.DB
	}
	return opts, nil
}

// LogLevel returns the parsed log level
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLogLevel(c.Observability.LogLevel)
}

// OTel returns the OpenTelemetry settings
func (c *Config) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
	}
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

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getEnvMap returns a comma-separated list of key=value pairs or a default
func getEnvMap(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	pairs := make(map[string]string)
	for _, item := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		pairs[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return pairs
}
