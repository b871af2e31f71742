package client

import (
	"errors"
	"time"
)

const (
	// Version is the SDK version reported in the default user agent
	Version = "1.0.0"
	// DefaultUserAgent is sent when Config.UserAgent is empty
	DefaultUserAgent = "zeal-go-sdk/" + Version
)

// Config holds client settings
type Config struct {
	BaseURL   string `yaml:"base_url"`
	AuthToken string `yaml:"auth_token"`
	UserAgent string `yaml:"user_agent"`

	// Timeout bounds a single attempt
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries after the first attempt
	MaxRetries      int           `yaml:"max_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	MaxRetryBackoff time.Duration `yaml:"max_retry_backoff"`
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		UserAgent:       DefaultUserAgent,
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryBackoff:    1 * time.Second,
		MaxRetryBackoff: 30 * time.Second,
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL cannot be empty")
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries must not be negative")
	}
	return nil
}

// withDefaults fills zero durations and the user agent
func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.UserAgent == "" {
		c.UserAgent = defaults.UserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaults.RetryBackoff
	}
	if c.MaxRetryBackoff <= 0 {
		c.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	return c
}
