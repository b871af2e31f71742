package client

import (
	"math"
	"net/http"
	"time"
)

// RetryPolicy implements exponential backoff for REST calls
type RetryPolicy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// NewRetryPolicy builds a policy from the client configuration
func NewRetryPolicy(config Config) *RetryPolicy {
	config = config.withDefaults()
	return &RetryPolicy{
		MaxRetries:        config.MaxRetries,
		InitialDelay:      config.RetryBackoff,
		MaxDelay:          config.MaxRetryBackoff,
		BackoffMultiplier: 2.0,
	}
}

// ShouldRetry reports whether another attempt follows attempt (0-based).
// Network errors and 5xx responses are retried; 4xx never are.
func (p *RetryPolicy) ShouldRetry(attempt int, statusCode int, err error) bool {
	if attempt >= p.MaxRetries {
		return false
	}
	if err != nil {
		return true
	}
	return statusCode >= http.StatusInternalServerError
}

// NextRetryDelay returns the wait before retry number retry (1-based)
func (p *RetryPolicy) NextRetryDelay(retry int) time.Duration {
	if retry <= 1 {
		return p.InitialDelay
	}

	multiplier := p.BackoffMultiplier
	if multiplier <= 1.0 {
		multiplier = 2.0
	}

	// delay = initialDelay * (multiplier ^ (retry - 1))
	delay := float64(p.InitialDelay) * math.Pow(multiplier, float64(retry-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}
