package client

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2}
	netErr := errors.New("connection refused")

	tests := []struct {
		name    string
		attempt int
		status  int
		err     error
		want    bool
	}{
		{"network error", 0, 0, netErr, true},
		{"500", 0, 500, nil, true},
		{"503 on last retry", 2, 503, nil, true},
		{"retries exhausted", 3, 503, nil, false},
		{"network error exhausted", 3, 0, netErr, false},
		{"400", 0, 400, nil, false},
		{"404", 0, 404, nil, false},
		{"429", 0, 429, nil, false},
		{"200", 0, 200, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.ShouldRetry(tt.attempt, tt.status, tt.err))
		})
	}
}

func TestRetryPolicy_NextRetryDelay(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 10, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2}

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{20, 30 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.NextRetryDelay(tt.retry), "retry %d", tt.retry)
	}
}

func TestNewRetryPolicy_Defaults(t *testing.T) {
	policy := NewRetryPolicy(Config{MaxRetries: 3})
	assert.Equal(t, 3, policy.MaxRetries)
	assert.Equal(t, time.Second, policy.InitialDelay)
	assert.Equal(t, 30*time.Second, policy.MaxDelay)
	assert.Equal(t, 2.0, policy.BackoffMultiplier)

	policy = NewRetryPolicy(Config{MaxRetries: 0})
	assert.Equal(t, 0, policy.MaxRetries)
	assert.False(t, policy.ShouldRetry(0, 500, nil))
}
