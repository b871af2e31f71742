package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/zeal/pkg/observability"
	"github.com/platinummonkey/zeal/pkg/subscription"
)

// maxErrorBody caps how much of an error response is kept in APIError
const maxErrorBody = 64 << 10

// Client calls the Zeal Integration Protocol REST API
type Client struct {
	config     Config
	httpClient *http.Client
	retry      *RetryPolicy
	logger     *observability.Logger
	metrics    *observability.Metrics

	webhooks *WebhooksAPI
}

// New creates a client. Zero durations and an empty user agent take their
// defaults; MaxRetries is used as given.
func New(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retry:  NewRetryPolicy(config),
		logger: observability.NewLogger(observability.InfoLevel, os.Stderr).WithField("component", "client"),
	}
	c.webhooks = &WebhooksAPI{client: c}
	return c, nil
}

// SetLogger replaces the logger
func (c *Client) SetLogger(logger *observability.Logger) *Client {
	c.logger = logger.WithField("component", "client")
	return c
}

// SetMetrics enables Prometheus instrumentation of outbound requests
func (c *Client) SetMetrics(metrics *observability.Metrics) *Client {
	c.metrics = metrics
	return c
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

// Config returns the effective configuration
func (c *Client) Config() Config {
	return c.config
}

// Webhooks returns the webhooks API
func (c *Client) Webhooks() *WebhooksAPI {
	return c.webhooks
}

// Registrar adapts the webhooks API for a subscription manager
func (c *Client) Registrar() subscription.Registrar {
	return &webhookRegistrar{api: c.webhooks}
}

// NewSubscription creates a subscription manager that registers itself
// through this client and shares its logger and metrics
func (c *Client) NewSubscription(opts subscription.Options) *subscription.Manager {
	return subscription.New(c.Registrar(), opts).
		SetLogger(c.logger).
		SetMetrics(c.metrics)
}

// HealthCheckResponse is returned by Health
type HealthCheckResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

// Health checks the remote service
func (c *Client) Health(ctx context.Context) (*HealthCheckResponse, error) {
	var result HealthCheckResponse
	if err := c.do(ctx, http.MethodGet, "/api/zip/health", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do sends a JSON request, retrying per the retry policy, and decodes the
// response into result when result is non-nil
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + path
	logger := c.logger.WithField("method", method).WithField("path", path)

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := c.retry.NextRetryDelay(attempt)
			logger.WithField("attempt", attempt+1).WithField("delay", delay.String()).Debug("retrying request")
			c.metrics.RecordClientRetry()

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s %s: %w", method, path, ctx.Err())
			case <-timer.C:
			}
		}

		status, respBody, err := c.attempt(ctx, method, url, payload)
		if err == nil && status < http.StatusBadRequest {
			if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
				if err := json.Unmarshal(respBody, result); err != nil {
					return fmt.Errorf("failed to decode response: %w", err)
				}
			}
			return nil
		}

		var lastErr error
		if err != nil {
			lastErr = fmt.Errorf("%s %s: %w", method, path, err)
		} else {
			lastErr = &APIError{StatusCode: status, Method: method, Path: path, Body: string(respBody)}
		}

		if ctx.Err() != nil || !c.retry.ShouldRetry(attempt, status, err) {
			if attempt > 0 {
				return fmt.Errorf("request failed after %d attempts: %w", attempt+1, lastErr)
			}
			return lastErr
		}
		logger.WithError(lastErr).WithField("attempt", attempt+1).Warn("request failed")
	}
}

// attempt performs one round trip. status is 0 when no response arrived.
func (c *Client) attempt(ctx context.Context, method, url string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordClientRequest(method, 0, time.Since(start))
		return 0, nil, err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if resp.StatusCode >= http.StatusBadRequest {
		body = io.LimitReader(resp.Body, maxErrorBody)
	}
	respBody, err := io.ReadAll(body)
	c.metrics.RecordClientRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
