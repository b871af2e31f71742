package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/platinummonkey/zeal/pkg/subscription"
)

const webhooksPath = "/api/zip/webhooks"

// WebhookSubscription is a webhook registration held by the remote service
type WebhookSubscription struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Events        []string          `json:"events"`
	Headers       map[string]string `json:"headers,omitempty"`
	Secret        *string           `json:"secret,omitempty"`
	MaxRetries    int               `json:"maxRetries"`
	RetryInterval int               `json:"retryInterval"`
	IsActive      bool              `json:"isActive"`
	CreatedAt     time.Time         `json:"createdAt"`
}

type CreateWebhookRequest struct {
	URL           string            `json:"url"`
	Events        []string          `json:"events"`
	Headers       map[string]string `json:"headers,omitempty"`
	Secret        *string           `json:"secret,omitempty"`
	MaxRetries    *int              `json:"maxRetries,omitempty"`
	RetryInterval *int              `json:"retryInterval,omitempty"`
}

type CreateWebhookResponse struct {
	Success      bool                `json:"success"`
	Subscription WebhookSubscription `json:"subscription"`
}

type ListWebhooksResponse struct {
	Subscriptions []WebhookSubscription `json:"subscriptions"`
	Total         int                   `json:"total"`
}

// UpdateWebhookRequest changes only the fields that are set
type UpdateWebhookRequest struct {
	URL           *string            `json:"url,omitempty"`
	Events        []string           `json:"events,omitempty"`
	Headers       *map[string]string `json:"headers,omitempty"`
	Secret        *string            `json:"secret,omitempty"`
	MaxRetries    *int               `json:"maxRetries,omitempty"`
	RetryInterval *int               `json:"retryInterval,omitempty"`
	IsActive      *bool              `json:"isActive,omitempty"`
}

type UpdateWebhookResponse struct {
	Success      bool                `json:"success"`
	Subscription WebhookSubscription `json:"subscription"`
}

type DeleteWebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type TestWebhookResponse struct {
	Success        bool    `json:"success"`
	StatusCode     int     `json:"statusCode"`
	ResponseTimeMs int64   `json:"responseTimeMs"`
	Error          *string `json:"error,omitempty"`
}

// WebhooksAPI manages webhook registrations
type WebhooksAPI struct {
	client *Client
}

// Create registers a new webhook
func (api *WebhooksAPI) Create(ctx context.Context, req CreateWebhookRequest) (*CreateWebhookResponse, error) {
	var result CreateWebhookResponse
	if err := api.client.do(ctx, http.MethodPost, webhooksPath, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// List returns every webhook registration visible to the caller
func (api *WebhooksAPI) List(ctx context.Context) (*ListWebhooksResponse, error) {
	var result ListWebhooksResponse
	if err := api.client.do(ctx, http.MethodGet, webhooksPath, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Update patches a webhook registration
func (api *WebhooksAPI) Update(ctx context.Context, webhookID string, req UpdateWebhookRequest) (*UpdateWebhookResponse, error) {
	var result UpdateWebhookResponse
	if err := api.client.do(ctx, http.MethodPatch, webhookPath(webhookID), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes a webhook registration
func (api *WebhooksAPI) Delete(ctx context.Context, webhookID string) (*DeleteWebhookResponse, error) {
	var result DeleteWebhookResponse
	if err := api.client.do(ctx, http.MethodDelete, webhookPath(webhookID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Test asks the remote service to send a test delivery
func (api *WebhooksAPI) Test(ctx context.Context, webhookID string) (*TestWebhookResponse, error) {
	var result TestWebhookResponse
	if err := api.client.do(ctx, http.MethodPost, webhookPath(webhookID)+"/test", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func webhookPath(webhookID string) string {
	return webhooksPath + "/" + url.PathEscape(webhookID)
}

// webhookRegistrar implements subscription.Registrar on top of WebhooksAPI
type webhookRegistrar struct {
	api *WebhooksAPI
}

func (r *webhookRegistrar) CreateWebhook(ctx context.Context, reg subscription.Registration) (string, error) {
	resp, err := r.api.Create(ctx, CreateWebhookRequest{
		URL:     reg.URL,
		Events:  reg.Events,
		Headers: reg.Headers,
	})
	if err != nil {
		return "", err
	}
	if resp.Subscription.ID == "" {
		return "", errors.New("registration response carried no subscription id")
	}
	return resp.Subscription.ID, nil
}

// DeleteWebhook treats an already-deleted registration as success
func (r *webhookRegistrar) DeleteWebhook(ctx context.Context, id string) error {
	_, err := r.api.Delete(ctx, id)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}
