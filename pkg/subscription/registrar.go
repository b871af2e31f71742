package subscription

import "context"

// Registration is the remote webhook record the manager asks for
type Registration struct {
	URL     string
	Events  []string
	Headers map[string]string
}

// Registrar creates and deletes the remote webhook registration that points
// at this receiver. The manager is its only caller.
type Registrar interface {
	CreateWebhook(ctx context.Context, reg Registration) (id string, err error)
	DeleteWebhook(ctx context.Context, id string) error
}
