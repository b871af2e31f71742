package subscription

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DeliveryMetadata describes the batch a delivery belongs to
type DeliveryMetadata struct {
	Namespace  string `json:"namespace"`
	DeliveryID string `json:"deliveryId"`
	Timestamp  string `json:"timestamp"`
}

// Delivery is one inbound push: batch metadata plus the raw event payloads in order.
// Events are decoded one at a time during processing.
type Delivery struct {
	WebhookID string            `json:"webhookId"`
	Events    []json.RawMessage `json:"events"`
	Metadata  DeliveryMetadata  `json:"metadata"`
}

// ParseDelivery parses a request body into a Delivery. The body must be a JSON
// object whose "events" member is an array.
func ParseDelivery(body []byte) (*Delivery, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDelivery, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: body is null", ErrMalformedDelivery)
	}

	rawEvents, ok := fields["events"]
	if !ok {
		return nil, fmt.Errorf("%w: missing field \"events\"", ErrMalformedDelivery)
	}
	if trimmed := bytes.TrimSpace(rawEvents); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: field \"events\" must be an array", ErrMalformedDelivery)
	}

	var delivery Delivery
	if err := json.Unmarshal(body, &delivery); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDelivery, err)
	}
	if delivery.Events == nil {
		delivery.Events = []json.RawMessage{}
	}
	return &delivery, nil
}

// peekType extracts the discriminant from a raw event for error reporting
func peekType(raw json.RawMessage) string {
	var probe struct {
		Type interface{} `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	if s, ok := probe.Type.(string); ok {
		return s
	}
	return ""
}
