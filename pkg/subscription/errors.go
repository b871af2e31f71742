package subscription

import (
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/zeal/pkg/events"
)

var (
	// ErrInvalidSignature is reported when a delivery's signature header is missing or wrong
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedDelivery is reported when a request body is not a valid delivery
	ErrMalformedDelivery = errors.New("malformed webhook delivery")
	// ErrCallbackFailure is reported when a delivery or event callback returns an error or panics
	ErrCallbackFailure = errors.New("callback failed")
	// ErrRegistrationFailure is reported when creating or deleting the remote registration fails
	ErrRegistrationFailure = errors.New("webhook registration failed")
	// ErrAlreadyRunning is returned by Start when the manager is not stopped
	ErrAlreadyRunning = errors.New("subscription already running")
	// ErrNotRunning is returned by operations that need a running receiver
	ErrNotRunning = errors.New("subscription not running")
	// ErrConfiguration is returned for invalid Options
	ErrConfiguration = errors.New("invalid subscription configuration")
)

// DeliveryError describes a failure tied to one inbound delivery, and
// optionally to a single event inside it.
//
// It matches both its Kind and its cause with errors.Is.
type DeliveryError struct {
	Kind       error
	DeliveryID string
	// EventIndex is the position of the event in the delivery, or -1
	EventIndex int
	EventType  string
	Err        error
}

func (e *DeliveryError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.DeliveryID != "" {
		fmt.Fprintf(&b, " (delivery %s", e.DeliveryID)
		if e.EventIndex >= 0 {
			fmt.Fprintf(&b, ", event %d", e.EventIndex)
		}
		b.WriteString(")")
	} else if e.EventIndex >= 0 {
		fmt.Fprintf(&b, " (event %d)", e.EventIndex)
	}
	if e.EventType != "" {
		fmt.Fprintf(&b, " [%s]", e.EventType)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the cause
func (e *DeliveryError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// kindLabel maps an error to a short label for logs and metrics
func kindLabel(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrMalformedDelivery):
		return "malformed_delivery"
	case errors.Is(err, events.ErrUnknownEventType):
		return "unknown_event_type"
	case errors.Is(err, events.ErrMalformedEvent):
		return "malformed_event"
	case errors.Is(err, ErrCallbackFailure):
		return "callback_failure"
	case errors.Is(err, ErrRegistrationFailure):
		return "registration_failure"
	default:
		return "other"
	}
}
