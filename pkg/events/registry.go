package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownEventType is returned when a payload's discriminant has no registered decoder
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrMalformedEvent is returned when a payload is missing a required field or has the wrong shape
	ErrMalformedEvent = errors.New("malformed event")
)

// baseRequired lists the wire fields every webhook event must carry
var baseRequired = []string{"id", "timestamp", "type", "workflowId"}

// variant describes how one discriminant is decoded.
// Wire field names come from the struct tags of the value returned by newEvent.
type variant struct {
	newEvent func() Event
	required []string
}

var registry = map[Type]variant{
	NodeExecuting: {
		newEvent: func() Event { return &NodeExecutingEvent{} },
		required: []string{"nodeId", "inputConnections"},
	},
	NodeCompleted: {
		newEvent: func() Event { return &NodeCompletedEvent{} },
		required: []string{"nodeId", "outputConnections"},
	},
	NodeFailed: {
		newEvent: func() Event { return &NodeFailedEvent{} },
		required: []string{"nodeId", "outputConnections"},
	},
	NodeWarning: {
		newEvent: func() Event { return &NodeWarningEvent{} },
		required: []string{"nodeId", "outputConnections"},
	},
	ExecutionStarted: {
		newEvent: func() Event { return &ExecutionStartedEvent{} },
		required: []string{"sessionId", "workflowName"},
	},
	ExecutionCompleted: {
		newEvent: func() Event { return &ExecutionCompletedEvent{} },
		required: []string{"sessionId", "duration", "nodesExecuted"},
	},
	ExecutionFailed: {
		newEvent: func() Event { return &ExecutionFailedEvent{} },
		required: []string{"sessionId"},
	},
	WorkflowCreated: {
		newEvent: func() Event { return &WorkflowCreatedEvent{} },
		required: []string{"workflowName"},
	},
	WorkflowUpdated: {
		newEvent: func() Event { return &WorkflowUpdatedEvent{} },
	},
	WorkflowDeleted: {
		newEvent: func() Event { return &WorkflowDeletedEvent{} },
	},
	NodeAdded: {
		newEvent: func() Event { return &NodeAddedEvent{} },
		required: []string{"nodeId", "data"},
	},
	NodeUpdated: {
		newEvent: func() Event { return &NodeUpdatedEvent{} },
		required: []string{"nodeId", "data"},
	},
	NodeDeleted: {
		newEvent: func() Event { return &NodeDeletedEvent{} },
		required: []string{"nodeId"},
	},
	ConnectionAdded: {
		newEvent: func() Event { return &ConnectionAddedEvent{} },
		required: []string{"data"},
	},
	ConnectionDeleted: {
		newEvent: func() Event { return &ConnectionDeletedEvent{} },
		required: []string{"data"},
	},
	GroupCreated: {
		newEvent: func() Event { return &GroupCreatedEvent{} },
		required: []string{"data"},
	},
	GroupUpdated: {
		newEvent: func() Event { return &GroupUpdatedEvent{} },
		required: []string{"data"},
	},
	GroupDeleted: {
		newEvent: func() Event { return &GroupDeletedEvent{} },
		required: []string{"data"},
	},
	TemplateRegistered: {
		newEvent: func() Event { return &TemplateRegisteredEvent{} },
		required: []string{"data"},
	},
	TraceEvent: {
		newEvent: func() Event { return &TraceEventData{} },
		required: []string{"sessionId", "nodeId", "data"},
	},
}

// Registered reports whether t can be decoded from a webhook payload
func Registered(t Type) bool {
	_, ok := registry[t]
	return ok
}

// RegisteredTypes returns every decodable discriminant in sorted order
func RegisteredTypes() []Type {
	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Decode decodes a single raw webhook event payload into its concrete type.
//
// It fails with ErrUnknownEventType when the discriminant is not registered and with
// ErrMalformedEvent when the payload is not an object, a required field is absent or null,
// or a field has the wrong JSON shape.
func Decode(raw json.RawMessage) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: payload is null", ErrMalformedEvent)
	}

	rawType, ok := fields["type"]
	if !ok {
		return nil, fmt.Errorf("%w: missing field \"type\"", ErrMalformedEvent)
	}
	var eventType string
	if err := json.Unmarshal(rawType, &eventType); err != nil {
		return nil, fmt.Errorf("%w: field \"type\" must be a string", ErrMalformedEvent)
	}

	v, ok := registry[Type(eventType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}

	if err := checkRequired(fields, baseRequired); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, eventType, err)
	}
	if err := checkRequired(fields, v.required); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, eventType, err)
	}

	event := v.newEvent()
	if err := json.Unmarshal(raw, event); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, eventType, err)
	}
	return event, nil
}

// DecodeMap decodes an already-parsed payload
func DecodeMap(payload map[string]interface{}) (Event, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: payload is null", ErrMalformedEvent)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return Decode(raw)
}

var jsonNull = []byte("null")

func checkRequired(fields map[string]json.RawMessage, required []string) error {
	for _, name := range required {
		value, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(value), jsonNull) {
			return fmt.Errorf("missing required field %q", name)
		}
	}
	return nil
}
