// Package events defines the typed event model delivered by the Zeal Integration Protocol.
//
// # Overview
//
// Every webhook event is a JSON object carrying a "type" discriminant. This package maps
// each known discriminant to a concrete Go struct and decodes raw payloads into them.
// Unknown discriminants are rejected rather than decoded into a generic shape.
//
// # Event Categories
//
// Execution: node.executing, node.completed, node.failed, node.warning,
// execution.started, execution.completed, execution.failed
//
// Workflow: workflow.created, workflow.updated, workflow.deleted
//
// CRDT: node.added, node.updated, node.deleted, connection.added, connection.deleted,
// group.created, group.updated, group.deleted, template.registered, trace.event
//
// Control: subscribe, unsubscribe, ping, pong (realtime channel only, never decoded here)
//
// # Usage Example
//
//	event, err := events.Decode(raw)
//	if errors.Is(err, events.ErrUnknownEventType) {
//		// skip it
//	}
//
//	switch e := event.(type) {
//	case *events.NodeAddedEvent:
//		fmt.Println("node added:", e.NodeID)
//	case *events.ExecutionCompletedEvent:
//		fmt.Println("took", e.Duration, "ms")
//	}
//
// # Related Packages
//
//   - pkg/subscription: Decodes every event of an inbound delivery
//   - pkg/observable: Fans decoded events out to subscribers
package events
