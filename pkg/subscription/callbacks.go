package subscription

import (
	"sync"

	"github.com/platinummonkey/zeal/pkg/events"
)

// EventCallback receives each decoded event
type EventCallback func(events.Event) error

// DeliveryCallback receives each accepted delivery before its events are decoded
type DeliveryCallback func(*Delivery) error

// ErrorCallback receives every failure routed through the error channel
type ErrorCallback func(error)

type entry[T any] struct {
	id uint64
	fn T
}

// callbackList is an ordered set of callbacks. Dispatch iterates a snapshot,
// so add and remove are safe while a dispatch is in flight.
type callbackList[T any] struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []entry[T]
}

func (l *callbackList[T]) add(fn T) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, entry[T]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *callbackList[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *callbackList[T]) snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	fns := make([]T, len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	return fns
}

func (l *callbackList[T]) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// OnEvent registers a callback for every decoded event and returns a function
// that removes it
func (m *Manager) OnEvent(cb EventCallback) func() {
	return m.eventCallbacks.add(cb)
}

// OnDelivery registers a callback for every accepted delivery
func (m *Manager) OnDelivery(cb DeliveryCallback) func() {
	return m.deliveryCallbacks.add(cb)
}

// OnError registers a callback on the error channel
func (m *Manager) OnError(cb ErrorCallback) func() {
	return m.errorCallbacks.add(cb)
}

// OnEventType registers cb for events whose type exactly matches one of types.
// It occupies a single entry in the event callback list.
func (m *Manager) OnEventType(types []string, cb EventCallback) func() {
	wanted := make(map[string]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}
	return m.OnEvent(func(e events.Event) error {
		if _, ok := wanted[string(e.EventType())]; ok {
			return cb(e)
		}
		return nil
	})
}

// OnEventSource registers cb for events whose workflow id is one of workflowIDs
func (m *Manager) OnEventSource(workflowIDs []string, cb EventCallback) func() {
	wanted := make(map[string]struct{}, len(workflowIDs))
	for _, id := range workflowIDs {
		wanted[id] = struct{}{}
	}
	return m.OnEvent(func(e events.Event) error {
		if _, ok := wanted[e.Common().WorkflowID]; ok {
			return cb(e)
		}
		return nil
	})
}
