package observable

import (
	"sync"

	"github.com/platinummonkey/zeal/pkg/events"
	"github.com/platinummonkey/zeal/pkg/observability"
)

// NextFunc receives each emitted event
type NextFunc func(events.Event) error

// ErrorFunc receives errors routed to a subscriber
type ErrorFunc func(error)

// CompleteFunc is called once when the Observable completes
type CompleteFunc func()

// Predicate selects events for a filtered Observable
type Predicate func(events.Event) bool

type subscriber struct {
	id         uint64
	next       NextFunc
	onError    ErrorFunc
	onComplete CompleteFunc
}

// Observable is a synchronous fan-out hub for events
type Observable struct {
	mu          sync.Mutex
	subscribers []*subscriber
	nextID      uint64
	completed   bool
	capacity    int

	// detach removes a filtered child from its parent on completion
	detach func()
}

// New creates an Observable. capacity is the configured event buffer size and
// is reported by Capacity; fan-out itself is synchronous.
func New(capacity int) *Observable {
	return &Observable{capacity: capacity}
}

// Capacity returns the buffer size the Observable was created with
func (o *Observable) Capacity() int {
	return o.capacity
}

// Subscribe registers a subscriber and returns a function that removes it.
// onError and onComplete may be nil. Calling the returned function more than
// once is a no-op. Subscribing to a completed Observable returns a no-op.
func (o *Observable) Subscribe(next NextFunc, onError ErrorFunc, onComplete CompleteFunc) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.completed {
		return func() {}
	}

	o.nextID++
	id := o.nextID
	o.subscribers = append(o.subscribers, &subscriber{
		id:         id,
		next:       next,
		onError:    onError,
		onComplete: onComplete,
	})

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *Observable) remove(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, s := range o.subscribers {
		if s.id == id {
			o.subscribers = append(o.subscribers[:i:i], o.subscribers[i+1:]...)
			return
		}
	}
}

func (o *Observable) snapshot() ([]*subscriber, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.completed {
		return nil, false
	}
	subs := make([]*subscriber, len(o.subscribers))
	copy(subs, o.subscribers)
	return subs, true
}

// Emit delivers event to every current subscriber in registration order
func (o *Observable) Emit(event events.Event) {
	subs, ok := o.snapshot()
	if !ok {
		return
	}

	for _, s := range subs {
		if err := callNext(s.next, event); err != nil {
			callError(s.onError, err)
		}
	}
}

// Error delivers err to every current subscriber's error handler.
// It does not complete the Observable.
func (o *Observable) Error(err error) {
	subs, ok := o.snapshot()
	if !ok {
		return
	}

	for _, s := range subs {
		callError(s.onError, err)
	}
}

// Complete runs every completion handler once and clears the subscriber list.
// Later calls are no-ops.
func (o *Observable) Complete() {
	o.mu.Lock()
	if o.completed {
		o.mu.Unlock()
		return
	}
	o.completed = true
	subs := o.subscribers
	o.subscribers = nil
	detach := o.detach
	o.detach = nil
	o.mu.Unlock()

	for _, s := range subs {
		callComplete(s.onComplete)
	}
	if detach != nil {
		detach()
	}
}

// Completed reports whether Complete has been called
func (o *Observable) Completed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.completed
}

// Len returns the number of active subscribers
func (o *Observable) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subscribers)
}

// Filter returns a child Observable that receives only the events for which
// predicate holds. Errors and completion are forwarded unconditionally.
// Completing the child detaches it from o without affecting o.
func (o *Observable) Filter(predicate Predicate) *Observable {
	child := New(o.capacity)
	if o.Completed() {
		child.Complete()
		return child
	}

	unsubscribe := o.Subscribe(
		func(e events.Event) error {
			if predicate(e) {
				child.Emit(e)
			}
			return nil
		},
		child.Error,
		child.Complete,
	)

	child.mu.Lock()
	child.detach = unsubscribe
	child.mu.Unlock()

	return child
}

func callNext(fn NextFunc, event events.Event) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = observability.MustRecover(r)
		}
	}()
	return fn(event)
}

func callError(fn ErrorFunc, err error) {
	if fn == nil {
		return
	}
	defer func() { _ = recover() }()
	fn(err)
}

func callComplete(fn CompleteFunc) {
	if fn == nil {
		return
	}
	defer func() { _ = recover() }()
	fn()
}
