// Package observable provides the in-process publish/subscribe hub that fans
// decoded webhook events out to subscribers.
//
// # Overview
//
// An Observable holds an ordered list of subscriber entries. Each entry has a
// next handler and optional error and completion handlers. Emit, Error, and
// Complete iterate a snapshot of the list taken when they are called, so
// subscribing or unsubscribing from inside a handler never affects the fan-out
// already in progress.
//
// Complete is terminal: it runs completion handlers exactly once, clears the
// subscriber list, and turns every later Emit and Error into a no-op.
//
// # Usage Example
//
//	obs := observable.New(1000)
//	unsubscribe := obs.Subscribe(
//		func(e events.Event) error {
//			fmt.Println(e.EventType())
//			return nil
//		},
//		func(err error) { log.Println(err) },
//		nil,
//	)
//	defer unsubscribe()
//
//	nodes := obs.Filter(func(e events.Event) bool {
//		return events.IsNodeEvent(e.EventType().String())
//	})
//
// # Error Handling
//
// An error returned by a next handler, or a panic inside it, is delivered to the
// same subscriber's error handler and never to other subscribers. Panics in
// error and completion handlers are recovered and dropped.
//
// # Related Packages
//
//   - pkg/events: Event types delivered through the Observable
//   - pkg/subscription: Owns an Observable per running receiver
package observable
