// Package subscription runs a local webhook receiver for the Zeal Integration
// Protocol and fans inbound events out to callbacks.
//
// # Overview
//
// A Manager owns one HTTP listener. The remote service pushes deliveries to it:
// JSON batches of events with a webhook id and delivery metadata. For each
// request the manager:
//
//  1. Reads the body and, when VerifySignature is set, checks the
//     X-Zeal-Signature header (401 on failure)
//  2. Parses the delivery (500 on failure)
//  3. Responds 200 and continues in the background
//  4. Runs every delivery callback, then decodes each event in array order,
//     emits it to the Observable, and runs every event callback
//
// Every non-fatal failure (bad signature, bad body, undecodable event, failing
// callback, registration error) goes through one error channel: OnError
// callbacks first, then the Observable's Error. Each report is also logged at
// WARN.
//
// # Lifecycle
//
//	m := subscription.New(registrar, subscription.DefaultOptions())
//	m.OnEventType([]string{"node.added"}, func(e events.Event) error {
//		fmt.Println(e.(*events.NodeAddedEvent).NodeID)
//		return nil
//	})
//	if err := m.Start(ctx); err != nil {
//		return err
//	}
//	defer m.Stop(context.Background())
//
// Start binds the listener and, with AutoRegister, asks the Registrar to
// create a registration pointing at URL(). Stop deletes that registration on a
// best-effort basis, releases the listener, waits for in-flight deliveries up
// to ShutdownTimeout, and completes the Observable. Start on a running manager
// returns ErrAlreadyRunning; Stop on a stopped one does nothing.
//
// # Delivery Dedupe
//
// With DedupeWindow > 0 the manager remembers accepted delivery ids and
// acknowledges repeats without dispatching them. MemoryDedupe is used by
// default; RedisDedupe shares ids between replicas.
//
// # Related Packages
//
//   - pkg/events: Event model and decoder
//   - pkg/observable: Event stream returned by AsObservable
//   - pkg/signature: Delivery signature verification
//   - pkg/client: REST client providing a Registrar
package subscription
