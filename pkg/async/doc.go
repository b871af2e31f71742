// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, context cancellation, and draining on shutdown.
//
// # Key Types
//
// SafeGo: Execute a function in a goroutine with panic recovery
//
//	async.SafeGo(ctx, 30*time.Second, "metrics server", logger, func(ctx context.Context) error {
//		return server.ListenAndServe()
//	})
//
// Tracker: Panic-safe goroutines that an owner can wait on
//
//	tracker := async.NewTracker(logger)
//	tracker.Go(ctx, "process delivery", func(ctx context.Context) error {
//		return process(ctx, delivery)
//	})
//
//	// on shutdown
//	if err := tracker.Wait(shutdownCtx); err != nil {
//		logger.Warn("abandoning in-flight work")
//	}
//
// # Features
//
// Panic Recovery: Captures panics with stack traces and logs them
// Timeout Enforcement: Optional per-task timeouts
// Draining: Wait blocks until tracked tasks finish or the context expires
//
// # Related Packages
//
//   - pkg/subscription: Uses Tracker for background delivery processing
//   - pkg/observability: Logger used for task errors and panics
package async
