package async

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/platinummonkey/zeal/pkg/observability"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Optional timeout enforcement (timeout <= 0 disables it)
// - Error logging
//
// Use this instead of bare `go func()` to prevent goroutine crashes.
//
// Example:
//
//	SafeGo(ctx, 0, "metrics server", logger, func(ctx context.Context) error {
//	    return srv.ListenAndServe()
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context) error) {
	go run(parentCtx, timeout, taskName, loggerOrDefault(logger), fn)
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, logger, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

func run(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context) error) {
	ctx := parentCtx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parentCtx, timeout)
		defer cancel()
	}

	defer observability.RecoverPanic(logger.WithField("task", taskName), "background task")

	if err := fn(ctx); err != nil {
		// Log error but don't crash
		logger.WithField("task", taskName).WithError(err).Warn("background task failed")
	}
}

func loggerOrDefault(logger *observability.Logger) *observability.Logger {
	if logger == nil {
		return observability.NewLogger(observability.InfoLevel, os.Stderr)
	}
	return logger
}

// Tracker runs panic-safe goroutines and lets its owner wait for them to finish.
// Go may be called concurrently with Wait.
type Tracker struct {
	logger *observability.Logger

	mu     sync.Mutex
	active int
	idle   chan struct{} // closed when active drops to zero
}

// NewTracker creates a Tracker. A nil logger logs to stderr.
func NewTracker(logger *observability.Logger) *Tracker {
	return &Tracker{logger: loggerOrDefault(logger)}
}

// Go runs fn in a tracked goroutine. Errors and panics are logged.
func (t *Tracker) Go(ctx context.Context, taskName string, fn func(context.Context) error) {
	t.mu.Lock()
	if t.active == 0 {
		t.idle = make(chan struct{})
	}
	t.active++
	t.mu.Unlock()

	go func() {
		defer t.done()
		run(ctx, 0, taskName, t.logger, fn)
	}()
}

func (t *Tracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active--
	if t.active == 0 {
		close(t.idle)
	}
}

// Active returns the number of tasks still running
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Wait blocks until every tracked task has returned or ctx is done.
// It returns ctx.Err() when it gives up waiting.
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	if t.active == 0 {
		t.mu.Unlock()
		return nil
	}
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
