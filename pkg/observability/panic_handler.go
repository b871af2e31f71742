package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with its stack. It must be
// called directly by a deferred statement:
//
//	defer observability.RecoverPanic(logger, "background task")
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logPanic(logger, context, r)
	}
}

// RecoverPanicWithCallback is RecoverPanic followed by onPanic, which runs
// only when a panic was recovered. Use it to write an error response or
// release resources the panicking code held.
func RecoverPanicWithCallback(logger *Logger, context string, onPanic func(recovered interface{})) {
	if r := recover(); r != nil {
		logPanic(logger, context, r)
		if onPanic != nil {
			onPanic(r)
		}
	}
}

func logPanic(logger *Logger, context string, r interface{}) {
	logger.WithField("panic", fmt.Sprint(r)).
		WithField("stack", string(debug.Stack())).
		WithField("context", context).
		Error("PANIC recovered")
}

// MustRecover converts a recovered panic value to an error, or nil when r is nil.
// The stack trace is not included; use RecoverPanic when it matters.
//
//	defer func() {
//	    if r := recover(); r != nil {
//	        err = observability.MustRecover(r)
//	    }
//	}()
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
