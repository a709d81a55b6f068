// internal/browser/session/context_utils.go
package session

import (
	"context"
	"errors"
)

// CombineContext derives a context from ctx1 (the tab context, which carries the CDP
// connection values) that is also canceled when ctx2 (the operational context) is done.
// When ctx2 has a deadline the combined context adopts it, so an operation that runs
// out of time reports context.DeadlineExceeded instead of a bare cancellation.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	var combinedCtx context.Context
	var cancel context.CancelFunc
	deadline, hasDeadline := ctx2.Deadline()
	if hasDeadline {
		combinedCtx, cancel = context.WithDeadline(ctx1, deadline)
	} else {
		combinedCtx, cancel = context.WithCancel(ctx1)
	}

	// The goroutine stops when either context is done.
	go func() {
		select {
		case <-ctx2.Done():
			// The combined context carries the same deadline and expires on its own.
			if hasDeadline && errors.Is(ctx2.Err(), context.DeadlineExceeded) {
				return
			}
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
