// internal/interaction/driver.go
package interaction

import (
	"context"
	"errors"
)

// Driver is the capability set the engine needs from a browser automation library.
// Implementations must bound every call by the deadline carried on ctx.
type Driver interface {
	// Query returns the first element matching loc that is present and visible.
	// It waits at most until ctx is done and returns ErrNoMatch when nothing
	// matched in time, or ErrInvalidLocator when loc cannot be evaluated.
	Query(ctx context.Context, loc Locator) (Element, error)

	// Visible reports without waiting whether loc currently matches a visible element.
	Visible(ctx context.Context, loc Locator) (bool, error)

	// Evaluate runs a read-only expression against the live document and returns
	// its JSON-compatible result.
	Evaluate(ctx context.Context, expression string) (any, error)
}

// Element is a live handle on a DOM node. Handles are only valid for the duration of
// a single orchestrated call.
type Element interface {
	// Describe returns a short human readable description for diagnostics.
	Describe() string

	// Invoke applies the action through the driver's native input pipeline. When
	// opts.Force is set the driver skips its actionability checks.
	Invoke(ctx context.Context, action Action, opts InvokeOptions) error

	// Dispatch applies the action by dispatching synthetic DOM events directly on
	// the node, bypassing the input pipeline entirely.
	Dispatch(ctx context.Context, action Action) error
}

// InvokeOptions tunes a native invocation.
type InvokeOptions struct {
	Force bool
}

var (
	// ErrNoMatch indicates that a locator matched no visible element in time.
	ErrNoMatch = errors.New("no visible element matched")

	// ErrInvalidLocator indicates that the locator could not be evaluated against the current document.
	ErrInvalidLocator = errors.New("locator is invalid in the current document")

	// ErrStaleElement indicates that the element reference is no longer valid,
	// likely due to a page navigation or DOM modification.
	ErrStaleElement = errors.New("element is stale or detached from the document")

	// ErrObscured indicates that another element would receive the input.
	ErrObscured = errors.New("element is obscured by another element")

	// ErrDriverUnavailable marks infrastructure failures (closed session, crashed
	// browser). These are never folded into an Outcome.
	ErrDriverUnavailable = errors.New("browser driver unavailable")
)

// IsInfrastructure reports whether err must propagate instead of being recorded as
// a strategy or rung failure. parent is the caller's context; its cancellation always
// propagates, while a step's own timeout does not.
func IsInfrastructure(parent context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDriverUnavailable) {
		return true
	}
	return parent.Err() != nil
}
