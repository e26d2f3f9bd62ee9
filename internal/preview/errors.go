package preview

import (
	"context"
	"errors"
)

// Terminal per-request failures. Each is local to one request, never
// retried by this subsystem, and surfaces as an error Outcome rather
// than a crash. Wrap them with fmt.Errorf("...: %w", err) so errors.Is
// keeps working through call sites.
var (
	// ErrTimeout means the total wall-clock duration from fetch start
	// exceeded the configured timeout.
	ErrTimeout = errors.New("preview: fetch timed out")
	// ErrTransport covers connection, DNS, TLS, redirect, and
	// unexpected-status failures.
	ErrTransport = errors.New("preview: transport failure")
	// ErrTooLarge means the response body exceeded the applicable byte
	// cap mid-stream.
	ErrTooLarge = errors.New("preview: response exceeds byte cap")
	// ErrCancelled means the caller withdrew interest before the fetch
	// resolved.
	ErrCancelled = errors.New("preview: request cancelled")
)

// ErrClass is the coarse error grouping used for metric and event labels.
type ErrClass string

// Error classes matching the terminal taxonomy. ClassNone labels
// successful outcomes.
const (
	ClassNone      ErrClass = "none"
	ClassTimeout   ErrClass = "timeout"
	ClassTransport ErrClass = "transport"
	ClassTooLarge  ErrClass = "too_large"
	ClassCancelled ErrClass = "cancelled"
)

// ClassifyError maps an arbitrary error onto the taxonomy. Bare context
// errors are recognized so cancellation and deadline expiry classify
// correctly even when a call site forgot to wrap them.
func ClassifyError(err error) ErrClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case errors.Is(err, ErrTooLarge):
		return ClassTooLarge
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return ClassCancelled
	default:
		return ClassTransport
	}
}
