package runner

import "errors"

// Sentinel errors for runner failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrPanic indicates the traversal goroutine panicked. The panic value
	// is part of the wrapped message.
	ErrPanic = errors.New("runner: traversal panicked")

	// ErrNoResult indicates a traversal returned a nil result.
	ErrNoResult = errors.New("runner: traversal returned no result")
)
