package orchestrator

import (
	"errors"
	"fmt"
)

// Configuration errors. These indicate a wiring bug and are never retried.
var (
	// ErrQueueExists is returned when registering a queue name twice.
	ErrQueueExists = errors.New("queue already registered")

	// ErrInvalidQueueConfig is returned for a concurrency or prefetch < 1.
	ErrInvalidQueueConfig = errors.New("invalid queue configuration")

	// ErrUnknownQueue is returned when looking up a queue that was never
	// registered.
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrUnroutableTask is returned when no routing rule matches a task name.
	// This is a configuration bug, not a retryable condition; submission must
	// not silently fall back to a default queue.
	ErrUnroutableTask = errors.New("no route for task name")

	// ErrDuplicateRoute is returned when registering the same pattern twice.
	ErrDuplicateRoute = errors.New("route pattern already registered")

	// ErrNoHandler is returned when no handler is registered for a task name.
	ErrNoHandler = errors.New("no handler registered for task name")

	// ErrDuplicateHandler is returned when registering a handler name twice.
	ErrDuplicateHandler = errors.New("handler already registered")
)

// permanentError marks a failure that retrying cannot fix: malformed payload,
// business-rule violation inside a handler. Such tasks go straight to the
// dead-letter store regardless of remaining attempts.
type permanentError struct {
	err error
}

// Error implements the error interface.
func (e *permanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps err so the retry manager dead-letters the task immediately
// instead of retrying. Wrapping nil returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked with
// Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
