package orchestrator

import (
	"context"
	"fmt"
)

// Handler executes a single task. Handlers MUST be idempotent: delivery is
// at-least-once, so the same task id may be executed more than once, and
// repeated execution must not double-apply side effects. A handler returning
// an error wrapped with Permanent dead-letters the task immediately.
type Handler func(ctx context.Context, task *Task) error

// HandlerRegistry is the explicit table mapping task names to handlers.
// It is built at startup and validated against the configured routes and
// schedule; there is no implicit discovery.
type HandlerRegistry struct {
	handlers map[string]Handler
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a task name.
func (r *HandlerRegistry) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("%w: name and handler must be non-empty", ErrNoHandler)
	}

	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, name)
	}

	r.handlers[name] = h

	return nil
}

// Lookup returns the handler for a task name, or ErrNoHandler.
func (r *HandlerRegistry) Lookup(name string) (Handler, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoHandler, name)
	}

	return h, nil
}

// ValidateNames checks at startup that every given task name (typically the
// schedule's entries) resolves to a registered handler, so a missing handler
// surfaces as a boot failure instead of a runtime dead letter.
func (r *HandlerRegistry) ValidateNames(names []string) error {
	for _, name := range names {
		if _, err := r.Lookup(name); err != nil {
			return err
		}
	}

	return nil
}
