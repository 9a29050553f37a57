package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/priorauth/internal/broker"
)

// Submitter is the task submission interface consumed by the API layer and
// by internal collaborators (scheduler, workflow service, dispatcher).
type Submitter interface {
	// Submit routes and publishes a task, returning its id.
	// Returns ErrUnroutableTask when no routing rule matches name.
	Submit(ctx context.Context, name string, payload json.RawMessage, opts ...SubmitOption) (uuid.UUID, error)
}

// SubmitOption customizes a single submission.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	priority    *int
	maxAttempts int
	delay       time.Duration
	queue       string
}

// WithPriority overrides the route's default priority (clamped to 0–9).
func WithPriority(p int) SubmitOption {
	return func(o *submitOptions) {
		clamped := ClampPriority(p)
		o.priority = &clamped
	}
}

// WithMaxAttempts overrides the task's attempt budget.
func WithMaxAttempts(n int) SubmitOption {
	return func(o *submitOptions) {
		if n >= 1 {
			o.maxAttempts = n
		}
	}
}

// WithDelay defers the task's first delivery.
func WithDelay(d time.Duration) SubmitOption {
	return func(o *submitOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithQueue overrides the routed queue. Used by the scheduler for entries
// carrying an explicit queue override; the queue must still be registered.
func WithQueue(queue string) SubmitOption {
	return func(o *submitOptions) {
		o.queue = queue
	}
}

// TaskSubmitter routes tasks and publishes them to the broker. It is the
// single submission path: on-demand, scheduled and retried tasks all flow
// through the same router.
type TaskSubmitter struct {
	router      *Router
	registry    *QueueRegistry
	broker      broker.Broker
	maxAttempts int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewTaskSubmitter creates a submitter. maxAttempts and timeout are the
// defaults stamped onto tasks that don't override them.
func NewTaskSubmitter(
	router *Router,
	registry *QueueRegistry,
	b broker.Broker,
	maxAttempts int,
	timeout time.Duration,
	logger *slog.Logger,
) *TaskSubmitter {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskSubmitter{
		router:      router,
		registry:    registry,
		broker:      b,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		logger:      logger.With(slog.String("component", "task_submitter")),
	}
}

// Ensure TaskSubmitter implements Submitter.
var _ Submitter = (*TaskSubmitter)(nil)

// Submit routes name, builds the task and publishes it. The target queue is
// derived, never submitter-chosen (the scheduler's queue override is still
// validated against the registry).
func (s *TaskSubmitter) Submit(
	ctx context.Context,
	name string,
	payload json.RawMessage,
	opts ...SubmitOption,
) (uuid.UUID, error) {
	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}

	route, err := s.router.Route(name)
	if err != nil {
		return uuid.Nil, err
	}

	queue := route.Queue
	if o.queue != "" {
		queue = o.queue
	}

	if _, err := s.registry.Lookup(queue); err != nil {
		return uuid.Nil, err
	}

	task := NewTask(name, payload)
	task.Queue = queue
	task.Priority = route.Priority
	if o.priority != nil {
		task.Priority = *o.priority
	}
	task.MaxAttempts = s.maxAttempts
	if o.maxAttempts >= 1 {
		task.MaxAttempts = o.maxAttempts
	}
	task.Timeout = s.timeout

	body, err := task.Encode()
	if err != nil {
		return uuid.Nil, err
	}

	err = s.broker.Publish(ctx, queue, body, broker.PublishOptions{
		Priority: task.Priority,
		Delay:    o.delay,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to publish task %q: %w", name, err)
	}

	s.logger.Debug("task submitted",
		"task_id", task.ID,
		"task_name", name,
		"queue", queue,
		"priority", task.Priority)

	return task.ID, nil
}
