package broker

import (
	"context"
	"errors"
	"time"
)

// Common broker errors.
var (
	// ErrQueueNotDeclared is returned when publishing to or consuming from a
	// queue that was never declared on this broker.
	ErrQueueNotDeclared = errors.New("queue not declared")

	// ErrBrokerClosed is returned for operations on a closed broker.
	ErrBrokerClosed = errors.New("broker is closed")

	// ErrAlreadySettled is returned when a delivery is acknowledged or
	// rejected more than once.
	ErrAlreadySettled = errors.New("delivery already settled")
)

// PublishOptions control how a message is published.
type PublishOptions struct {
	// Priority orders messages within a queue: 0–9, higher first.
	Priority int

	// Delay defers the message's availability for consumption. Used for
	// retry backoff.
	Delay time.Duration
}

// Delivery is a single message handed to a consumer. Exactly one of Ack or
// Nack must be called; a delivery left unsettled is redelivered after the
// broker's visibility timeout.
type Delivery interface {
	// Body returns the message payload.
	Body() []byte

	// Redelivered reports whether this message was delivered before.
	Redelivered() bool

	// Ack acknowledges successful processing, removing the message.
	Ack() error

	// Nack rejects the message, requeueing it for redelivery after the given
	// delay.
	Nack(delay time.Duration) error
}

// Broker is the queue transport the orchestration layer depends on.
// Delivery semantics are at-least-once: consumers must tolerate duplicates.
type Broker interface {
	// Declare creates the named queue if it does not exist. Idempotent.
	Declare(ctx context.Context, queue string) error

	// Publish enqueues body on the named queue.
	Publish(ctx context.Context, queue string, body []byte, opts PublishOptions) error

	// Consume starts delivering messages from the named queue. At most
	// prefetch deliveries are held unacknowledged at once. The channel is
	// closed when ctx is cancelled or the broker shuts down.
	Consume(ctx context.Context, queue string, prefetch int) (<-chan Delivery, error)

	// Close shuts the broker down, closing all consumer channels.
	Close() error
}
