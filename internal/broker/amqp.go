package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// maxPriority is the RabbitMQ per-queue priority ceiling we declare,
// matching the task model's 0–9 range.
const maxPriority = 9

// delayQueueSuffix names the companion queue used for delayed delivery.
// Messages published there carry a per-message TTL and dead-letter back into
// the work queue when it expires.
const delayQueueSuffix = ".delay"

// AMQPBroker is a RabbitMQ-backed Broker using rabbitmq/amqp091-go.
// Each declared work queue gets a companion delay queue whose dead-letter
// target is the work queue, implementing Publish with a Delay and
// Nack-with-delay without any broker plugins.
type AMQPBroker struct {
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	mu     sync.Mutex
	logger *slog.Logger
	closed bool
}

// NewAMQPBroker dials the given AMQP URL and opens a publishing channel in
// confirm mode so publishes are not silently dropped.
func NewAMQPBroker(url string, logger *slog.Logger) (*AMQPBroker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial amqp broker: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}

	if err := pubCh.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return &AMQPBroker{
		conn:   conn,
		pubCh:  pubCh,
		logger: logger.With(slog.String("component", "amqp_broker")),
	}, nil
}

// Ensure AMQPBroker implements Broker.
var _ Broker = (*AMQPBroker)(nil)

// Declare creates the durable work queue and its companion delay queue.
func (b *AMQPBroker) Declare(_ context.Context, queue string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}

	_, err := b.pubCh.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		amqp.Table{"x-max-priority": int32(maxPriority)},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", queue, err)
	}

	_, err = b.pubCh.QueueDeclare(
		queue+delayQueueSuffix,
		true,
		false,
		false,
		false,
		amqp.Table{
			// Expired messages route back to the work queue via the default
			// exchange.
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": queue,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare delay queue for %q: %w", queue, err)
	}

	return nil
}

// Publish sends body to the named queue. A positive Delay routes through the
// companion delay queue with a per-message TTL.
func (b *AMQPBroker) Publish(
	ctx context.Context,
	queue string,
	body []byte,
	opts PublishOptions,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}

	target := queue
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     clampPriority(opts.Priority),
		Body:         body,
		Timestamp:    time.Now().UTC(),
	}

	if opts.Delay > 0 {
		target = queue + delayQueueSuffix
		publishing.Expiration = strconv.FormatInt(opts.Delay.Milliseconds(), 10)
	}

	confirm, err := b.pubCh.PublishWithDeferredConfirmWithContext(
		ctx,
		"", // default exchange
		target,
		false, // mandatory
		false, // immediate
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %q: %w", target, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for publish confirm on %q: %w", target, err)
	}
	if !acked {
		return fmt.Errorf("broker rejected publish to %q", target)
	}

	return nil
}

// Consume opens a dedicated channel with Qos(prefetch) and adapts its
// deliveries. The returned channel closes when ctx is cancelled or the
// connection drops.
func (b *AMQPBroker) Consume(
	ctx context.Context,
	queue string,
	prefetch int,
) (<-chan Delivery, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	b.mu.Unlock()

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consume channel: %w", err)
	}

	if prefetch < 1 {
		prefetch = 1
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(
		queue,
		"",    // consumer tag, server-generated
		false, // autoAck: explicit ack only
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to consume from %q: %w", queue, err)
	}

	out := make(chan Delivery)

	go func() {
		defer close(out)
		defer func() { _ = ch.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				wrapped := &amqpDelivery{delivery: d, broker: b, queue: queue}

				select {
				case out <- wrapped:
				case <-ctx.Done():
					// Return the unprocessed message to the queue.
					_ = d.Nack(false, true)
					return
				}
			}
		}
	}()

	return out, nil
}

// Close shuts down the connection, which closes all channels and consumers.
func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	b.logger.Info("amqp broker closing")

	return b.conn.Close()
}

// amqpDelivery adapts amqp.Delivery to the Delivery interface.
type amqpDelivery struct {
	delivery amqp.Delivery
	broker   *AMQPBroker
	queue    string
	mu       sync.Mutex
	settled  bool
}

// Body returns the message payload.
func (d *amqpDelivery) Body() []byte { return d.delivery.Body }

// Redelivered reports the broker's redelivery flag.
func (d *amqpDelivery) Redelivered() bool { return d.delivery.Redelivered }

// Ack acknowledges the delivery.
func (d *amqpDelivery) Ack() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.settled {
		return ErrAlreadySettled
	}
	d.settled = true

	return d.delivery.Ack(false)
}

// Nack rejects the delivery. Without a delay the message is requeued in
// place; with one it is republished through the delay queue and the original
// acknowledged, since AMQP has no native delayed requeue.
func (d *amqpDelivery) Nack(delay time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.settled {
		return ErrAlreadySettled
	}
	d.settled = true

	if delay <= 0 {
		return d.delivery.Nack(false, true)
	}

	err := d.broker.Publish(context.Background(), d.queue, d.delivery.Body, PublishOptions{
		Priority: int(d.delivery.Priority),
		Delay:    delay,
	})
	if err != nil {
		// Publish failed; requeue immediately rather than losing the message.
		return d.delivery.Nack(false, true)
	}

	return d.delivery.Ack(false)
}

func clampPriority(p int) uint8 {
	if p < 0 {
		return 0
	}
	if p > maxPriority {
		return maxPriority
	}

	return uint8(p)
}
