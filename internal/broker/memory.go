package broker

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultVisibilityTimeout is how long the memory broker waits for a delivery
// to be settled before redelivering it.
const DefaultVisibilityTimeout = 30 * time.Second

// MemoryBroker is a channel-and-heap backed Broker for tests and local
// development. It honors message priority, delayed publication and a
// visibility timeout, so the executor pool behaves the same against it as
// against RabbitMQ.
type MemoryBroker struct {
	mu         sync.Mutex
	queues     map[string]*memoryQueue
	visibility time.Duration
	logger     *slog.Logger
	closed     bool
}

// NewMemoryBroker creates a MemoryBroker. A non-positive visibility falls
// back to DefaultVisibilityTimeout.
func NewMemoryBroker(visibility time.Duration, logger *slog.Logger) *MemoryBroker {
	if visibility <= 0 {
		visibility = DefaultVisibilityTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &MemoryBroker{
		queues:     make(map[string]*memoryQueue),
		visibility: visibility,
		logger:     logger.With(slog.String("component", "memory_broker")),
	}
}

// Ensure MemoryBroker implements Broker.
var _ Broker = (*MemoryBroker)(nil)

// Declare creates the named queue if it does not exist.
func (b *MemoryBroker) Declare(_ context.Context, queue string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}

	if _, ok := b.queues[queue]; !ok {
		b.queues[queue] = newMemoryQueue()
	}

	return nil
}

// Publish enqueues body on the named queue, honoring priority and delay.
func (b *MemoryBroker) Publish(
	ctx context.Context,
	queue string,
	body []byte,
	opts PublishOptions,
) error {
	q, err := b.lookup(queue)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &queuedMessage{body: body, priority: opts.Priority}

	if opts.Delay > 0 {
		time.AfterFunc(opts.Delay, func() { q.push(msg) })
		return nil
	}

	q.push(msg)

	return nil
}

// Consume starts a pump goroutine delivering messages from the named queue.
// The returned channel is buffered to prefetch, bounding the number of
// handed-over, not-yet-settled deliveries.
func (b *MemoryBroker) Consume(
	ctx context.Context,
	queue string,
	prefetch int,
) (<-chan Delivery, error) {
	q, err := b.lookup(queue)
	if err != nil {
		return nil, err
	}

	if prefetch < 1 {
		prefetch = 1
	}

	out := make(chan Delivery, prefetch)

	// Wake the pump when the consumer's context ends.
	go func() {
		<-ctx.Done()
		q.wake()
	}()

	go func() {
		defer close(out)

		for {
			msg, ok := q.pop(ctx)
			if !ok {
				return
			}

			d := &memoryDelivery{msg: msg, queue: q}
			d.timer = time.AfterFunc(b.visibility, d.expire)

			select {
			case out <- d:
			case <-ctx.Done():
				// Hand the message back rather than losing it.
				d.expire()
				return
			}
		}
	}()

	return out, nil
}

// Close shuts down all queues, waking any blocked consumers.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, q := range b.queues {
		q.close()
	}

	b.logger.Info("memory broker closed")

	return nil
}

func (b *MemoryBroker) lookup(queue string) (*memoryQueue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	q, ok := b.queues[queue]
	if !ok {
		return nil, ErrQueueNotDeclared
	}

	return q, nil
}

// queuedMessage is a message waiting in a memory queue. seq preserves
// insertion order among equal priorities.
type queuedMessage struct {
	body        []byte
	priority    int
	seq         uint64
	redelivered bool
}

// memoryQueue is a priority-ordered message buffer with blocking pop.
type memoryQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  messageHeap
	seq    uint64
	closed bool
}

func newMemoryQueue() *memoryQueue {
	q := &memoryQueue{}
	q.cond = sync.NewCond(&q.mu)

	return q
}

func (q *memoryQueue) push(msg *queuedMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.seq++
	msg.seq = q.seq
	heap.Push(&q.items, msg)
	q.cond.Signal()
}

// pop blocks until a message is available, the queue closes, or ctx ends.
func (q *memoryQueue) pop(ctx context.Context) (*queuedMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.closed || ctx.Err() != nil {
			return nil, false
		}
		q.cond.Wait()
	}

	if q.closed || ctx.Err() != nil {
		return nil, false
	}

	return heap.Pop(&q.items).(*queuedMessage), true
}

func (q *memoryQueue) wake() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *memoryQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// memoryDelivery is a single handed-out message. Settlement is one-shot; the
// visibility timer requeues the message if neither Ack nor Nack arrives.
type memoryDelivery struct {
	msg     *queuedMessage
	queue   *memoryQueue
	timer   *time.Timer
	mu      sync.Mutex
	settled bool
}

// Body returns the message payload.
func (d *memoryDelivery) Body() []byte { return d.msg.body }

// Redelivered reports whether this message was delivered before.
func (d *memoryDelivery) Redelivered() bool { return d.msg.redelivered }

// Ack acknowledges the delivery, removing the message for good.
func (d *memoryDelivery) Ack() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.settled {
		return ErrAlreadySettled
	}
	d.settled = true
	d.timer.Stop()

	return nil
}

// Nack rejects the delivery and requeues the message after delay, marked
// redelivered.
func (d *memoryDelivery) Nack(delay time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.settled {
		return ErrAlreadySettled
	}
	d.settled = true
	d.timer.Stop()

	d.requeue(delay)

	return nil
}

// expire fires on visibility timeout: an unsettled delivery goes back on the
// queue, simulating broker redelivery after a consumer crash.
func (d *memoryDelivery) expire() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.settled {
		return
	}
	d.settled = true

	d.requeue(0)
}

func (d *memoryDelivery) requeue(delay time.Duration) {
	msg := &queuedMessage{
		body:        d.msg.body,
		priority:    d.msg.priority,
		redelivered: true,
	}

	if delay > 0 {
		time.AfterFunc(delay, func() { d.queue.push(msg) })
		return
	}

	d.queue.push(msg)
}

// messageHeap orders messages by priority (higher first), then insertion
// order.
type messageHeap []*queuedMessage

func (h messageHeap) Len() int { return len(h) }

func (h messageHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *messageHeap) Push(x any) { *h = append(*h, x.(*queuedMessage)) }

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	msg := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return msg
}
