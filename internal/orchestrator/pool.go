package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/priorauth/internal/broker"
	"github.com/medflow/priorauth/internal/platform/logger"
)

// ExecutorPool runs one queue's tasks: up to Concurrency workers pulling from
// a broker consumer bounded to Concurrency × Prefetch unacknowledged
// deliveries. Failures never crash a worker; every handler error resolves to
// a retry or a dead letter through the RetryManager.
type ExecutorPool struct {
	queue       QueueConfig
	broker      broker.Broker
	handlers    *HandlerRegistry
	retry       *RetryManager
	deadLetters DeadLetterStore
	timeout     time.Duration
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewExecutorPool creates a pool for one registered queue. timeout is the
// fallback execution budget for tasks that carry none.
func NewExecutorPool(
	queue QueueConfig,
	b broker.Broker,
	handlers *HandlerRegistry,
	retry *RetryManager,
	deadLetters DeadLetterStore,
	timeout time.Duration,
	log *slog.Logger,
) *ExecutorPool {
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &ExecutorPool{
		queue:       queue,
		broker:      b,
		handlers:    handlers,
		retry:       retry,
		deadLetters: deadLetters,
		timeout:     timeout,
		logger: log.With(
			slog.String("component", "executor_pool"),
			slog.String("queue", queue.Name)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start opens the broker consumer and launches the workers.
func (p *ExecutorPool) Start() error {
	deliveries, err := p.broker.Consume(p.ctx, p.queue.Name, p.queue.Concurrency*p.queue.Prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consumer for queue %q: %w", p.queue.Name, err)
	}

	for i := 0; i < p.queue.Concurrency; i++ {
		p.wg.Add(1)
		go p.worker(i, deliveries)
	}

	p.logger.Info("executor pool started",
		"concurrency", p.queue.Concurrency,
		"prefetch", p.queue.Prefetch)

	return nil
}

// Stop cancels the consumer and waits for in-flight tasks to finish.
func (p *ExecutorPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("executor pool stopped")
}

// worker processes deliveries until the consumer channel closes.
func (p *ExecutorPool) worker(id int, deliveries <-chan broker.Delivery) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for d := range deliveries {
		p.process(d, id)
	}

	p.logger.Debug("stopping worker", "worker_id", id)
}

// process executes a single delivery end to end: decode, run the handler
// under its timeout, then settle the delivery according to the outcome.
func (p *ExecutorPool) process(d broker.Delivery, workerID int) {
	task, err := DecodeTask(d.Body())
	if err != nil {
		// Undecodable messages can't be retried meaningfully; record what we
		// have and drop them from the queue.
		p.logger.Error("discarding undecodable message", "error", err, "worker_id", workerID)
		p.deadLetterRaw(d, err)
		return
	}

	log := p.logger.With(
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.Name),
		slog.Int("worker_id", workerID),
		slog.Int("attempt", task.Attempt))

	log.Info("processing task")

	execErr := p.execute(task, log)
	if execErr == nil {
		if err := d.Ack(); err != nil {
			log.Error("failed to acknowledge task", "error", err)
		} else {
			log.Info("task completed")
		}
		return
	}

	p.resolveFailure(task, execErr, d, log)
}

// execute runs the task's handler under its execution budget. A missing
// handler is permanent; exceeding the budget is transient and takes the
// normal retry path.
func (p *ExecutorPool) execute(task *Task, log *slog.Logger) error {
	handler, err := p.handlers.Lookup(task.Name)
	if err != nil {
		return Permanent(err)
	}

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}

	ctx := logger.WithLogger(p.ctx, log)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := handler(ctx, task); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("task exceeded execution budget of %s: %w", timeout, err)
		}
		return err
	}

	return nil
}

// resolveFailure applies the retry manager's decision. A retried task is
// republished with its advanced attempt counter and backoff delay, then the
// original delivery is acknowledged; if republishing fails the delivery is
// nacked so the broker redelivers it. A dead-lettered task is persisted
// before acknowledgement; if persistence fails the delivery is nacked with a
// backoff rather than silently dropped.
func (p *ExecutorPool) resolveFailure(task *Task, execErr error, d broker.Delivery, log *slog.Logger) {
	action := p.retry.OnFailure(task, execErr)

	switch action.Kind {
	case ActionRetry:
		log.Warn("task failed, retrying",
			"error", execErr,
			"next_attempt", task.Attempt+1,
			"delay", action.Delay)

		body, err := task.Encode()
		if err == nil {
			err = p.broker.Publish(p.ctx, task.Queue, body, broker.PublishOptions{
				Priority: task.Priority,
				Delay:    action.Delay,
			})
		}
		if err != nil {
			log.Error("failed to republish task for retry, requeueing delivery", "error", err)
			if nackErr := d.Nack(action.Delay); nackErr != nil {
				log.Error("failed to requeue delivery", "error", nackErr)
			}
			return
		}

		if err := d.Ack(); err != nil {
			log.Error("failed to acknowledge retried task", "error", err)
		}

	case ActionDeadLetter:
		log.Error("task dead-lettered",
			"error", execErr,
			"attempts", task.Attempt,
			"reason", action.Reason)

		dl := NewDeadLetter(task, action.Reason)
		if err := p.deadLetters.Save(p.ctx, dl); err != nil {
			// Back off before redelivery so a store outage does not turn
			// into a hot requeue loop.
			log.Error("failed to persist dead letter, requeueing delivery", "error", err)
			if nackErr := d.Nack(p.retry.RequeueDelay()); nackErr != nil {
				log.Error("failed to requeue delivery", "error", nackErr)
			}
			return
		}

		if err := d.Ack(); err != nil {
			log.Error("failed to acknowledge dead-lettered task", "error", err)
		}
	}
}

// deadLetterRaw records a message that never decoded into a task. There is
// no task id to key on, so the record carries only the raw payload.
func (p *ExecutorPool) deadLetterRaw(d broker.Delivery, decodeErr error) {
	body := d.Body()
	if body == nil {
		body = []byte{}
	}

	dl := &DeadLetter{
		TaskID:   uuid.New(), // no decodable id; key the record on a fresh one
		Queue:    p.queue.Name,
		Payload:  body,
		Reason:   decodeErr.Error(),
		FailedAt: time.Now().UTC(),
	}

	if err := p.deadLetters.Save(p.ctx, dl); err != nil {
		p.logger.Error("failed to persist undecodable message", "error", err)
	}

	if err := d.Ack(); err != nil {
		p.logger.Error("failed to acknowledge undecodable message", "error", err)
	}
}
