package orchestrator

import (
	"fmt"
	"sort"
)

// QueueConfig describes a named queue's execution limits. Concurrency bounds
// simultaneously executing tasks; Concurrency × Prefetch bounds in-flight
// unacknowledged deliveries.
type QueueConfig struct {
	Name        string
	Concurrency int
	Prefetch    int
}

// QueueRegistry holds the declared queues. It is built once at startup and
// read-only afterward, so lookups need no synchronization.
type QueueRegistry struct {
	queues map[string]QueueConfig
}

// NewQueueRegistry creates an empty registry.
func NewQueueRegistry() *QueueRegistry {
	return &QueueRegistry{queues: make(map[string]QueueConfig)}
}

// Register declares a queue. Returns ErrQueueExists for a duplicate name and
// ErrInvalidQueueConfig for concurrency or prefetch below 1.
func (r *QueueRegistry) Register(name string, concurrency, prefetch int) error {
	if name == "" {
		return fmt.Errorf("%w: empty queue name", ErrInvalidQueueConfig)
	}

	if concurrency < 1 {
		return fmt.Errorf("%w: queue %q concurrency %d, must be >= 1",
			ErrInvalidQueueConfig, name, concurrency)
	}

	if prefetch < 1 {
		return fmt.Errorf("%w: queue %q prefetch %d, must be >= 1",
			ErrInvalidQueueConfig, name, prefetch)
	}

	if _, ok := r.queues[name]; ok {
		return fmt.Errorf("%w: %q", ErrQueueExists, name)
	}

	r.queues[name] = QueueConfig{Name: name, Concurrency: concurrency, Prefetch: prefetch}

	return nil
}

// Lookup returns the queue descriptor, or ErrUnknownQueue.
func (r *QueueRegistry) Lookup(name string) (QueueConfig, error) {
	cfg, ok := r.queues[name]
	if !ok {
		return QueueConfig{}, fmt.Errorf("%w: %q", ErrUnknownQueue, name)
	}

	return cfg, nil
}

// Names returns the registered queue names in sorted order.
func (r *QueueRegistry) Names() []string {
	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
