package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Priority bounds for tasks. Higher is more urgent.
const (
	MinPriority     = 0
	MaxPriority     = 9
	DefaultPriority = 4
)

// DefaultMaxAttempts is the attempt budget for a task unless the submitter
// overrides it.
const DefaultMaxAttempts = 3

// Task is a unit of asynchronous work: a logical dotted name (for example
// "clinical.match_criteria") plus an opaque payload. The target queue and
// priority are derived by the router, never chosen by the submitter.
type Task struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Queue       string          `json:"queue"`
	Priority    int             `json:"priority"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	Timeout     time.Duration   `json:"timeout"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewTask creates a task with a fresh ID and zero attempts. Queue, priority
// and timeout are filled in by the submitter after routing.
func NewTask(name string, payload json.RawMessage) *Task {
	return &Task{
		ID:          uuid.New(),
		Name:        name,
		Payload:     payload,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   time.Now().UTC(),
	}
}

// Encode serializes the task for transport over the broker.
func (t *Task) Encode() ([]byte, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task %s: %w", t.ID, err)
	}
	return body, nil
}

// DecodeTask deserializes a broker message body into a Task. A body that
// does not decode is a permanently failed message: redelivery cannot fix it.
func DecodeTask(body []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, Permanent(fmt.Errorf("failed to decode task body: %w", err))
	}

	if t.ID == uuid.Nil || t.Name == "" {
		return nil, Permanent(fmt.Errorf("task body missing id or name"))
	}

	return &t, nil
}

// ClampPriority bounds p to the valid [MinPriority, MaxPriority] range.
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}
