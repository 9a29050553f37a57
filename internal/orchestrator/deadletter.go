package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeadLetter is the terminal record of a task that exhausted its retries or
// failed permanently. It retains the full original payload and last failure
// reason: the only durable audit trail this layer guarantees for failed work.
// Dead letters are a strictly terminal sink; nothing re-routes them back into
// a work queue.
type DeadLetter struct {
	TaskID uuid.UUID `json:"task_id"`
	Name   string    `json:"name"`
	Queue  string    `json:"queue"`

	// Payload is never nil: a task without a payload dead-letters with an
	// empty one, so stores can enforce NOT NULL on the column.
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
	Reason   string          `json:"reason"`
	FailedAt time.Time       `json:"failed_at"`
}

// NewDeadLetter builds the dead-letter record for a failed task.
func NewDeadLetter(task *Task, reason string) *DeadLetter {
	payload := task.Payload
	if payload == nil {
		payload = json.RawMessage{}
	}

	return &DeadLetter{
		TaskID:   task.ID,
		Name:     task.Name,
		Queue:    task.Queue,
		Payload:  payload,
		Attempts: task.Attempt,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	}
}

// DeadLetterStore persists dead letters for manual inspection. Implemented
// by the postgres platform layer.
type DeadLetterStore interface {
	// Save persists the dead letter. Saving the same task id twice must not
	// fail: redelivery can dead-letter a task that a crashed worker already
	// recorded.
	Save(ctx context.Context, dl *DeadLetter) error

	// GetByTaskID retrieves a dead letter by the failed task's id.
	// Returns store.ErrDeadLetterNotFound if none exists.
	GetByTaskID(ctx context.Context, taskID uuid.UUID) (*DeadLetter, error)

	// List returns the most recent dead letters, newest first.
	List(ctx context.Context, limit int) ([]*DeadLetter, error)
}
