package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/priorauth/internal/domain"
	"github.com/medflow/priorauth/internal/orchestrator"
	"github.com/medflow/priorauth/internal/store"
)

// Task names handled by this package.
const (
	TaskUpdateRequestStatus = "prior_auth.update_request_status"
	TaskExpireStale         = "prior_auth.expire_stale"
)

// UpdateStatusPayload is the body of a prior_auth.update_request_status task.
type UpdateStatusPayload struct {
	RequestID uuid.UUID            `json:"request_id"`
	To        domain.RequestStatus `json:"to"`
	ActorRole domain.Role          `json:"actor_role"`
	ActorID   uuid.UUID            `json:"actor_id,omitempty"`
	Decision  json.RawMessage      `json:"decision,omitempty"`
}

// UpdateRequestStatusHandler returns the handler driving request transitions
// from the orchestration layer.
//
// Idempotency under at-least-once delivery: a redelivered task whose request
// already sits in the target status succeeds without re-applying effects.
// Malformed payloads and transitions the state machine can never accept are
// permanent failures; a lost optimistic-concurrency race is transient and
// takes the retry path.
func UpdateRequestStatusHandler(svc *Service) orchestrator.Handler {
	return func(ctx context.Context, task *orchestrator.Task) error {
		var p UpdateStatusPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return orchestrator.Permanent(fmt.Errorf("invalid update-status payload: %w", err))
		}

		if p.RequestID == uuid.Nil {
			return orchestrator.Permanent(errors.New("update-status payload missing request_id"))
		}

		if !p.To.IsValid() {
			return orchestrator.Permanent(fmt.Errorf("%w: %q", domain.ErrInvalidStatus, p.To))
		}

		if !p.ActorRole.IsValid() {
			return orchestrator.Permanent(fmt.Errorf("%w: %q", domain.ErrInvalidRole, p.ActorRole))
		}

		req, err := svc.GetRequest(ctx, p.RequestID)
		if err != nil {
			if errors.Is(err, store.ErrRequestNotFound) {
				return orchestrator.Permanent(err)
			}
			return err
		}

		// Redelivery of an already-applied transition.
		if req.Status == p.To {
			return nil
		}

		actor := domain.Actor{ID: p.ActorID, Role: p.ActorRole}

		_, err = svc.Transition(ctx, p.RequestID, p.To, actor, p.Decision)
		switch {
		case err == nil:
			return nil

		case errors.Is(err, domain.ErrInvalidTransition),
			errors.Is(err, domain.ErrUnauthorizedTransition),
			errors.Is(err, store.ErrRequestNotFound):
			// Retrying cannot make these valid.
			return orchestrator.Permanent(err)

		default:
			// Includes store.ErrConcurrentModification: the request moved
			// under us, the retried task re-reads and re-decides.
			return err
		}
	}
}

// ExpireStaleConfig parameterizes the periodic expiry sweep.
type ExpireStaleConfig struct {
	// Deadline is how long a request may sit in PENDING_INFO before expiry.
	Deadline time.Duration

	// BatchSize bounds how many requests one sweep expires.
	BatchSize int
}

// ExpireStaleHandler returns the handler behind the prior_auth.expire_stale
// schedule entry. Each run expires at most cfg.BatchSize requests; the next
// run picks up the remainder, so a large backlog never monopolizes a worker.
func ExpireStaleHandler(svc *Service, cfg ExpireStaleConfig) orchestrator.Handler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	return func(ctx context.Context, _ *orchestrator.Task) error {
		_, err := svc.ExpireStale(ctx, cfg.Deadline, cfg.BatchSize)
		return err
	}
}
