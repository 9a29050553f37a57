package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/priorauth/internal/domain"
	"github.com/medflow/priorauth/internal/platform/logger"
	"github.com/medflow/priorauth/internal/store"
)

// Notifier dispatches a user-facing notification for a workflow event.
// Implemented by notification.Dispatcher.
type Notifier interface {
	Notify(
		ctx context.Context,
		typ domain.NotificationType,
		userID uuid.UUID,
		requestID *uuid.UUID,
		metadata json.RawMessage,
	) (*domain.Notification, error)
}

// Service applies authorization-request state transitions. Every transition
// is guarded by the domain state machine (valid pair + role) and persisted
// with an optimistic status check, so two concurrent transitions of the same
// request cannot both win.
type Service struct {
	requests store.RequestStore
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates the workflow service. notifier may not be nil; callers
// that do not want notifications should pass a no-op implementation.
func NewService(requests store.RequestStore, notifier Notifier, log *slog.Logger) (*Service, error) {
	if requests == nil {
		return nil, errors.New("request store cannot be nil")
	}

	if notifier == nil {
		return nil, errors.New("notifier cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Service{
		requests: requests,
		notifier: notifier,
		logger:   log.With(slog.String("component", "workflow_service")),
	}, nil
}

// CreateRequest opens a new authorization request in DRAFT for the provider.
func (s *Service) CreateRequest(ctx context.Context, providerID uuid.UUID) (*domain.AuthorizationRequest, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	req, err := domain.NewAuthorizationRequest(providerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	log.Info("authorization request created",
		"request_id", req.ID,
		"provider_id", providerID)

	return req, nil
}

// GetRequest retrieves a request by id.
func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*domain.AuthorizationRequest, error) {
	return s.requests.GetByID(ctx, id)
}

// Transition moves the request to the target status as actor. The persisted
// update is conditioned on the status the request was read at; a concurrent
// transition surfaces as store.ErrConcurrentModification, which the
// task-driven path treats as transient and retries.
//
// decision is stored on the request for APPROVED/DENIED outcomes and ignored
// otherwise. The notification announcing the transition is dispatched after
// the update commits; a dispatch failure does not undo the transition.
func (s *Service) Transition(
	ctx context.Context,
	requestID uuid.UUID,
	to domain.RequestStatus,
	actor domain.Actor,
	decision json.RawMessage,
) (*domain.AuthorizationRequest, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	expected := req.Status

	if err := req.Transition(to, actor, decision); err != nil {
		return nil, err
	}

	if err := s.requests.Update(ctx, req, expected); err != nil {
		return nil, err
	}

	log.Info("request transitioned",
		"request_id", requestID,
		"from", expected,
		"to", to,
		"actor_role", actor.Role)

	s.notifyTransition(ctx, req, to, log)

	return req, nil
}

// notifyTransition dispatches the notification announcing a completed
// transition to the request's provider. Best effort: the transition already
// committed, so a dispatch failure is logged and swallowed; the dedup
// window prevents duplicates if the same transition is redelivered.
func (s *Service) notifyTransition(
	ctx context.Context,
	req *domain.AuthorizationRequest,
	to domain.RequestStatus,
	log *slog.Logger,
) {
	typ, ok := domain.NotificationTypeForTransition(to)
	if !ok {
		return
	}

	metadata, err := json.Marshal(map[string]string{"status": string(to)})
	if err != nil {
		log.Error("failed to encode notification metadata", "error", err)
		return
	}

	requestID := req.ID
	if _, err := s.notifier.Notify(ctx, typ, req.ProviderID, &requestID, metadata); err != nil {
		log.Error("failed to dispatch transition notification",
			"request_id", req.ID,
			"type", typ,
			"error", err)
	}
}

// ExpireStale moves PENDING_INFO requests that have been waiting longer than
// olderThan to EXPIRED, acting as the system. Requests that another actor
// moves concurrently are skipped. Returns the number expired.
func (s *Service) ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	stale, err := s.requests.ListStalePendingInfo(ctx, olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale requests: %w", err)
	}

	system := domain.Actor{Role: domain.RoleSystem}

	expired := 0
	for _, req := range stale {
		_, err := s.Transition(ctx, req.ID, domain.StatusExpired, system, nil)
		switch {
		case err == nil:
			expired++

		case errors.Is(err, store.ErrConcurrentModification),
			errors.Is(err, domain.ErrInvalidTransition):
			// Moved by someone else between listing and expiry; nothing to do.
			log.Debug("skipping concurrently moved request", "request_id", req.ID)

		default:
			return expired, fmt.Errorf("failed to expire request %s: %w", req.ID, err)
		}
	}

	if expired > 0 {
		log.Info("expired stale requests", "count", expired)
	}

	return expired, nil
}
