package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/priorauth/internal/domain"
	"github.com/medflow/priorauth/internal/orchestrator"
	"github.com/medflow/priorauth/internal/platform/logger"
	"github.com/medflow/priorauth/internal/store"
)

// DeliverTaskName is the task submitted for each created notification. The
// handler behind it performs the actual channel delivery (email, push, etc.).
const DeliverTaskName = "notifications.deliver"

// deliverPriority ranks notification delivery above routine background work.
const deliverPriority = orchestrator.DefaultPriority + 2

// DeliverPayload is the body of a notifications.deliver task.
type DeliverPayload struct {
	NotificationID uuid.UUID               `json:"notification_id"`
	UserID         uuid.UUID               `json:"user_id"`
	Type           domain.NotificationType `json:"type"`
}

// Dispatcher creates notification records and enqueues their delivery.
// Duplicate events for the same (type, user, request) inside the dedup
// window are collapsed to a single notification.
type Dispatcher struct {
	notifications store.NotificationStore
	submitter     orchestrator.Submitter
	dedup         *dedupSet
	logger        *slog.Logger
}

// NewDispatcher creates a dispatcher. A non-positive dedupWindow disables
// duplicate collapsing.
func NewDispatcher(
	notifications store.NotificationStore,
	submitter orchestrator.Submitter,
	dedupWindow time.Duration,
	log *slog.Logger,
) (*Dispatcher, error) {
	if notifications == nil {
		return nil, errors.New("notification store cannot be nil")
	}

	if submitter == nil {
		return nil, errors.New("task submitter cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		notifications: notifications,
		submitter:     submitter,
		dedup:         newDedupSet(dedupWindow),
		logger:        log.With(slog.String("component", "notification_dispatcher")),
	}, nil
}

// Notify records a workflow event for userID and enqueues its delivery.
// Returns the created notification, or nil when the event was collapsed as a
// duplicate. A failure to enqueue delivery does not roll the record back;
// the notification stays listable and the error is returned to the caller.
func (d *Dispatcher) Notify(
	ctx context.Context,
	typ domain.NotificationType,
	userID uuid.UUID,
	requestID *uuid.UUID,
	metadata json.RawMessage,
) (*domain.Notification, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	if !typ.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidNotificationType, typ)
	}

	key := dedupKey(typ, userID, requestID)
	if d.dedup.observe(key) {
		log.Debug("duplicate notification collapsed",
			"type", typ,
			"user_id", userID)
		return nil, nil
	}

	n, err := domain.NewNotification(typ, userID, requestID, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to build notification: %w", err)
	}

	if err := d.notifications.Create(ctx, n); err != nil {
		// Don't let a failed write suppress the caller's retry.
		d.dedup.forget(key)
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}

	payload, err := json.Marshal(DeliverPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode delivery payload: %w", err)
	}

	taskID, err := d.submitter.Submit(ctx, DeliverTaskName, payload,
		orchestrator.WithPriority(deliverPriority))
	if err != nil {
		log.Error("failed to enqueue notification delivery",
			"notification_id", n.ID,
			"error", err)
		return n, fmt.Errorf("failed to enqueue delivery for notification %s: %w", n.ID, err)
	}

	log.Debug("notification dispatched",
		"notification_id", n.ID,
		"type", n.Type,
		"user_id", n.UserID,
		"task_id", taskID)

	return n, nil
}

func dedupKey(typ domain.NotificationType, userID uuid.UUID, requestID *uuid.UUID) string {
	req := ""
	if requestID != nil {
		req = requestID.String()
	}

	return string(typ) + "|" + userID.String() + "|" + req
}
