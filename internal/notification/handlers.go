package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/priorauth/internal/orchestrator"
	"github.com/medflow/priorauth/internal/platform/logger"
	"github.com/medflow/priorauth/internal/store"
)

// PurgeTaskName is the periodic task that removes expired notifications.
const PurgeTaskName = "notifications.purge_expired"

// Deliverer pushes a notification to its user over an external channel.
// Delivery must be idempotent per notification id: the deliver task is
// at-least-once and a redelivery must not page the user twice.
type Deliverer interface {
	Deliver(ctx context.Context, payload DeliverPayload) error
}

// LogDeliverer is the default delivery channel: it records the delivery in
// the structured log. Real channels (email, push) plug in behind the same
// interface.
type LogDeliverer struct{}

// Deliver logs the notification delivery.
func (LogDeliverer) Deliver(ctx context.Context, payload DeliverPayload) error {
	logger.FromContext(ctx).Info("notification delivered",
		"notification_id", payload.NotificationID,
		"user_id", payload.UserID,
		"type", payload.Type)

	return nil
}

// DeliverHandler returns the handler behind notifications.deliver tasks.
// A payload that cannot identify a notification is permanent; a failing
// delivery channel is transient and retried.
func DeliverHandler(d Deliverer) orchestrator.Handler {
	return func(ctx context.Context, task *orchestrator.Task) error {
		var payload DeliverPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return orchestrator.Permanent(fmt.Errorf("invalid deliver payload: %w", err))
		}

		if payload.NotificationID == uuid.Nil || payload.UserID == uuid.Nil {
			return orchestrator.Permanent(
				fmt.Errorf("deliver payload missing notification or user id"))
		}

		return d.Deliver(ctx, payload)
	}
}

// PurgeExpiredHandler returns the handler behind the periodic
// notifications.purge_expired schedule entry.
func PurgeExpiredHandler(notifications store.NotificationStore) orchestrator.Handler {
	return func(ctx context.Context, _ *orchestrator.Task) error {
		deleted, err := notifications.DeleteExpired(ctx, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to purge expired notifications: %w", err)
		}

		if deleted > 0 {
			logger.FromContext(ctx).Info("purged expired notifications", "count", deleted)
		}

		return nil
	}
}
