package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/priorauth/internal/domain"
)

// NotificationStore defines the persistence interface for notifications.
// Notifications are created once and only the read flag changes afterward.
type NotificationStore interface {
	// Create saves a new notification.
	Create(ctx context.Context, n *domain.Notification) error

	// ListByUser returns the user's notifications, newest first. When
	// unreadOnly is set, read notifications are filtered out.
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) (
		[]*domain.Notification, error)

	// MarkRead sets the read flag on a notification owned by userID.
	// Returns ErrNotificationNotFound if the notification does not exist or
	// belongs to a different user.
	MarkRead(ctx context.Context, id, userID uuid.UUID) error

	// DeleteExpired removes notifications whose expiry is before the given
	// time, returning the number deleted.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)

	// WithTx returns a store instance bound to the provided transaction.
	WithTx(tx *sql.Tx) NotificationStore
}
