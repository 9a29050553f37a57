package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies the workflow event a notification describes.
type NotificationType string

// Notification event types, one per user-visible workflow transition.
const (
	NotificationRequestSubmitted NotificationType = "REQUEST_SUBMITTED"
	NotificationReviewAssigned   NotificationType = "REVIEW_ASSIGNED"
	NotificationInfoRequested    NotificationType = "INFO_REQUESTED"
	NotificationRequestApproved  NotificationType = "REQUEST_APPROVED"
	NotificationRequestDenied    NotificationType = "REQUEST_DENIED"
	NotificationRequestCancelled NotificationType = "REQUEST_CANCELLED"
	NotificationRequestExpired   NotificationType = "REQUEST_EXPIRED"
	NotificationRequestAppealed  NotificationType = "REQUEST_APPEALED"
)

// Validation errors for Notification.
var (
	ErrEmptyNotificationID     = errors.New("notification ID cannot be empty")
	ErrEmptyNotificationUserID = errors.New("notification user ID cannot be empty")
)

// DefaultNotificationTTL is how long a notification remains visible before it
// is eligible for the periodic purge.
const DefaultNotificationTTL = 30 * 24 * time.Hour

// Notification is a user-facing record of a workflow event. It is owned by
// the user it targets and created exclusively by the notification dispatcher;
// after creation only the read flag may change.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	Type      NotificationType `json:"type"`
	UserID    uuid.UUID        `json:"user_id"`
	RequestID *uuid.UUID       `json:"request_id,omitempty"`
	Read      bool             `json:"read"`
	Metadata  json.RawMessage  `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// IsValid reports whether t is one of the known notification types.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationRequestSubmitted, NotificationReviewAssigned,
		NotificationInfoRequested, NotificationRequestApproved,
		NotificationRequestDenied, NotificationRequestCancelled,
		NotificationRequestExpired, NotificationRequestAppealed:
		return true
	default:
		return false
	}
}

// NewNotification creates a notification targeting userID. requestID may be
// nil for notifications not tied to a specific request.
func NewNotification(
	typ NotificationType,
	userID uuid.UUID,
	requestID *uuid.UUID,
	metadata json.RawMessage,
) (*Notification, error) {
	n := &Notification{
		ID:        uuid.New(),
		Type:      typ,
		UserID:    userID,
		RequestID: requestID,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(DefaultNotificationTTL),
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}

	return n, nil
}

// Validate checks structural invariants of the notification.
func (n *Notification) Validate() error {
	if n.ID == uuid.Nil {
		return ErrEmptyNotificationID
	}

	if n.UserID == uuid.Nil {
		return ErrEmptyNotificationUserID
	}

	if !n.Type.IsValid() {
		return ErrInvalidNotificationType
	}

	return nil
}

// NotificationTypeForTransition maps a completed transition to the
// notification type announcing it. The second return is false for transitions
// that do not notify (none today, but the mapping is explicit so a missing
// entry is detectable).
func NotificationTypeForTransition(to RequestStatus) (NotificationType, bool) {
	switch to {
	case StatusSubmitted:
		return NotificationRequestSubmitted, true
	case StatusInReview:
		return NotificationReviewAssigned, true
	case StatusPendingInfo:
		return NotificationInfoRequested, true
	case StatusApproved:
		return NotificationRequestApproved, true
	case StatusDenied:
		return NotificationRequestDenied, true
	case StatusCancelled:
		return NotificationRequestCancelled, true
	case StatusExpired:
		return NotificationRequestExpired, true
	case StatusAppealed:
		return NotificationRequestAppealed, true
	default:
		return "", false
	}
}
