package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/priorauth/internal/domain"
	"github.com/medflow/priorauth/internal/orchestrator"
)

// SubmitTaskRequest is the request body for POST /tasks.
type SubmitTaskRequest struct {
	Name     string          `json:"name"               validate:"required"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Priority *int            `json:"priority,omitempty" validate:"omitempty,min=0,max=9"`
}

// SubmitTaskResponse is the response body for POST /tasks.
type SubmitTaskResponse struct {
	TaskID uuid.UUID `json:"task_id"`
}

// TransitionRequest is the request body for POST /requests/{id}/transitions.
type TransitionRequest struct {
	To       domain.RequestStatus `json:"to"                 validate:"required"`
	Decision json.RawMessage      `json:"decision,omitempty"`
}

// AuthorizationRequestResponse is the representation of a request returned by
// the API.
type AuthorizationRequestResponse struct {
	ID         uuid.UUID            `json:"id"`
	Status     domain.RequestStatus `json:"status"`
	ProviderID uuid.UUID            `json:"provider_id"`
	ReviewerID *uuid.UUID           `json:"reviewer_id,omitempty"`
	Decision   json.RawMessage      `json:"decision,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

func toRequestResponse(req *domain.AuthorizationRequest) AuthorizationRequestResponse {
	return AuthorizationRequestResponse{
		ID:         req.ID,
		Status:     req.Status,
		ProviderID: req.ProviderID,
		ReviewerID: req.ReviewerID,
		Decision:   req.Decision,
		CreatedAt:  req.CreatedAt,
		UpdatedAt:  req.UpdatedAt,
	}
}

// DeadLetterResponse is the representation of a dead letter returned by the
// API.
type DeadLetterResponse struct {
	TaskID   uuid.UUID       `json:"task_id"`
	Name     string          `json:"name"`
	Queue    string          `json:"queue"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Attempts int             `json:"attempts"`
	Reason   string          `json:"reason"`
	FailedAt time.Time       `json:"failed_at"`
}

func toDeadLetterResponse(dl *orchestrator.DeadLetter) DeadLetterResponse {
	return DeadLetterResponse{
		TaskID:   dl.TaskID,
		Name:     dl.Name,
		Queue:    dl.Queue,
		Payload:  dl.Payload,
		Attempts: dl.Attempts,
		Reason:   dl.Reason,
		FailedAt: dl.FailedAt,
	}
}

// NotificationResponse is the representation of a notification returned by
// the API.
type NotificationResponse struct {
	ID        uuid.UUID               `json:"id"`
	Type      domain.NotificationType `json:"type"`
	RequestID *uuid.UUID              `json:"request_id,omitempty"`
	Read      bool                    `json:"read"`
	Metadata  json.RawMessage         `json:"metadata,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

func toNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		RequestID: n.RequestID,
		Read:      n.Read,
		Metadata:  n.Metadata,
		CreatedAt: n.CreatedAt,
	}
}
