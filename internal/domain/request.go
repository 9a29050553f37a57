package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Validation errors for AuthorizationRequest.
var (
	ErrEmptyRequestID  = errors.New("request ID cannot be empty")
	ErrEmptyProviderID = errors.New("request provider ID cannot be empty")
)

// AuthorizationRequest represents a prior-authorization request moving through
// the review workflow. Its status is mutated only via Transition; once a
// terminal status is reached the record is immutable, except for the
// DENIED→APPEALED escape.
type AuthorizationRequest struct {
	ID         uuid.UUID       `json:"id"`
	Status     RequestStatus   `json:"status"`
	ProviderID uuid.UUID       `json:"provider_id"`
	ReviewerID *uuid.UUID      `json:"reviewer_id,omitempty"`
	Decision   json.RawMessage `json:"decision,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewAuthorizationRequest creates a request in DRAFT for the given provider.
func NewAuthorizationRequest(providerID uuid.UUID) (*AuthorizationRequest, error) {
	req := &AuthorizationRequest{
		ID:         uuid.New(),
		Status:     StatusDraft,
		ProviderID: providerID,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return req, nil
}

// Validate checks structural invariants of the request.
func (r *AuthorizationRequest) Validate() error {
	if r.ID == uuid.Nil {
		return ErrEmptyRequestID
	}

	if r.ProviderID == uuid.Nil {
		return ErrEmptyProviderID
	}

	if !r.Status.IsValid() {
		return ErrInvalidStatus
	}

	return nil
}

// Transition applies the status change to to, performed by actor. It returns
// ErrInvalidTransition if the (current, to) pair is not in the allowed table,
// or ErrUnauthorizedTransition if the actor's role lacks permission. On
// success the status and UpdatedAt are updated in place; a decision payload
// supplied for APPROVED/DENIED is stored on the record.
func (r *AuthorizationRequest) Transition(to RequestStatus, actor Actor, decision json.RawMessage) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}

	if !r.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, r.Status, to)
	}

	if !RoleMayTransition(actor.Role, r.Status, to) {
		return fmt.Errorf("%w: role %s may not perform %s → %s",
			ErrUnauthorizedTransition, actor.Role, r.Status, to)
	}

	r.Status = to
	r.UpdatedAt = time.Now().UTC()

	// A reviewer claiming or deciding the request becomes its reviewer of
	// record.
	if actor.Role == RoleReviewer {
		id := actor.ID
		r.ReviewerID = &id
	}

	if decision != nil && (to == StatusApproved || to == StatusDenied) {
		r.Decision = decision
	}

	return nil
}
