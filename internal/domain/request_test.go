package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewAuthorizationRequest(t *testing.T) {
	t.Parallel()

	providerID := uuid.New()

	req, err := NewAuthorizationRequest(providerID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if req.ID == uuid.Nil {
		t.Error("expected non-nil request ID")
	}
	if req.Status != StatusDraft {
		t.Errorf("expected initial status %s, got %s", StatusDraft, req.Status)
	}
	if req.ProviderID != providerID {
		t.Errorf("expected provider ID %s, got %s", providerID, req.ProviderID)
	}
	if req.ReviewerID != nil {
		t.Error("expected no reviewer on a new request")
	}
	if req.CreatedAt.IsZero() || req.UpdatedAt.IsZero() {
		t.Error("expected non-zero timestamps")
	}

	// Missing provider fails validation.
	if _, err := NewAuthorizationRequest(uuid.Nil); !errors.Is(err, ErrEmptyProviderID) {
		t.Errorf("expected ErrEmptyProviderID, got %v", err)
	}
}

func TestTransitionValid(t *testing.T) {
	t.Parallel()

	req, err := NewAuthorizationRequest(uuid.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	provider := Actor{ID: req.ProviderID, Role: RoleProvider}
	reviewer := Actor{ID: uuid.New(), Role: RoleReviewer}

	if err := req.Transition(StatusSubmitted, provider, nil); err != nil {
		t.Fatalf("DRAFT→SUBMITTED by provider: %v", err)
	}
	if err := req.Transition(StatusInReview, reviewer, nil); err != nil {
		t.Fatalf("SUBMITTED→IN_REVIEW by reviewer: %v", err)
	}
	if req.ReviewerID == nil || *req.ReviewerID != reviewer.ID {
		t.Error("expected reviewer of record to be set on claim")
	}

	decision := json.RawMessage(`{"criteria_met": true}`)
	if err := req.Transition(StatusApproved, reviewer, decision); err != nil {
		t.Fatalf("IN_REVIEW→APPROVED by reviewer: %v", err)
	}
	if string(req.Decision) != string(decision) {
		t.Errorf("expected decision payload to be stored, got %s", req.Decision)
	}
	if req.Status != StatusApproved {
		t.Errorf("expected status %s, got %s", StatusApproved, req.Status)
	}
}

func TestTransitionInvalidPair(t *testing.T) {
	t.Parallel()

	req, err := NewAuthorizationRequest(uuid.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	admin := Actor{ID: uuid.New(), Role: RoleAdmin}

	err = req.Transition(StatusApproved, admin, nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("DRAFT→APPROVED: expected ErrInvalidTransition, got %v", err)
	}
	if req.Status != StatusDraft {
		t.Errorf("failed transition must not mutate status, got %s", req.Status)
	}
}

func TestTransitionUnauthorizedRole(t *testing.T) {
	t.Parallel()

	req, err := NewAuthorizationRequest(uuid.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	req.Status = StatusSubmitted

	provider := Actor{ID: req.ProviderID, Role: RoleProvider}

	// SUBMITTED→IN_REVIEW is reviewer-only.
	err = req.Transition(StatusInReview, provider, nil)
	if !errors.Is(err, ErrUnauthorizedTransition) {
		t.Errorf("expected ErrUnauthorizedTransition, got %v", err)
	}
	if req.Status != StatusSubmitted {
		t.Errorf("failed transition must not mutate status, got %s", req.Status)
	}
}

func TestTransitionAppealFlow(t *testing.T) {
	t.Parallel()

	req, err := NewAuthorizationRequest(uuid.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	req.Status = StatusDenied

	provider := Actor{ID: req.ProviderID, Role: RoleProvider}
	reviewer := Actor{ID: uuid.New(), Role: RoleReviewer}

	if err := req.Transition(StatusAppealed, provider, nil); err != nil {
		t.Fatalf("DENIED→APPEALED by provider: %v", err)
	}
	if err := req.Transition(StatusApproved, reviewer, nil); err != nil {
		t.Fatalf("APPEALED→APPROVED by reviewer: %v", err)
	}

	// DENIED admits no cancellation.
	req.Status = StatusDenied
	err = req.Transition(StatusCancelled, provider, nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("DENIED→CANCELLED: expected ErrInvalidTransition, got %v", err)
	}
}

func TestRoleMayTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		role Role
		from RequestStatus
		to   RequestStatus
		want bool
	}{
		{"reviewer approves", RoleReviewer, StatusInReview, StatusApproved, true},
		{"provider approves", RoleProvider, StatusInReview, StatusApproved, false},
		{"provider submits", RoleProvider, StatusDraft, StatusSubmitted, true},
		{"reviewer submits", RoleReviewer, StatusDraft, StatusSubmitted, false},
		{"provider appeals", RoleProvider, StatusDenied, StatusAppealed, true},
		{"system expires", RoleSystem, StatusPendingInfo, StatusExpired, true},
		{"provider expires", RoleProvider, StatusPendingInfo, StatusExpired, false},
		{"admin anywhere", RoleAdmin, StatusAppealed, StatusDenied, true},
		{"provider resumes review", RoleProvider, StatusPendingInfo, StatusInReview, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := RoleMayTransition(tt.role, tt.from, tt.to); got != tt.want {
				t.Errorf("RoleMayTransition(%s, %s→%s) = %v, want %v",
					tt.role, tt.from, tt.to, got, tt.want)
			}
		})
	}
}
