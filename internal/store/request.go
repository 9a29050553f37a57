package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/priorauth/internal/domain"
)

// RequestStore defines the persistence interface for authorization requests.
type RequestStore interface {
	// Create saves a new authorization request.
	// Returns ErrDuplicate if a request with the same ID already exists.
	Create(ctx context.Context, req *domain.AuthorizationRequest) error

	// GetByID retrieves a request by its unique ID.
	// Returns ErrRequestNotFound if no request exists with the given ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AuthorizationRequest, error)

	// Update persists the request, conditioned on its stored status still
	// matching expectedStatus. Returns ErrConcurrentModification if the
	// status no longer matches, ErrRequestNotFound if the row is gone.
	Update(
		ctx context.Context,
		req *domain.AuthorizationRequest,
		expectedStatus domain.RequestStatus,
	) error

	// ListStalePendingInfo returns requests that have sat in PENDING_INFO
	// without update for longer than the given interval. Used by the
	// scheduler-driven expiry task.
	ListStalePendingInfo(ctx context.Context, olderThan time.Duration, limit int) (
		[]*domain.AuthorizationRequest, error)

	// WithTx returns a store instance bound to the provided transaction.
	WithTx(tx *sql.Tx) RequestStore
}
