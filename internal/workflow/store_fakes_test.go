package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/priorauth/internal/domain"
	"github.com/medflow/priorauth/internal/store"
)

// fakeRequestStore is an in-memory RequestStore honoring the optimistic
// status check, for exercising the service without a database.
type fakeRequestStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*domain.AuthorizationRequest

	getErr    error
	updateErr error
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{requests: make(map[uuid.UUID]*domain.AuthorizationRequest)}
}

func (f *fakeRequestStore) Create(_ context.Context, req *domain.AuthorizationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.requests[req.ID]; ok {
		return store.ErrDuplicate
	}

	f.requests[req.ID] = cloneRequest(req)

	return nil
}

func (f *fakeRequestStore) GetByID(_ context.Context, id uuid.UUID) (*domain.AuthorizationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	req, ok := f.requests[id]
	if !ok {
		return nil, store.ErrRequestNotFound
	}

	return cloneRequest(req), nil
}

func (f *fakeRequestStore) Update(
	_ context.Context,
	req *domain.AuthorizationRequest,
	expectedStatus domain.RequestStatus,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}

	current, ok := f.requests[req.ID]
	if !ok {
		return store.ErrRequestNotFound
	}

	if current.Status != expectedStatus {
		return store.ErrConcurrentModification
	}

	f.requests[req.ID] = cloneRequest(req)

	return nil
}

func (f *fakeRequestStore) ListStalePendingInfo(
	_ context.Context, olderThan time.Duration, limit int,
) ([]*domain.AuthorizationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)

	var out []*domain.AuthorizationRequest
	for _, req := range f.requests {
		if req.Status != domain.StatusPendingInfo || !req.UpdatedAt.Before(cutoff) {
			continue
		}
		out = append(out, cloneRequest(req))
		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out, nil
}

func (f *fakeRequestStore) WithTx(_ *sql.Tx) store.RequestStore { return f }

// put installs a request directly, bypassing Create's duplicate check.
func (f *fakeRequestStore) put(req *domain.AuthorizationRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests[req.ID] = cloneRequest(req)
}

func (f *fakeRequestStore) statusOf(id uuid.UUID) domain.RequestStatus {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.requests[id].Status
}

func cloneRequest(req *domain.AuthorizationRequest) *domain.AuthorizationRequest {
	c := *req
	if req.ReviewerID != nil {
		id := *req.ReviewerID
		c.ReviewerID = &id
	}

	return &c
}

// recordedNotify captures a single Notifier.Notify call.
type recordedNotify struct {
	typ       domain.NotificationType
	userID    uuid.UUID
	requestID *uuid.UUID
}

// fakeNotifier records dispatched notifications.
type fakeNotifier struct {
	mu        sync.Mutex
	notified  []recordedNotify
	notifyErr error
}

func (f *fakeNotifier) Notify(
	_ context.Context,
	typ domain.NotificationType,
	userID uuid.UUID,
	requestID *uuid.UUID,
	_ json.RawMessage,
) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.notifyErr != nil {
		return nil, f.notifyErr
	}

	f.notified = append(f.notified, recordedNotify{typ: typ, userID: userID, requestID: requestID})

	n, err := domain.NewNotification(typ, userID, requestID, nil)
	if err != nil {
		return nil, err
	}

	return n, nil
}

func (f *fakeNotifier) recorded() []recordedNotify {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]recordedNotify, len(f.notified))
	copy(out, f.notified)

	return out
}
