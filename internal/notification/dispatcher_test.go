package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/priorauth/internal/domain"
	"github.com/medflow/priorauth/internal/orchestrator"
	"github.com/medflow/priorauth/internal/store"
)

type fakeNotificationStore struct {
	mu        sync.Mutex
	created   []*domain.Notification
	createErr error
}

func (f *fakeNotificationStore) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}

	f.created = append(f.created, n)

	return nil
}

func (f *fakeNotificationStore) ListByUser(
	_ context.Context, userID uuid.UUID, unreadOnly bool, limit int,
) ([]*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*domain.Notification
	for _, n := range f.created {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out, nil
}

func (f *fakeNotificationStore) MarkRead(_ context.Context, id, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, n := range f.created {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}

	return store.ErrNotificationNotFound
}

func (f *fakeNotificationStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var kept []*domain.Notification
	var deleted int64
	for _, n := range f.created {
		if n.ExpiresAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	f.created = kept

	return deleted, nil
}

func (f *fakeNotificationStore) WithTx(_ *sql.Tx) store.NotificationStore { return f }

func (f *fakeNotificationStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.created)
}

type fakeSubmitter struct {
	mu        sync.Mutex
	names     []string
	payloads  []json.RawMessage
	priority  *int
	submitErr error
}

func (f *fakeSubmitter) Submit(
	_ context.Context, name string, payload json.RawMessage, opts ...orchestrator.SubmitOption,
) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitErr != nil {
		return uuid.Nil, f.submitErr
	}

	f.names = append(f.names, name)
	f.payloads = append(f.payloads, payload)

	return uuid.New(), nil
}

func (f *fakeSubmitter) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.names))
	copy(out, f.names)

	return out
}

func TestDispatcherCreatesAndEnqueues(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationStore{}
	sub := &fakeSubmitter{}
	d, err := NewDispatcher(notifications, sub, time.Minute, nil)
	require.NoError(t, err)

	userID := uuid.New()
	requestID := uuid.New()

	n, err := d.Notify(context.Background(), domain.NotificationReviewAssigned,
		userID, &requestID, json.RawMessage(`{"request_status":"IN_REVIEW"}`))
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.Equal(t, domain.NotificationReviewAssigned, n.Type)
	assert.Equal(t, userID, n.UserID)
	assert.Equal(t, 1, notifications.count())

	require.Equal(t, []string{DeliverTaskName}, sub.submitted())

	var payload DeliverPayload
	require.NoError(t, json.Unmarshal(sub.payloads[0], &payload))
	assert.Equal(t, n.ID, payload.NotificationID)
	assert.Equal(t, userID, payload.UserID)
}

func TestDispatcherCollapsesDuplicates(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationStore{}
	sub := &fakeSubmitter{}
	d, err := NewDispatcher(notifications, sub, time.Minute, nil)
	require.NoError(t, err)

	userID := uuid.New()
	requestID := uuid.New()

	first, err := d.Notify(context.Background(), domain.NotificationInfoRequested,
		userID, &requestID, nil)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := d.Notify(context.Background(), domain.NotificationInfoRequested,
		userID, &requestID, nil)
	require.NoError(t, err)
	assert.Nil(t, second, "duplicate inside the window collapses")

	assert.Equal(t, 1, notifications.count())
	assert.Len(t, sub.submitted(), 1)
}

func TestDispatcherDedupIsPerTypeUserRequest(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationStore{}
	sub := &fakeSubmitter{}
	d, err := NewDispatcher(notifications, sub, time.Minute, nil)
	require.NoError(t, err)

	userID := uuid.New()
	requestA := uuid.New()
	requestB := uuid.New()

	_, err = d.Notify(context.Background(), domain.NotificationRequestApproved, userID, &requestA, nil)
	require.NoError(t, err)

	// Different request, different type: both are fresh events.
	n, err := d.Notify(context.Background(), domain.NotificationRequestApproved, userID, &requestB, nil)
	require.NoError(t, err)
	assert.NotNil(t, n)

	n, err = d.Notify(context.Background(), domain.NotificationRequestDenied, userID, &requestA, nil)
	require.NoError(t, err)
	assert.NotNil(t, n)

	assert.Equal(t, 3, notifications.count())
}

func TestDispatcherWindowExpires(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationStore{}
	sub := &fakeSubmitter{}
	d, err := NewDispatcher(notifications, sub, 20*time.Millisecond, nil)
	require.NoError(t, err)

	userID := uuid.New()
	requestID := uuid.New()

	_, err = d.Notify(context.Background(), domain.NotificationRequestExpired, userID, &requestID, nil)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	n, err := d.Notify(context.Background(), domain.NotificationRequestExpired, userID, &requestID, nil)
	require.NoError(t, err)
	assert.NotNil(t, n, "same event outside the window is fresh")
	assert.Equal(t, 2, notifications.count())
}

func TestDispatcherRejectsUnknownType(t *testing.T) {
	t.Parallel()

	d, err := NewDispatcher(&fakeNotificationStore{}, &fakeSubmitter{}, time.Minute, nil)
	require.NoError(t, err)

	_, err = d.Notify(context.Background(), "SOMETHING_ELSE", uuid.New(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidNotificationType)
}

func TestDispatcherKeepsRecordWhenEnqueueFails(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationStore{}
	sub := &fakeSubmitter{submitErr: errors.New("broker down")}
	d, err := NewDispatcher(notifications, sub, time.Minute, nil)
	require.NoError(t, err)

	n, err := d.Notify(context.Background(), domain.NotificationRequestSubmitted,
		uuid.New(), nil, nil)
	require.Error(t, err)
	assert.NotNil(t, n, "persisted record is returned even when enqueue fails")
	assert.Equal(t, 1, notifications.count())
}

func TestDispatcherPropagatesStoreError(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationStore{createErr: errors.New("db down")}
	sub := &fakeSubmitter{}
	d, err := NewDispatcher(notifications, sub, time.Minute, nil)
	require.NoError(t, err)

	_, err = d.Notify(context.Background(), domain.NotificationRequestSubmitted,
		uuid.New(), nil, nil)
	assert.Error(t, err)
	assert.Empty(t, sub.submitted())
}
