package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/priorauth/internal/api/shared"
	"github.com/medflow/priorauth/internal/domain"
	"github.com/medflow/priorauth/internal/orchestrator"
	"github.com/medflow/priorauth/internal/store"
	"github.com/medflow/priorauth/internal/workflow"
)

// --- fakes ---

type fakeSubmitter struct {
	mu        sync.Mutex
	lastName  string
	submitErr error
}

func (f *fakeSubmitter) Submit(
	_ context.Context, name string, _ json.RawMessage, _ ...orchestrator.SubmitOption,
) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitErr != nil {
		return uuid.Nil, f.submitErr
	}

	f.lastName = name

	return uuid.New(), nil
}

type fakeDeadLetterStore struct {
	records map[uuid.UUID]*orchestrator.DeadLetter
}

func (f *fakeDeadLetterStore) Save(_ context.Context, dl *orchestrator.DeadLetter) error {
	f.records[dl.TaskID] = dl
	return nil
}

func (f *fakeDeadLetterStore) GetByTaskID(_ context.Context, taskID uuid.UUID) (*orchestrator.DeadLetter, error) {
	dl, ok := f.records[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrDeadLetterNotFound, taskID)
	}
	return dl, nil
}

func (f *fakeDeadLetterStore) List(_ context.Context, limit int) ([]*orchestrator.DeadLetter, error) {
	out := make([]*orchestrator.DeadLetter, 0, len(f.records))
	for _, dl := range f.records {
		out = append(out, dl)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeRequestStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*domain.AuthorizationRequest
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{requests: make(map[uuid.UUID]*domain.AuthorizationRequest)}
}

func (f *fakeRequestStore) Create(_ context.Context, req *domain.AuthorizationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := *req
	f.requests[req.ID] = &c

	return nil
}

func (f *fakeRequestStore) GetByID(_ context.Context, id uuid.UUID) (*domain.AuthorizationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req, ok := f.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrRequestNotFound, id)
	}

	c := *req

	return &c, nil
}

func (f *fakeRequestStore) Update(
	_ context.Context, req *domain.AuthorizationRequest, expectedStatus domain.RequestStatus,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.requests[req.ID]
	if !ok {
		return store.ErrRequestNotFound
	}

	if current.Status != expectedStatus {
		return store.ErrConcurrentModification
	}

	c := *req
	f.requests[req.ID] = &c

	return nil
}

func (f *fakeRequestStore) ListStalePendingInfo(
	_ context.Context, _ time.Duration, _ int,
) ([]*domain.AuthorizationRequest, error) {
	return nil, nil
}

func (f *fakeRequestStore) WithTx(_ *sql.Tx) store.RequestStore { return f }

type fakeNotificationStore struct {
	mu      sync.Mutex
	created []*domain.Notification
}

func (f *fakeNotificationStore) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

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
		if n.UserID != userID || (unreadOnly && n.Read) {
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

func (f *fakeNotificationStore) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationStore) WithTx(_ *sql.Tx) store.NotificationStore { return f }

type noopNotifier struct{}

func (noopNotifier) Notify(
	_ context.Context,
	typ domain.NotificationType,
	userID uuid.UUID,
	requestID *uuid.UUID,
	metadata json.RawMessage,
) (*domain.Notification, error) {
	return domain.NewNotification(typ, userID, requestID, metadata)
}

// --- harness ---

type apiHarness struct {
	router        chi.Router
	requests      *fakeRequestStore
	notifications *fakeNotificationStore
	submitter     *fakeSubmitter
	deadLetters   *fakeDeadLetterStore
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	requests := newFakeRequestStore()
	notifications := &fakeNotificationStore{}
	submitter := &fakeSubmitter{}
	deadLetters := &fakeDeadLetterStore{records: make(map[uuid.UUID]*orchestrator.DeadLetter)}

	wf, err := workflow.NewService(requests, noopNotifier{}, nil)
	require.NoError(t, err)

	taskHandler := NewTaskHandler(submitter, deadLetters, nil)
	requestHandler := NewRequestHandler(wf, nil)
	notificationHandler := NewNotificationHandler(notifications, nil)

	r := chi.NewRouter()
	r.Post("/tasks", taskHandler.SubmitTask)
	r.Get("/dead-letters", taskHandler.ListDeadLetters)
	r.Get("/dead-letters/{taskID}", taskHandler.GetDeadLetter)
	r.Post("/requests", requestHandler.CreateRequest)
	r.Get("/requests/{id}", requestHandler.GetRequest)
	r.Post("/requests/{id}/transitions", requestHandler.Transition)
	r.Get("/notifications", notificationHandler.ListNotifications)
	r.Post("/notifications/{id}/read", notificationHandler.MarkRead)

	return &apiHarness{
		router:        r,
		requests:      requests,
		notifications: notifications,
		submitter:     submitter,
		deadLetters:   deadLetters,
	}
}

// do performs a request as the given actor; a zero actor sends the request
// unauthenticated.
func (h *apiHarness) do(t *testing.T, method, path string, actor domain.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if actor.ID != uuid.Nil {
		req = req.WithContext(shared.WithActor(req.Context(), actor))
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	return rec
}

func provider() domain.Actor { return domain.Actor{ID: uuid.New(), Role: domain.RoleProvider} }
func reviewer() domain.Actor { return domain.Actor{ID: uuid.New(), Role: domain.RoleReviewer} }

// --- tests ---

func TestCreateAndGetRequest(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)
	p := provider()

	rec := h.do(t, http.MethodPost, "/requests", p, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created AuthorizationRequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.StatusDraft, created.Status)
	assert.Equal(t, p.ID, created.ProviderID)

	rec = h.do(t, http.MethodGet, "/requests/"+created.ID.String(), p, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestEndpointsRequireAuth(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/requests", domain.Actor{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransitionHappyPath(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)
	p := provider()

	rec := h.do(t, http.MethodPost, "/requests", p, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created AuthorizationRequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = h.do(t, http.MethodPost, "/requests/"+created.ID.String()+"/transitions", p,
		TransitionRequest{To: domain.StatusSubmitted})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated AuthorizationRequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, domain.StatusSubmitted, updated.Status)
}

func TestTransitionInvalidPairIsConflict(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)
	p := provider()

	rec := h.do(t, http.MethodPost, "/requests", p, nil)
	var created AuthorizationRequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = h.do(t, http.MethodPost, "/requests/"+created.ID.String()+"/transitions", p,
		TransitionRequest{To: domain.StatusApproved})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTransitionForbiddenRole(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)
	p := provider()

	rec := h.do(t, http.MethodPost, "/requests", p, nil)
	var created AuthorizationRequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Walk to IN_REVIEW, then a provider may not approve.
	rev := reviewer()
	require.Equal(t, http.StatusOK,
		h.do(t, http.MethodPost, "/requests/"+created.ID.String()+"/transitions", p,
			TransitionRequest{To: domain.StatusSubmitted}).Code)
	require.Equal(t, http.StatusOK,
		h.do(t, http.MethodPost, "/requests/"+created.ID.String()+"/transitions", rev,
			TransitionRequest{To: domain.StatusInReview}).Code)

	rec = h.do(t, http.MethodPost, "/requests/"+created.ID.String()+"/transitions", p,
		TransitionRequest{To: domain.StatusApproved})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTransitionUnknownRequestIs404(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/requests/"+uuid.NewString()+"/transitions", provider(),
		TransitionRequest{To: domain.StatusSubmitted})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransitionMalformedBody(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)
	p := provider()

	rec := h.do(t, http.MethodPost, "/requests", p, nil)
	var created AuthorizationRequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodPost,
		"/requests/"+created.ID.String()+"/transitions",
		bytes.NewBufferString("{not json"))
	req = req.WithContext(shared.WithActor(req.Context(), p))

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitTask(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/tasks", provider(), SubmitTaskRequest{
		Name:    "prior_auth.update_request_status",
		Payload: json.RawMessage(`{"request_id":"x"}`),
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp SubmitTaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.TaskID)
	assert.Equal(t, "prior_auth.update_request_status", h.submitter.lastName)
}

func TestSubmitTaskMissingName(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/tasks", provider(), SubmitTaskRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitTaskUnroutableName(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)
	h.submitter.submitErr = fmt.Errorf("%w: %q", orchestrator.ErrUnroutableTask, "nope.never")

	rec := h.do(t, http.MethodPost, "/tasks", provider(), SubmitTaskRequest{Name: "nope.never"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDeadLetter(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	taskID := uuid.New()
	h.deadLetters.records[taskID] = &orchestrator.DeadLetter{
		TaskID:   taskID,
		Name:     "test.task",
		Queue:    "work",
		Payload:  json.RawMessage(`{"a":1}`),
		Attempts: 3,
		Reason:   "downstream unavailable",
		FailedAt: time.Now().UTC(),
	}

	rec := h.do(t, http.MethodGet, "/dead-letters/"+taskID.String(), reviewer(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DeadLetterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, taskID, resp.TaskID)
	assert.Equal(t, 3, resp.Attempts)

	rec = h.do(t, http.MethodGet, "/dead-letters/"+uuid.NewString(), reviewer(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationsListAndMarkRead(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)
	user := provider()
	other := provider()

	mine, err := domain.NewNotification(domain.NotificationRequestApproved, user.ID, nil, nil)
	require.NoError(t, err)
	require.NoError(t, h.notifications.Create(context.Background(), mine))

	theirs, err := domain.NewNotification(domain.NotificationRequestDenied, other.ID, nil, nil)
	require.NoError(t, err)
	require.NoError(t, h.notifications.Create(context.Background(), theirs))

	rec := h.do(t, http.MethodGet, "/notifications", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []NotificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1, "only the caller's notifications are visible")
	assert.Equal(t, mine.ID, listed[0].ID)

	rec = h.do(t, http.MethodPost, "/notifications/"+mine.ID.String()+"/read", user, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Unread filter now excludes it.
	rec = h.do(t, http.MethodGet, "/notifications?unread=true", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed)

	// Another user's notification reads as not found.
	rec = h.do(t, http.MethodPost, "/notifications/"+theirs.ID.String()+"/read", user, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationsBadLimit(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	rec := h.do(t, http.MethodGet, "/notifications?limit=0", provider(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
