package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/medflow/priorauth/internal/api/shared"
	"github.com/medflow/priorauth/internal/store"
)

// NotificationHandler serves the per-user notification endpoints.
type NotificationHandler struct {
	notifications store.NotificationStore
	logger        *slog.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(notifications store.NotificationStore, log *slog.Logger) *NotificationHandler {
	if log == nil {
		log = slog.Default()
	}

	return &NotificationHandler{
		notifications: notifications,
		logger:        log.With(slog.String("component", "notification_handler")),
	}
}

// ListNotifications handles GET /notifications?unread=true&limit=20. Users
// only ever see their own notifications.
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	notifications, err := h.notifications.ListByUser(r.Context(), actor.ID, unreadOnly, limit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	out := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, toNotificationResponse(n))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// MarkRead handles POST /notifications/{id}/read. Marking a notification
// that belongs to someone else reads as 404.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.notifications.MarkRead(r.Context(), id, actor.ID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusNoContent, nil)
}
