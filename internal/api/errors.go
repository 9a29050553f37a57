package api

import (
	"errors"
	"net/http"

	"github.com/medflow/priorauth/internal/api/shared"
	"github.com/medflow/priorauth/internal/domain"
	"github.com/medflow/priorauth/internal/orchestrator"
	"github.com/medflow/priorauth/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes. Unmapped
// errors fall through to 500 so nothing internal leaks by accident.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authorization errors
	case errors.Is(err, domain.ErrUnauthorizedTransition):
		return http.StatusForbidden

	// Conflicts: invalid state-machine moves and lost optimistic races
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrRequestImmutable),
		errors.Is(err, store.ErrConcurrentModification),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Not found
	case errors.Is(err, store.ErrRequestNotFound),
		errors.Is(err, store.ErrNotificationNotFound),
		errors.Is(err, store.ErrDeadLetterNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Bad request
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, orchestrator.ErrUnroutableTask),
		errors.Is(err, orchestrator.ErrUnknownQueue):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorizedTransition):
		return "Your role is not permitted to perform this transition"

	case errors.Is(err, domain.ErrInvalidTransition):
		return "The request cannot move to the target status"

	case errors.Is(err, domain.ErrRequestImmutable):
		return "The request has reached a terminal status"

	case errors.Is(err, store.ErrConcurrentModification):
		return "The request was modified concurrently, retry the operation"

	case errors.Is(err, store.ErrDuplicate):
		return "The resource already exists"

	case errors.Is(err, store.ErrRequestNotFound):
		return "Request not found"

	case errors.Is(err, store.ErrNotificationNotFound):
		return "Notification not found"

	case errors.Is(err, store.ErrDeadLetterNotFound):
		return "Dead letter not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, orchestrator.ErrUnroutableTask):
		return "No queue is configured for this task name"

	case errors.Is(err, domain.ErrInvalidStatus):
		return "Unknown request status"

	case errors.Is(err, domain.ErrInvalidRole):
		return "Unknown actor role"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the standard error response for err. An empty
// userMessage falls back to the safe message for the error type.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, userMessage string) {
	status := MapErrorToStatusCode(err)

	if userMessage == "" {
		userMessage = GetSafeErrorMessage(err)
	}

	shared.RespondWithErrorAndLog(w, r, status, userMessage, err)
}
