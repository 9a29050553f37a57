package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medflow/priorauth/internal/api/shared"
	"github.com/medflow/priorauth/internal/domain"
)

// actorFromRequest extracts the authenticated actor placed in the context by
// the auth middleware, writing a 401 response when it is missing.
func actorFromRequest(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok || actor.ID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return domain.Actor{}, false
	}

	return actor, true
}

// pathUUID parses the named chi path parameter as a UUID.
func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, param)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid UUID", domain.ErrValidation, param)
	}

	return id, nil
}
