package api

import (
	"log/slog"
	"net/http"

	"github.com/medflow/priorauth/internal/api/shared"
	"github.com/medflow/priorauth/internal/platform/logger"
	"github.com/medflow/priorauth/internal/workflow"
)

// RequestHandler serves the authorization-request endpoints.
type RequestHandler struct {
	workflow *workflow.Service
	logger   *slog.Logger
}

// NewRequestHandler creates a RequestHandler.
func NewRequestHandler(wf *workflow.Service, log *slog.Logger) *RequestHandler {
	if log == nil {
		log = slog.Default()
	}

	return &RequestHandler{
		workflow: wf,
		logger:   log.With(slog.String("component", "request_handler")),
	}
}

// CreateRequest handles POST /requests. The authenticated actor becomes the
// request's provider.
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	req, err := h.workflow.CreateRequest(r.Context(), actor.ID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("request created via API", "request_id", req.ID)

	shared.RespondWithJSON(w, r, http.StatusCreated, toRequestResponse(req))
}

// GetRequest handles GET /requests/{id}.
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	req, err := h.workflow.GetRequest(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, toRequestResponse(req))
}

// Transition handles POST /requests/{id}/transitions: a synchronous state
// transition performed as the authenticated actor. Invalid pairs and lost
// optimistic races map to 409, forbidden roles to 403.
func (h *RequestHandler) Transition(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var body TransitionRequest
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(body); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Target status is required")
		return
	}

	req, err := h.workflow.Transition(r.Context(), id, body.To, actor, body.Decision)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("request transitioned via API",
		"request_id", id,
		"to", body.To,
		"actor_role", actor.Role)

	shared.RespondWithJSON(w, r, http.StatusOK, toRequestResponse(req))
}
