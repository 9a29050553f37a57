package api

import (
	"log/slog"
	"net/http"

	"github.com/medflow/priorauth/internal/api/shared"
	"github.com/medflow/priorauth/internal/orchestrator"
	"github.com/medflow/priorauth/internal/platform/logger"
)

// TaskHandler serves task submission and dead-letter inspection.
type TaskHandler struct {
	submitter   orchestrator.Submitter
	deadLetters orchestrator.DeadLetterStore
	logger      *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(
	submitter orchestrator.Submitter,
	deadLetters orchestrator.DeadLetterStore,
	log *slog.Logger,
) *TaskHandler {
	if log == nil {
		log = slog.Default()
	}

	return &TaskHandler{
		submitter:   submitter,
		deadLetters: deadLetters,
		logger:      log.With(slog.String("component", "task_handler")),
	}
}

// SubmitTask handles POST /tasks. The task is routed by name; an unroutable
// name is a 400. Submission is fire-and-forget: 202 with the task id.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if _, ok := actorFromRequest(w, r); !ok {
		return
	}

	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task name is required")
		return
	}

	var opts []orchestrator.SubmitOption
	if req.Priority != nil {
		opts = append(opts, orchestrator.WithPriority(*req.Priority))
	}

	taskID, err := h.submitter.Submit(r.Context(), req.Name, req.Payload, opts...)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("task submitted via API",
		"task_id", taskID,
		"task_name", req.Name)

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitTaskResponse{TaskID: taskID})
}

// GetDeadLetter handles GET /dead-letters/{taskID}.
func (h *TaskHandler) GetDeadLetter(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}

	taskID, err := pathUUID(r, "taskID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	dl, err := h.deadLetters.GetByTaskID(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, toDeadLetterResponse(dl))
}

// ListDeadLetters handles GET /dead-letters.
func (h *TaskHandler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}

	dls, err := h.deadLetters.List(r.Context(), 50)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	out := make([]DeadLetterResponse, 0, len(dls))
	for _, dl := range dls {
		out = append(out, toDeadLetterResponse(dl))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, out)
}
