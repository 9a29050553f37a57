package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/medflow/priorauth/internal/api/middleware"
)

// newRouter builds the HTTP surface. Every /api route requires a valid
// bearer token; health stays open for load balancer probes.
func (a *application) newRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Trace)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	authMiddleware := middleware.NewAuthMiddleware(a.tokens)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/tasks", a.taskHandler.SubmitTask)
		r.Get("/dead-letters", a.taskHandler.ListDeadLetters)
		r.Get("/dead-letters/{taskID}", a.taskHandler.GetDeadLetter)

		r.Post("/requests", a.requestHandler.CreateRequest)
		r.Get("/requests/{id}", a.requestHandler.GetRequest)
		r.Post("/requests/{id}/transitions", a.requestHandler.Transition)

		r.Get("/notifications", a.notificationHandler.ListNotifications)
		r.Post("/notifications/{id}/read", a.notificationHandler.MarkRead)
	})

	return r
}
