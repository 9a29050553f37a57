package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/medflow/priorauth/internal/api/shared"
	"github.com/medflow/priorauth/internal/auth"
	"github.com/medflow/priorauth/internal/domain"
	"github.com/medflow/priorauth/internal/redact"
)

// AuthMiddleware provides JWT bearer authentication for routes.
type AuthMiddleware struct {
	tokens auth.TokenService
}

// NewAuthMiddleware creates an AuthMiddleware over the given token service.
func NewAuthMiddleware(tokens auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the Authorization bearer token and places the actor
// it identifies into the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		actor, err := m.tokens.Verify(r.Context(), parts[1])
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrInvalidToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			default:
				slog.Error("failed to verify token", "error", redact.Error(err))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithActor(r.Context(), actor)))
	})
}

// GetActor extracts the authenticated actor from the request context.
func GetActor(r *http.Request) (domain.Actor, bool) {
	return shared.ActorFromContext(r.Context())
}
