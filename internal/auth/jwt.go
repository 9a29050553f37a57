// Package auth issues and verifies the JWT bearer tokens that identify API
// callers. A token carries the actor's user id and role; the API middleware
// verifies it and places the resulting domain.Actor in the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/medflow/priorauth/internal/config"
	"github.com/medflow/priorauth/internal/domain"
)

// Token validation errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// TokenService issues and verifies actor tokens.
type TokenService interface {
	// Generate creates a signed token for the actor.
	Generate(ctx context.Context, actor domain.Actor) (string, error)

	// Verify validates the token and returns the actor it identifies.
	// Returns ErrExpiredToken or ErrInvalidToken on failure.
	Verify(ctx context.Context, tokenString string) (domain.Actor, error)
}

// actorClaims is the JWT claims layout used by this service.
type actorClaims struct {
	UserID uuid.UUID   `json:"uid"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// hmacTokenService signs tokens with HMAC-SHA256.
type hmacTokenService struct {
	signingKey []byte
	lifetime   time.Duration
	clockSkew  time.Duration
	timeFunc   func() time.Time // injectable for tests
}

var _ TokenService = (*hmacTokenService)(nil)

// NewTokenService creates a TokenService from the auth configuration.
func NewTokenService(cfg config.AuthConfig) (TokenService, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 characters")
	}

	lifetime := cfg.TokenLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}

	return &hmacTokenService{
		signingKey: []byte(cfg.JWTSecret),
		lifetime:   lifetime,
		clockSkew:  2 * time.Minute,
		timeFunc:   time.Now,
	}, nil
}

// Generate implements TokenService.Generate.
func (s *hmacTokenService) Generate(_ context.Context, actor domain.Actor) (string, error) {
	if actor.ID == uuid.Nil {
		return "", errors.New("actor id cannot be empty")
	}

	if !actor.Role.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidRole, actor.Role)
	}

	now := s.timeFunc()

	claims := actorClaims{
		UserID: actor.ID,
		Role:   actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify implements TokenService.Verify.
func (s *hmacTokenService) Verify(_ context.Context, tokenString string) (domain.Actor, error) {
	now := s.timeFunc()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&actorClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Actor{}, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*actorClaims)
	if !ok || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}

	if claims.UserID == uuid.Nil || !claims.Role.IsValid() {
		return domain.Actor{}, fmt.Errorf("%w: missing or invalid actor claims", ErrInvalidToken)
	}

	return domain.Actor{ID: claims.UserID, Role: claims.Role}, nil
}
