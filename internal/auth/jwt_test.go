package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/priorauth/internal/config"
	"github.com/medflow/priorauth/internal/domain"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:     "0123456789abcdef0123456789abcdef",
		TokenLifetime: time.Hour,
	}
}

func TestNewTokenServiceRejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewTokenService(config.AuthConfig{JWTSecret: "short"})
	assert.Error(t, err)
}

func TestGenerateAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	svc, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)

	actor := domain.Actor{ID: uuid.New(), Role: domain.RoleReviewer}

	token, err := svc.Generate(context.Background(), actor)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
}

func TestGenerateRejectsInvalidActor(t *testing.T) {
	t.Parallel()

	svc, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), domain.Actor{Role: domain.RoleProvider})
	assert.Error(t, err, "missing user id")

	_, err = svc.Generate(context.Background(), domain.Actor{ID: uuid.New(), Role: "JANITOR"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	t.Parallel()

	svc, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	t.Parallel()

	issuer, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)

	verifier, err := NewTokenService(config.AuthConfig{
		JWTSecret:     "ffffffffffffffffffffffffffffffff",
		TokenLifetime: time.Hour,
	})
	require.NoError(t, err)

	token, err := issuer.Generate(context.Background(), domain.Actor{
		ID: uuid.New(), Role: domain.RoleProvider,
	})
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	svc, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)

	impl, ok := svc.(*hmacTokenService)
	require.True(t, ok)

	// Issue a token in the past, beyond lifetime plus clock skew.
	issuedAt := time.Now().Add(-2 * time.Hour)
	impl.timeFunc = func() time.Time { return issuedAt }

	token, err := svc.Generate(context.Background(), domain.Actor{
		ID: uuid.New(), Role: domain.RoleAdmin,
	})
	require.NoError(t, err)

	impl.timeFunc = time.Now

	_, err = svc.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
