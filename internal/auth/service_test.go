package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chema/chema_ledger/internal/config"
	"github.com/chema/chema_ledger/internal/identity"
)

func newTestService(t *testing.T) (*Service, identity.User) {
	t.Helper()
	repo := identity.NewMemoryRepository()
	user, err := identity.NewService(repo).Register(context.Background(), identity.Credentials{Email: "esi@example.com", Password: "password123"})
	require.NoError(t, err)
	cfg := config.Config{
		AppName:         "test",
		JWTSecret:       "access",
		RefreshSecret:   "refresh",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
	return NewService(cfg, repo), user
}

func TestLoginParseAndLogout(t *testing.T) {
	ctx := context.Background()
	svc, user := newTestService(t)

	pair, err := svc.Login(user)
	require.NoError(t, err)
	assert.Equal(t, int64(60), pair.ExpiresIn)

	claims, err := svc.ParseAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)

	_, err = svc.ParseAccess(ctx, pair.RefreshToken)
	assert.True(t, errors.Is(err, ErrInvalidToken), "refresh token must not pass as access token")

	access, _, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, err = svc.ParseAccess(ctx, access)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, user.ID))
	_, err = svc.ParseAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestParseRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ParseAccess(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
