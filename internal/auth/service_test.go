package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewService(testJWTManager(15*time.Minute, 24*time.Hour), client)
}

func TestService_RefreshTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("rotated access token keeps the email claim", func(t *testing.T) {
		svc := newTestService(t)

		pair, err := svc.GenerateTokens(ctx, "user-1", "student@studyowl.dev")
		require.NoError(t, err)

		rotated, err := svc.RefreshTokens(ctx, pair.RefreshToken)
		require.NoError(t, err)

		claims, err := svc.ValidateAccessToken(rotated.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "student@studyowl.dev", claims.Email)
	})

	t.Run("refresh token is single use", func(t *testing.T) {
		svc := newTestService(t)

		pair, err := svc.GenerateTokens(ctx, "user-2", "other@studyowl.dev")
		require.NoError(t, err)

		_, err = svc.RefreshTokens(ctx, pair.RefreshToken)
		require.NoError(t, err)

		_, err = svc.RefreshTokens(ctx, pair.RefreshToken)
		assert.ErrorContains(t, err, "revoked")
	})

	t.Run("logout revokes all refresh tokens", func(t *testing.T) {
		svc := newTestService(t)

		first, err := svc.GenerateTokens(ctx, "user-3", "third@studyowl.dev")
		require.NoError(t, err)
		second, err := svc.GenerateTokens(ctx, "user-3", "third@studyowl.dev")
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, "user-3"))

		_, err = svc.RefreshTokens(ctx, first.RefreshToken)
		assert.Error(t, err)
		_, err = svc.RefreshTokens(ctx, second.RefreshToken)
		assert.Error(t, err)
	})
}
