package auth

import (
	"context"
	"testing"
	"time"

	"github.com/flexprice/residence-billing/internal/config"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateToken(t *testing.T) {
	cfg := &config.Configuration{Auth: config.AuthConfig{Secret: "test-secret"}}
	provider := NewProvider(cfg)

	t.Run("valid token", func(t *testing.T) {
		token, err := GenerateToken("test-secret", "user_1", "a@b.c", time.Hour)
		require.NoError(t, err)

		claims, err := provider.ValidateToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "user_1", claims.UserID)
		assert.Equal(t, "a@b.c", claims.Email)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := GenerateToken("other-secret", "user_1", "", time.Hour)
		require.NoError(t, err)

		_, err = provider.ValidateToken(context.Background(), token)
		require.Error(t, err)
		assert.True(t, ierr.IsPermissionDenied(err))
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := GenerateToken("test-secret", "user_1", "", -time.Minute)
		require.NoError(t, err)

		_, err = provider.ValidateToken(context.Background(), token)
		assert.True(t, ierr.IsPermissionDenied(err))
	})

	t.Run("missing user id", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = provider.ValidateToken(context.Background(), signed)
		assert.True(t, ierr.IsPermissionDenied(err))
	})
}
