package middleware

import (
	"net/http"
	"strings"

	"github.com/flexprice/residence-billing/internal/auth"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/gin-gonic/gin"
)

// AuthenticateMiddleware validates the bearer token and puts the caller's
// user id into the request context. Every billing route acts on behalf of
// that user; request bodies never choose the user.
func AuthenticateMiddleware(provider auth.Provider, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(types.HeaderAuthorization)
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := provider.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			logger.Debugw("failed to validate token", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		ctx := types.SetUserID(c.Request.Context(), claims.UserID)
		c.Set(ctxKeyUserEmail, claims.Email)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

const ctxKeyUserEmail = "user_email"

// GetUserEmail returns the email claim of the authenticated caller, if any
func GetUserEmail(c *gin.Context) string {
	return c.GetString(ctxKeyUserEmail)
}
