package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/residence-billing/internal/config"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/golang-jwt/jwt/v4"
)

// Claims are the caller attributes taken from a validated token
type Claims struct {
	UserID string
	Email  string
}

// Provider validates bearer tokens issued by the identity service
type Provider interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

type jwtAuth struct {
	AuthConfig config.AuthConfig
}

func NewProvider(cfg *config.Configuration) Provider {
	return &jwtAuth{
		AuthConfig: cfg.Auth,
	}
}

func (a *jwtAuth) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ierr.NewError("unexpected signing method").
				WithHint(fmt.Sprintf("unexpected signing method: %v", token.Header["alg"])).
				Mark(ierr.ErrPermissionDenied)
		}
		return []byte(a.AuthConfig.Secret), nil
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Token parse error").
			Mark(ierr.ErrPermissionDenied)
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok || !parsedToken.Valid {
		return nil, ierr.NewError("invalid token claims").
			WithHint("Invalid token claims").
			Mark(ierr.ErrPermissionDenied)
	}

	userID, userOk := claims["user_id"].(string)
	if !userOk || userID == "" {
		return nil, ierr.NewError("token missing user ID").
			WithHint("Token missing user ID").
			Mark(ierr.ErrPermissionDenied)
	}

	email, _ := claims["email"].(string)
	return &Claims{UserID: userID, Email: email}, nil
}

// GenerateToken signs a token for userID with the configured secret.
// Used by local tooling and tests; production tokens come from the identity service.
func GenerateToken(secret, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
