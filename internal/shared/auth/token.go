package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const tokenKey contextKey = "backend_token"

// CookieName is the cookie browser sessions carry the backend token in.
const CookieName = "access_token"

var (
	ErrMissingToken       = errors.New("authentication required")
	ErrInvalidTokenFormat = errors.New("invalid authorization header format")
)

// WithToken stores the caller's backend token on ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext returns the token stored by WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok && token != ""
}

// TokenFromRequest reads the token from the access_token cookie, falling back to
// an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidTokenFormat
	}
	return strings.TrimSpace(parts[1]), nil
}
