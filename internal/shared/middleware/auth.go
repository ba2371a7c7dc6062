package middleware

import (
	"errors"
	"net/http"

	"bizconsole/internal/shared/auth"
)

// Auth forwards the caller's backend token to downstream calls. When allowServiceKey
// is set, requests without a token proceed and the backend client falls back to its
// configured API key; otherwise they are rejected.
func Auth(allowServiceKey bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromRequest(r)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(auth.WithToken(r.Context(), token)))
			case errors.Is(err, auth.ErrMissingToken) && allowServiceKey:
				next.ServeHTTP(w, r)
			default:
				http.Error(w, err.Error(), http.StatusUnauthorized)
			}
		})
	}
}
