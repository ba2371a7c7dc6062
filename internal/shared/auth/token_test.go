package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(r *http.Request)
		want    string
		wantErr error
	}{
		{
			name:  "cookie",
			setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"}) },
			want:  "from-cookie",
		},
		{
			name:  "header",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc123") },
			want:  "abc123",
		},
		{
			name: "cookie wins over header",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
				r.Header.Set("Authorization", "Bearer abc123")
			},
			want: "from-cookie",
		},
		{name: "missing", setup: func(r *http.Request) {}, wantErr: ErrMissingToken},
		{
			name:    "basic auth",
			setup:   func(r *http.Request) { r.Header.Set("Authorization", "Basic Zm9vOmJhcg==") },
			wantErr: ErrInvalidTokenFormat,
		},
		{
			name:    "empty bearer",
			setup:   func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") },
			wantErr: ErrInvalidTokenFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/bank-accounts", nil)
			tt.setup(req)

			got, err := TokenFromRequest(req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("TokenFromRequest() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("TokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenContext(t *testing.T) {
	if _, ok := TokenFromContext(context.Background()); ok {
		t.Error("empty context should not carry a token")
	}

	ctx := WithToken(context.Background(), "tok")
	got, ok := TokenFromContext(ctx)
	if !ok || got != "tok" {
		t.Errorf("TokenFromContext() = %q, %v", got, ok)
	}

	if _, ok := TokenFromContext(WithToken(context.Background(), "")); ok {
		t.Error("blank token should not count")
	}
}
