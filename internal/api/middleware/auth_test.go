package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/auth"
	"github.com/eventviewer/server/internal/domain/sessions"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFunc func(ctx context.Context, token string) (*auth.Claims, error)

func (f authFunc) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	return f(ctx, token)
}

func claimsFor(userID string, role auth.Role) *auth.Claims {
	return &auth.Claims{Role: string(role), RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}
}

func problemCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Code
}

func TestRequireAuth(t *testing.T) {
	authn := authFunc(func(_ context.Context, token string) (*auth.Claims, error) {
		switch token {
		case "good":
			return claimsFor("user-1", auth.RoleAdmin), nil
		case "revoked":
			return nil, sessions.ErrTokenBlacklisted
		default:
			return nil, sessions.ErrTokenInvalid
		}
	})

	var seen *auth.Claims
	var seenToken string
	handler := RequireAuth(authn, "test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = Claims(r.Context())
		seenToken = AccessToken(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, apperr.CodeAccessTokenMissing},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, apperr.CodeAccessTokenMissing},
		{"invalid token", "Bearer nope", http.StatusUnauthorized, apperr.CodeTokenValidation},
		{"blacklisted token", "Bearer revoked", http.StatusForbidden, apperr.CodeTokenBlacklisted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, problemCode(t, rec))
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Authorization", "bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-1", seen.UserID())
	assert.Equal(t, "good", seenToken)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("test", auth.RoleSuperAdmin)(okHandler())

	tests := []struct {
		name   string
		claims *auth.Claims
		status int
	}{
		{"no claims", nil, http.StatusUnauthorized},
		{"wrong role", claimsFor("u", auth.RoleAdmin), http.StatusForbidden},
		{"unknown role", claimsFor("u", auth.Role("root")), http.StatusForbidden},
		{"allowed", claimsFor("u", auth.RoleSuperAdmin), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/events/x/approve", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims, "tok"))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestIdentity(t *testing.T) {
	_, ok := Identity(context.Background())
	assert.False(t, ok)

	ctx := WithClaims(context.Background(), claimsFor("user-9", "Student"), "tok")
	id, ok := Identity(ctx)
	require.True(t, ok)
	assert.Equal(t, auth.Identity{UserID: "user-9", Role: auth.RoleStudent}, id)
}
