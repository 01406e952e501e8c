package middleware

import (
	"context"
	"net/http"

	"github.com/eventviewer/server/internal/api/problem"
	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/auth"
	"github.com/eventviewer/server/internal/domain/sessions"
	"github.com/rs/zerolog"
)

// Authenticator verifies an access token and rejects blacklisted ones.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

type contextKeyAuth string

const (
	claimsKey      contextKeyAuth = "claims"
	accessTokenKey contextKeyAuth = "accessToken"
)

var errRoleForbidden = apperr.Forbidden("You do not have permission to perform this action.")

// RequireAuth reads the bearer token, verifies it and checks the blacklist.
// The claims and the raw token are stored on the request context.
func RequireAuth(authn Authenticator, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil || token == "" {
				problem.Error(w, r, sessions.ErrAccessTokenMissing, env)
				return
			}

			claims, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				problem.Error(w, r, err, env)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, accessTokenKey, token)
			logger := zerolog.Ctx(ctx).With().Str("user_id", claims.UserID()).Logger()
			ctx = logger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(env string, roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := Claims(r.Context())
			if claims == nil {
				problem.Error(w, r, sessions.ErrAccessTokenMissing, env)
				return
			}
			if !auth.HasRole(claims.Role, roles...) {
				problem.Error(w, r, errRoleForbidden, env)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func Claims(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

// Identity returns the authenticated caller, or false when the request did
// not pass RequireAuth.
func Identity(ctx context.Context) (auth.Identity, bool) {
	claims := Claims(ctx)
	if claims == nil {
		return auth.Identity{}, false
	}
	return auth.Identity{UserID: claims.UserID(), Role: auth.NormalizeRole(claims.Role)}, true
}

func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey).(string)
	return token
}

// WithClaims is used by tests that exercise handlers without the auth chain.
func WithClaims(ctx context.Context, claims *auth.Claims, token string) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return context.WithValue(ctx, accessTokenKey, token)
}
