package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewTokenIssuerRequiresSecrets(t *testing.T) {
	_, err := NewTokenIssuer("", "refresh", "eventviewer")
	require.Error(t, err)
	_, err = NewTokenIssuer("access", "", "eventviewer")
	require.Error(t, err)
}

func TestIssuePairUsesDistinctSecretsAndLifetimes(t *testing.T) {
	issuer, err := NewTokenIssuer("access-secret", "refresh-secret", "eventviewer")
	require.NoError(t, err)

	pair, err := issuer.IssuePair(Identity{UserID: "u-1", Role: RoleAdmin})
	require.NoError(t, err)

	require.WithinDuration(t, time.Now().Add(AccessTokenTTL), pair.Access.ExpiresAt, 2*time.Second)
	require.WithinDuration(t, time.Now().Add(RefreshTokenTTL), pair.Refresh.ExpiresAt, 2*time.Second)

	claims, err := issuer.ValidateAccess(pair.Access.Value)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.UserID())
	require.Equal(t, string(RoleAdmin), claims.Role)

	_, err = issuer.ValidateAccess(pair.Refresh.Value)
	require.ErrorIs(t, err, ErrInvalidToken, "refresh token must not pass as access token")
	_, err = issuer.ValidateRefresh(pair.Access.Value)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.ValidateRefresh(pair.Refresh.Value)
	require.NoError(t, err)
}
