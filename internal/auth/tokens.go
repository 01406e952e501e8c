package auth

import (
	"errors"
	"time"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Identity is the payload carried by both tokens of a pair.
type Identity struct {
	UserID string
	Role   Role
}

type TokenPair struct {
	Access  Token
	Refresh Token
}

// TokenIssuer mints access and refresh tokens with distinct secrets.
type TokenIssuer struct {
	access  *JWTManager
	refresh *JWTManager
}

func NewTokenIssuer(accessSecret, refreshSecret, issuer string) (*TokenIssuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token issuer: both signing secrets are required")
	}
	return &TokenIssuer{
		access:  NewJWTManager(accessSecret, AccessTokenTTL, issuer),
		refresh: NewJWTManager(refreshSecret, RefreshTokenTTL, issuer),
	}, nil
}

func (i *TokenIssuer) IssuePair(id Identity) (TokenPair, error) {
	access, err := i.access.Issue(id.UserID, string(id.Role))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.refresh.Issue(id.UserID, string(id.Role))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (i *TokenIssuer) ValidateAccess(token string) (*Claims, error) {
	return i.access.Validate(token)
}

func (i *TokenIssuer) ValidateRefresh(token string) (*Claims, error) {
	return i.refresh.Validate(token)
}
