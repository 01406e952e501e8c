// Package sessions manages login sessions: the per-user refresh token pool,
// the access token blacklist and the OTP password reset flow.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventviewer/server/internal/audit"
	"github.com/eventviewer/server/internal/auth"
	"github.com/eventviewer/server/internal/domain/users"
	"github.com/rs/zerolog"
)

// CredentialVerifier checks an email and password pair.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (*users.User, error)
}

// Mailer delivers one-time codes.
type Mailer interface {
	SendOTP(ctx context.Context, to, firstName, code string) error
}

type Manager struct {
	repo        Repository
	credentials CredentialVerifier
	tokens      *auth.TokenIssuer
	hasher      auth.Hasher
	mailer      Mailer
	auditLogger *audit.Logger
	logger      zerolog.Logger
	now         func() time.Time
}

type Option func(*Manager)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(repo Repository, credentials CredentialVerifier, tokens *auth.TokenIssuer, hasher auth.Hasher, mailer Mailer, auditLogger *audit.Logger, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		repo:        repo,
		credentials: credentials,
		tokens:      tokens,
		hasher:      hasher,
		mailer:      mailer,
		auditLogger: auditLogger,
		logger:      logger.With().Str("component", "sessions").Logger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type LoginResult struct {
	User   *users.User
	Tokens auth.TokenPair
}

// Login verifies credentials and stores a new refresh token in the user's pool.
func (m *Manager) Login(ctx context.Context, email, password, userAgent string) (*LoginResult, error) {
	user, err := m.credentials.VerifyCredentials(ctx, email, password)
	if err != nil {
		m.auditLogger.LogFailure("auth.login", users.NormalizeEmail(email), map[string]string{"reason": err.Error()})
		return nil, err
	}

	pair, err := m.tokens.IssuePair(user.Identity())
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	if err := m.SaveNewRefreshToken(ctx, user.ID, pair.Refresh, auth.DeviceLabel(userAgent)); err != nil {
		return nil, err
	}

	m.auditLogger.LogSuccess("auth.login", user.ID, "user", user.ID, nil)
	return &LoginResult{User: user, Tokens: pair}, nil
}

// Refresh rotates a refresh token. The presented token stops working once this returns.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := m.ValidateRefresh(refreshToken)
	if err != nil {
		return auth.TokenPair{}, err
	}
	user, err := m.repo.GetUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return auth.TokenPair{}, ErrRefreshNotFound
		}
		return auth.TokenPair{}, fmt.Errorf("get user: %w", err)
	}
	return m.RenewAccessToken(ctx, user.Identity(), refreshToken)
}

// Logout revokes the refresh token's pool slot and blacklists the access token
// in one transaction.
func (m *Manager) Logout(ctx context.Context, access *auth.Claims, accessToken, refreshToken string) error {
	refresh, err := m.ValidateRefresh(refreshToken)
	if err != nil {
		return err
	}
	if refresh.UserID() != access.UserID() {
		return ErrRefreshNotFound
	}
	userID := access.UserID()
	now := m.now()

	expiresAt := now.Add(auth.AccessTokenTTL)
	if access.ExpiresAt != nil && access.ExpiresAt.After(expiresAt) {
		expiresAt = access.ExpiresAt.Time
	}

	err = m.withTx(ctx, func(tx Repository) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		slot, err := m.matchRefreshToken(ctx, tx, userID, refreshToken)
		if err != nil {
			return err
		}
		if err := tx.RevokeRefreshToken(ctx, slot.ID); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		return tx.InsertBlacklistedToken(ctx, BlacklistedToken{
			TokenHash: auth.Fingerprint(accessToken),
			UserID:    userID,
			Reason:    BlacklistReasonLogout,
			ExpiresAt: expiresAt,
		})
	})
	if err != nil {
		return err
	}

	m.auditLogger.LogSuccess("auth.logout", userID, "user", userID, nil)
	return nil
}

// Authenticate validates an access token and rejects blacklisted ones.
func (m *Manager) Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error) {
	claims, err := m.tokens.ValidateAccess(accessToken)
	if err != nil {
		return nil, mapTokenError(err, ErrAccessTokenMissing)
	}
	blacklisted, err := m.repo.IsTokenBlacklisted(ctx, auth.Fingerprint(accessToken), m.now())
	if err != nil {
		return nil, fmt.Errorf("check blacklist: %w", err)
	}
	if blacklisted {
		return nil, ErrTokenBlacklisted
	}
	return claims, nil
}

// ValidateRefresh checks the refresh token's signature and expiry only.
func (m *Manager) ValidateRefresh(refreshToken string) (*auth.Claims, error) {
	claims, err := m.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, mapTokenError(err, ErrRefreshTokenMissing)
	}
	return claims, nil
}

func mapTokenError(err error, missing error) error {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return missing
	case errors.Is(err, auth.ErrExpiredToken):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}

// withTx runs fn in a transaction and commits when it returns nil.
func (m *Manager) withTx(ctx context.Context, fn func(tx Repository) error) error {
	tx, committer, err := m.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = committer.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := committer.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
