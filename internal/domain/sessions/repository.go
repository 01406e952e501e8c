package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/eventviewer/server/internal/domain/users"
)

// ErrNotFound is returned by repositories when a lookup matches no row.
var ErrNotFound = errors.New("session record not found")

// MaxRefreshTokens caps the refresh token pool per user.
const MaxRefreshTokens = 3

const (
	OTPLength      = 6
	OTPTTL         = 5 * time.Minute
	OTPMaxAttempts = 3
	ResetTokenTTL  = 5 * time.Minute
	// resetTokenBytes of entropy, hex encoded to 64 characters.
	resetTokenBytes = 32
)

const BlacklistReasonLogout = "logout"

type RefreshToken struct {
	ID        string
	OwnerID   string
	TokenHash string
	IsRevoked bool
	Device    string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type BlacklistedToken struct {
	ID        string
	TokenHash string
	UserID    string
	Reason    string
	ExpiresAt time.Time
}

type OTP struct {
	ID        string
	UserID    string
	CodeHash  string
	ExpiresAt time.Time
	Verified  bool
	Valid     bool
	Attempt   int
}

type ResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	Verified  bool
}

// Repository is the persistence contract for the session manager. Methods that
// read rows for a later write are only safe inside BeginTx.
type Repository interface {
	GetUserByID(ctx context.Context, id string) (*users.User, error)
	GetUserByEmail(ctx context.Context, email string) (*users.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	// LockUser takes a row lock on the user so pool mutations serialize per user.
	LockUser(ctx context.Context, userID string) error

	// ListRefreshTokens returns every row owned by the user ordered by expires_at ascending.
	ListRefreshTokens(ctx context.Context, ownerID string) ([]RefreshToken, error)
	InsertRefreshToken(ctx context.Context, token RefreshToken) error
	// ReplaceRefreshToken overwrites a pool slot and clears its revoked flag.
	ReplaceRefreshToken(ctx context.Context, id, tokenHash, device string, expiresAt time.Time) error
	RevokeRefreshToken(ctx context.Context, id string) error
	RevokeAllRefreshTokens(ctx context.Context, ownerID string) error

	InsertBlacklistedToken(ctx context.Context, token BlacklistedToken) error
	IsTokenBlacklisted(ctx context.Context, tokenHash string, now time.Time) (bool, error)

	InvalidateOpenOTPs(ctx context.Context, userID string, now time.Time) error
	InsertOTP(ctx context.Context, otp OTP) error
	// GetOpenOTPForUpdate locks the user's valid, unverified, unexpired OTP.
	GetOpenOTPForUpdate(ctx context.Context, userID string, now time.Time) (*OTP, error)
	UpdateOTPState(ctx context.Context, id string, attempt int, valid, verified bool) error

	InsertResetToken(ctx context.Context, token ResetToken) error
	ListOpenResetTokens(ctx context.Context, userID string, now time.Time) ([]ResetToken, error)
	DeleteResetToken(ctx context.Context, id string) error

	BeginTx(ctx context.Context) (Repository, TxCommitter, error)
}

type TxCommitter interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
