package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/eventviewer/server/internal/domain/sessions"
	"github.com/eventviewer/server/internal/domain/users"
)

// SessionRepository stores refresh tokens, the access-token blacklist and
// the password reset state.
type SessionRepository struct {
	conn
}

func (r *SessionRepository) BeginTx(ctx context.Context) (sessions.Repository, sessions.TxCommitter, error) {
	c, committer, err := r.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &SessionRepository{conn: c}, committer, nil
}

func (r *SessionRepository) GetUserByID(ctx context.Context, id string) (*users.User, error) {
	return getUserByID(ctx, r.queryer(), id)
}

func (r *SessionRepository) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	return getUserByEmail(ctx, r.queryer(), email)
}

func (r *SessionRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := r.queryer().Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) LockUser(ctx context.Context, userID string) error {
	var id string
	err := r.queryer().QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return users.ErrNotFound
		}
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListRefreshTokens(ctx context.Context, ownerID string) ([]sessions.RefreshToken, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT id, owner_id, token_hash, is_revoked, device, expires_at, created_at, updated_at
  FROM refresh_tokens
 WHERE owner_id = $1
 ORDER BY expires_at ASC, created_at ASC
`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	defer rows.Close()

	var out []sessions.RefreshToken
	for rows.Next() {
		var t sessions.RefreshToken
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.TokenHash, &t.IsRevoked, &t.Device,
			&t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan refresh token: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh tokens: %w", err)
	}
	return out, nil
}

func (r *SessionRepository) InsertRefreshToken(ctx context.Context, t sessions.RefreshToken) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO refresh_tokens (id, owner_id, token_hash, is_revoked, device, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, t.ID, t.OwnerID, t.TokenHash, t.IsRevoked, t.Device, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *SessionRepository) ReplaceRefreshToken(ctx context.Context, id, tokenHash, device string, expiresAt time.Time) error {
	_, err := r.queryer().Exec(ctx, `
UPDATE refresh_tokens
   SET token_hash = $2, device = $3, expires_at = $4, is_revoked = false, updated_at = now()
 WHERE id = $1
`, id, tokenHash, device, expiresAt)
	if err != nil {
		return fmt.Errorf("replace refresh token: %w", err)
	}
	return nil
}

func (r *SessionRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	_, err := r.queryer().Exec(ctx,
		`UPDATE refresh_tokens SET is_revoked = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *SessionRepository) RevokeAllRefreshTokens(ctx context.Context, ownerID string) error {
	_, err := r.queryer().Exec(ctx,
		`UPDATE refresh_tokens SET is_revoked = true, updated_at = now() WHERE owner_id = $1 AND NOT is_revoked`, ownerID)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func (r *SessionRepository) InsertBlacklistedToken(ctx context.Context, t sessions.BlacklistedToken) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO blacklisted_tokens (token_hash, user_id, reason, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (token_hash) DO UPDATE SET expires_at = GREATEST(blacklisted_tokens.expires_at, EXCLUDED.expires_at)
`, t.TokenHash, t.UserID, t.Reason, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert blacklisted token: %w", err)
	}
	return nil
}

func (r *SessionRepository) IsTokenBlacklisted(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	var exists bool
	err := r.queryer().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blacklisted_tokens WHERE token_hash = $1 AND expires_at > $2)`,
		tokenHash, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return exists, nil
}

func (r *SessionRepository) InvalidateOpenOTPs(ctx context.Context, userID string, now time.Time) error {
	_, err := r.queryer().Exec(ctx, `
UPDATE otps SET valid = false, updated_at = now()
 WHERE user_id = $1 AND valid AND NOT verified AND expires_at > $2
`, userID, now)
	if err != nil {
		return fmt.Errorf("invalidate otps: %w", err)
	}
	return nil
}

func (r *SessionRepository) InsertOTP(ctx context.Context, otp sessions.OTP) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO otps (id, user_id, code_hash, expires_at, verified, valid, attempt)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, otp.ID, otp.UserID, otp.CodeHash, otp.ExpiresAt, otp.Verified, otp.Valid, otp.Attempt)
	if err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetOpenOTPForUpdate(ctx context.Context, userID string, now time.Time) (*sessions.OTP, error) {
	var otp sessions.OTP
	err := r.queryer().QueryRow(ctx, `
SELECT id, user_id, code_hash, expires_at, verified, valid, attempt
  FROM otps
 WHERE user_id = $1 AND valid AND NOT verified AND expires_at > $2
 ORDER BY created_at DESC
 LIMIT 1
 FOR UPDATE
`, userID, now).Scan(&otp.ID, &otp.UserID, &otp.CodeHash, &otp.ExpiresAt, &otp.Verified, &otp.Valid, &otp.Attempt)
	if err != nil {
		if isNoRows(err) {
			return nil, sessions.ErrNotFound
		}
		return nil, fmt.Errorf("get open otp: %w", err)
	}
	return &otp, nil
}

func (r *SessionRepository) UpdateOTPState(ctx context.Context, id string, attempt int, valid, verified bool) error {
	_, err := r.queryer().Exec(ctx, `
UPDATE otps SET attempt = $2, valid = $3, verified = $4, updated_at = now() WHERE id = $1
`, id, attempt, valid, verified)
	if err != nil {
		return fmt.Errorf("update otp: %w", err)
	}
	return nil
}

func (r *SessionRepository) InsertResetToken(ctx context.Context, t sessions.ResetToken) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO reset_tokens (id, user_id, token_hash, expires_at, verified)
VALUES ($1, $2, $3, $4, $5)
`, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.Verified)
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListOpenResetTokens(ctx context.Context, userID string, now time.Time) ([]sessions.ResetToken, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT id, user_id, token_hash, expires_at, verified
  FROM reset_tokens
 WHERE user_id = $1 AND NOT verified AND expires_at > $2
 ORDER BY created_at DESC
 FOR UPDATE
`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list reset tokens: %w", err)
	}
	defer rows.Close()

	var out []sessions.ResetToken
	for rows.Next() {
		var t sessions.ResetToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Verified); err != nil {
			return nil, fmt.Errorf("scan reset token: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reset tokens: %w", err)
	}
	return out, nil
}

func (r *SessionRepository) DeleteResetToken(ctx context.Context, id string) error {
	_, err := r.queryer().Exec(ctx, `DELETE FROM reset_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reset token: %w", err)
	}
	return nil
}
