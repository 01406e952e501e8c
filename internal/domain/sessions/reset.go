package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/domain/users"
	"github.com/google/uuid"
)

// ForgotPassword stores a fresh OTP and mails it. The OTP row is rolled back
// when delivery fails so no undeliverable code stays valid.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	email = users.NormalizeEmail(email)
	user, err := m.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return ErrEmailNotRegistered
		}
		return fmt.Errorf("get user by email: %w", err)
	}

	code, err := GenerateOTP()
	if err != nil {
		return ErrUnknownTransaction.Wrap(err)
	}

	err = m.withTx(ctx, func(tx Repository) error {
		if err := m.saveOTP(ctx, tx, user.ID, code); err != nil {
			return err
		}
		if err := m.mailer.SendOTP(ctx, user.Email, user.FirstName, code); err != nil {
			return ErrEmailService.Wrap(err)
		}
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			m.logger.Error().Err(err).Str("user_id", user.ID).Msg("otp email delivery failed")
			return err
		}
		m.logger.Error().Err(err).Str("user_id", user.ID).Msg("forgot password transaction failed")
		return ErrUnknownTransaction.Wrap(err)
	}

	m.auditLogger.LogSuccess("auth.password_forgot", user.ID, "user", user.ID, nil)
	return nil
}

// VerifyOTP exchanges a correct OTP for a single-use reset token.
func (m *Manager) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	user, err := m.findUser(ctx, email)
	if err != nil {
		return "", err
	}
	if err := m.ValidateOTP(ctx, user.ID, code); err != nil {
		return "", err
	}

	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(buf)
	hash, err := m.hasher.HashSecret(token)
	if err != nil {
		return "", fmt.Errorf("hash reset token: %w", err)
	}
	if err := m.repo.InsertResetToken(ctx, ResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: m.now().Add(ResetTokenTTL),
	}); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

// ResetPassword sets a new password, consumes the reset token and revokes
// every refresh token the user holds.
func (m *Manager) ResetPassword(ctx context.Context, email, newPassword, resetToken string) error {
	user, err := m.findUser(ctx, email)
	if err != nil {
		return err
	}

	err = m.withTx(ctx, func(tx Repository) error {
		open, err := tx.ListOpenResetTokens(ctx, user.ID, m.now())
		if err != nil {
			return fmt.Errorf("list reset tokens: %w", err)
		}
		var matched *ResetToken
		for i := range open {
			if m.hasher.CompareSecret(open[i].TokenHash, resetToken) {
				matched = &open[i]
				break
			}
		}
		if matched == nil {
			return ErrInvalidResetToken
		}

		hash, err := m.hasher.HashPassword(newPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		if err := tx.UpdatePassword(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := tx.DeleteResetToken(ctx, matched.ID); err != nil {
			return fmt.Errorf("delete reset token: %w", err)
		}
		return tx.RevokeAllRefreshTokens(ctx, user.ID)
	})
	if err != nil {
		return err
	}

	m.auditLogger.LogSuccess("auth.password_reset", user.ID, "user", user.ID, nil)
	return nil
}

func (m *Manager) findUser(ctx context.Context, email string) (*users.User, error) {
	user, err := m.repo.GetUserByEmail(ctx, users.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, users.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}
