package sessions

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// GenerateOTP returns a uniformly random six digit code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}

// saveOTP invalidates any open code for the user and stores a new one.
func (m *Manager) saveOTP(ctx context.Context, tx Repository, userID, code string) error {
	now := m.now()
	if err := tx.InvalidateOpenOTPs(ctx, userID, now); err != nil {
		return fmt.Errorf("invalidate otps: %w", err)
	}
	hash, err := m.hasher.HashSecret(code)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}
	return tx.InsertOTP(ctx, OTP{
		ID:        uuid.NewString(),
		UserID:    userID,
		CodeHash:  hash,
		ExpiresAt: now.Add(OTPTTL),
		Valid:     true,
	})
}

// ValidateOTP checks code against the user's open OTP. Attempt counters are
// committed even when the code is wrong.
func (m *Manager) ValidateOTP(ctx context.Context, userID, code string) error {
	tx, committer, err := m.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = committer.Rollback(ctx) }()

	otp, err := tx.GetOpenOTPForUpdate(ctx, userID, m.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrExpiredOTP
		}
		return fmt.Errorf("get otp: %w", err)
	}

	if otp.Attempt >= OTPMaxAttempts {
		if err := tx.UpdateOTPState(ctx, otp.ID, otp.Attempt, false, false); err != nil {
			return fmt.Errorf("invalidate otp: %w", err)
		}
		if err := committer.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return ErrMaxOTPAttempts
	}

	attempt := otp.Attempt + 1
	if !m.hasher.CompareSecret(otp.CodeHash, code) {
		remaining := OTPMaxAttempts - attempt
		if err := tx.UpdateOTPState(ctx, otp.ID, attempt, remaining > 0, false); err != nil {
			return fmt.Errorf("record otp attempt: %w", err)
		}
		if err := committer.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		m.logger.Info().Str("user_id", userID).Int("attempt", attempt).Msg("wrong otp submitted")
		return ErrInvalidOTP.WithMessage(fmt.Sprintf("Invalid OTP. %d attempts remaining.", remaining))
	}

	if err := tx.UpdateOTPState(ctx, otp.ID, attempt, false, true); err != nil {
		return fmt.Errorf("mark otp verified: %w", err)
	}
	if err := committer.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
