package sessions

import (
	"context"
	"fmt"

	"github.com/eventviewer/server/internal/auth"
	"github.com/google/uuid"
)

// SaveNewRefreshToken stores token in the user's pool. A revoked slot is
// reused first; with the pool full the row closest to expiry is overwritten.
func (m *Manager) SaveNewRefreshToken(ctx context.Context, userID string, token auth.Token, device string) error {
	hash, err := m.hasher.HashSecret(token.Value)
	if err != nil {
		return fmt.Errorf("hash refresh token: %w", err)
	}

	return m.withTx(ctx, func(tx Repository) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		pool, err := tx.ListRefreshTokens(ctx, userID)
		if err != nil {
			return fmt.Errorf("list refresh tokens: %w", err)
		}

		for _, slot := range pool {
			if slot.IsRevoked {
				return tx.ReplaceRefreshToken(ctx, slot.ID, hash, device, token.ExpiresAt)
			}
		}
		if len(pool) < MaxRefreshTokens {
			return tx.InsertRefreshToken(ctx, RefreshToken{
				ID:        uuid.NewString(),
				OwnerID:   userID,
				TokenHash: hash,
				Device:    device,
				ExpiresAt: token.ExpiresAt,
			})
		}
		// pool is ordered by expiry so the first row is the oldest.
		m.logger.Debug().Str("user_id", userID).Str("slot_id", pool[0].ID).Msg("refresh pool full, evicting oldest")
		return tx.ReplaceRefreshToken(ctx, pool[0].ID, hash, device, token.ExpiresAt)
	})
}

// RenewAccessToken swaps the presented refresh token for a new pair. The
// matched slot is overwritten in place so the old token cannot be replayed.
func (m *Manager) RenewAccessToken(ctx context.Context, identity auth.Identity, refreshToken string) (auth.TokenPair, error) {
	var pair auth.TokenPair
	err := m.withTx(ctx, func(tx Repository) error {
		if err := tx.LockUser(ctx, identity.UserID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		slot, err := m.matchRefreshToken(ctx, tx, identity.UserID, refreshToken)
		if err != nil {
			return err
		}

		pair, err = m.tokens.IssuePair(identity)
		if err != nil {
			return fmt.Errorf("issue tokens: %w", err)
		}
		hash, err := m.hasher.HashSecret(pair.Refresh.Value)
		if err != nil {
			return fmt.Errorf("hash refresh token: %w", err)
		}
		return tx.ReplaceRefreshToken(ctx, slot.ID, hash, slot.Device, pair.Refresh.ExpiresAt)
	})
	if err != nil {
		return auth.TokenPair{}, err
	}
	return pair, nil
}

// matchRefreshToken finds the non-revoked slot whose hash matches token.
func (m *Manager) matchRefreshToken(ctx context.Context, tx Repository, userID, token string) (*RefreshToken, error) {
	pool, err := tx.ListRefreshTokens(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	for i := range pool {
		if pool[i].IsRevoked {
			continue
		}
		if m.hasher.CompareSecret(pool[i].TokenHash, token) {
			return &pool[i], nil
		}
	}
	return nil, ErrRefreshNotFound
}
