package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eventviewer/server/internal/domain/users"
)

// memRepo is an in-memory Repository. BeginTx works on a copy of the state
// that replaces the parent's only on Commit.
type memRepo struct {
	mu     *sync.Mutex
	state  *memState
	parent *memRepo
}

type memState struct {
	seq       int
	users     map[string]users.User
	refresh   map[string]RefreshToken
	order     map[string]int
	blacklist map[string]BlacklistedToken
	otps      map[string]OTP
	resets    map[string]ResetToken
}

func newMemRepo() *memRepo {
	return &memRepo{mu: &sync.Mutex{}, state: &memState{
		users:     map[string]users.User{},
		refresh:   map[string]RefreshToken{},
		order:     map[string]int{},
		blacklist: map[string]BlacklistedToken{},
		otps:      map[string]OTP{},
		resets:    map[string]ResetToken{},
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		seq:       s.seq,
		users:     map[string]users.User{},
		refresh:   map[string]RefreshToken{},
		order:     map[string]int{},
		blacklist: map[string]BlacklistedToken{},
		otps:      map[string]OTP{},
		resets:    map[string]ResetToken{},
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.refresh {
		c.refresh[k] = v
	}
	for k, v := range s.order {
		c.order[k] = v
	}
	for k, v := range s.blacklist {
		c.blacklist[k] = v
	}
	for k, v := range s.otps {
		c.otps[k] = v
	}
	for k, v := range s.resets {
		c.resets[k] = v
	}
	return c
}

func (r *memRepo) lock() func() {
	if r.parent != nil {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *memRepo) addUser(u users.User) {
	defer r.lock()()
	r.state.users[u.ID] = u
}

func (r *memRepo) pool(ownerID string) []RefreshToken {
	defer r.lock()()
	return r.listRefresh(ownerID)
}

func (r *memRepo) openOTPs(userID string) int {
	defer r.lock()()
	n := 0
	for _, o := range r.state.otps {
		if o.UserID == userID && o.Valid && !o.Verified {
			n++
		}
	}
	return n
}

func (r *memRepo) GetUserByID(_ context.Context, id string) (*users.User, error) {
	defer r.lock()()
	u, ok := r.state.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return &u, nil
}

func (r *memRepo) GetUserByEmail(_ context.Context, email string) (*users.User, error) {
	defer r.lock()()
	for _, u := range r.state.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, users.ErrNotFound
}

func (r *memRepo) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	defer r.lock()()
	u, ok := r.state.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	u.PasswordHash = passwordHash
	r.state.users[userID] = u
	return nil
}

func (r *memRepo) LockUser(_ context.Context, userID string) error {
	defer r.lock()()
	if _, ok := r.state.users[userID]; !ok {
		return users.ErrNotFound
	}
	return nil
}

func (r *memRepo) listRefresh(ownerID string) []RefreshToken {
	var out []RefreshToken
	for _, t := range r.state.refresh {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return r.state.order[out[i].ID] < r.state.order[out[j].ID]
	})
	return out
}

func (r *memRepo) ListRefreshTokens(_ context.Context, ownerID string) ([]RefreshToken, error) {
	defer r.lock()()
	return r.listRefresh(ownerID), nil
}

func (r *memRepo) InsertRefreshToken(_ context.Context, token RefreshToken) error {
	defer r.lock()()
	r.state.seq++
	r.state.order[token.ID] = r.state.seq
	r.state.refresh[token.ID] = token
	return nil
}

func (r *memRepo) ReplaceRefreshToken(_ context.Context, id, tokenHash, device string, expiresAt time.Time) error {
	defer r.lock()()
	t, ok := r.state.refresh[id]
	if !ok {
		return ErrNotFound
	}
	t.TokenHash = tokenHash
	t.Device = device
	t.ExpiresAt = expiresAt
	t.IsRevoked = false
	r.state.refresh[id] = t
	return nil
}

func (r *memRepo) RevokeRefreshToken(_ context.Context, id string) error {
	defer r.lock()()
	t, ok := r.state.refresh[id]
	if !ok {
		return ErrNotFound
	}
	t.IsRevoked = true
	r.state.refresh[id] = t
	return nil
}

func (r *memRepo) RevokeAllRefreshTokens(_ context.Context, ownerID string) error {
	defer r.lock()()
	for id, t := range r.state.refresh {
		if t.OwnerID == ownerID {
			t.IsRevoked = true
			r.state.refresh[id] = t
		}
	}
	return nil
}

func (r *memRepo) InsertBlacklistedToken(_ context.Context, token BlacklistedToken) error {
	defer r.lock()()
	if _, ok := r.state.blacklist[token.TokenHash]; !ok {
		r.state.blacklist[token.TokenHash] = token
	}
	return nil
}

func (r *memRepo) IsTokenBlacklisted(_ context.Context, tokenHash string, now time.Time) (bool, error) {
	defer r.lock()()
	t, ok := r.state.blacklist[tokenHash]
	return ok && t.ExpiresAt.After(now), nil
}

func (r *memRepo) InvalidateOpenOTPs(_ context.Context, userID string, _ time.Time) error {
	defer r.lock()()
	for id, o := range r.state.otps {
		if o.UserID == userID && o.Valid {
			o.Valid = false
			r.state.otps[id] = o
		}
	}
	return nil
}

func (r *memRepo) InsertOTP(_ context.Context, otp OTP) error {
	defer r.lock()()
	r.state.otps[otp.ID] = otp
	return nil
}

func (r *memRepo) GetOpenOTPForUpdate(_ context.Context, userID string, now time.Time) (*OTP, error) {
	defer r.lock()()
	for _, o := range r.state.otps {
		if o.UserID == userID && o.Valid && !o.Verified && o.ExpiresAt.After(now) {
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) UpdateOTPState(_ context.Context, id string, attempt int, valid, verified bool) error {
	defer r.lock()()
	o, ok := r.state.otps[id]
	if !ok {
		return ErrNotFound
	}
	o.Attempt = attempt
	o.Valid = valid
	o.Verified = verified
	r.state.otps[id] = o
	return nil
}

func (r *memRepo) InsertResetToken(_ context.Context, token ResetToken) error {
	defer r.lock()()
	r.state.resets[token.ID] = token
	return nil
}

func (r *memRepo) ListOpenResetTokens(_ context.Context, userID string, now time.Time) ([]ResetToken, error) {
	defer r.lock()()
	var out []ResetToken
	for _, t := range r.state.resets {
		if t.UserID == userID && !t.Verified && t.ExpiresAt.After(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memRepo) DeleteResetToken(_ context.Context, id string) error {
	defer r.lock()()
	delete(r.state.resets, id)
	return nil
}

func (r *memRepo) BeginTx(_ context.Context) (Repository, TxCommitter, error) {
	r.mu.Lock()
	tx := &memRepo{mu: r.mu, state: r.state.clone(), parent: r}
	return tx, &memCommitter{tx: tx}, nil
}

// memCommitter holds the root mutex for the life of the transaction so
// transactions serialize the way row locks make them in Postgres.
type memCommitter struct {
	tx   *memRepo
	done bool
}

func (c *memCommitter) Commit(_ context.Context) error {
	if c.done {
		return nil
	}
	c.done = true
	c.tx.parent.state = c.tx.state
	c.tx.mu.Unlock()
	return nil
}

func (c *memCommitter) Rollback(_ context.Context) error {
	if c.done {
		return nil
	}
	c.done = true
	c.tx.mu.Unlock()
	return nil
}
