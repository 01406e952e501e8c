package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt cost for passwords and stored secrets.
const DefaultHashCost = 10

// Hasher produces salted one-way hashes. Salted hashes cannot be looked up by
// value, so callers scan their candidate rows and Compare each one.
type Hasher struct {
	cost int
}

func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultHashCost
	}
	return Hasher{cost: cost}
}

func (h Hasher) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h Hasher) ComparePassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashSecret hashes a token or OTP. The SHA-256 pre-hash keeps JWTs within
// bcrypt's 72 byte input limit.
func (h Hasher) HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(prehash(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h Hasher) CompareSecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(secret)) == nil
}

func prehash(secret string) []byte {
	digest := sha256.Sum256([]byte(secret))
	return []byte(base64.RawStdEncoding.EncodeToString(digest[:]))
}

// Fingerprint is a deterministic digest used where rows are looked up by token,
// such as the access token blacklist.
func Fingerprint(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
