package passwords

// Package passwords provides the bcrypt-backed password hasher.

import (
	"fmt"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for new hashes.
const DefaultCost = 12

// maxPasswordBytes is the bcrypt input limit; longer inputs are rejected rather than truncated.
const maxPasswordBytes = 72

var _ ports.PasswordHasher = (*BcryptHasher)(nil)

// BcryptHasher implements ports.PasswordHasher.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, clamped to bcrypt's valid range.
// A zero cost selects DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	switch {
	case cost == 0:
		cost = DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost returns the configured work factor.
func (h *BcryptHasher) Cost() int { return h.cost }

// Hash returns the bcrypt encoding of plaintext, salt and cost included.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", domainauth.ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(out), nil
}

// Verify compares plaintext against a stored hash in constant time.
// Any error from bcrypt, including a malformed hash, counts as a mismatch.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	if hash == "" || len(plaintext) > maxPasswordBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
