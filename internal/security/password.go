package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost = 10
	AdminCost   = 12

	// MaxPasswordBytes is the most bcrypt will read.
	MaxPasswordBytes = 72
)

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Hasher wraps bcrypt with a fixed cost factor.
type Hasher struct {
	Cost int
}

func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return Hasher{Cost: cost}
}

func (h Hasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	cost := h.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches digest. Malformed or empty digests
// never match.
func (h Hasher) Verify(password string, digest string) bool {
	if digest == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	return err == nil
}

// VerifyPtr is Verify for nullable columns.
func (h Hasher) VerifyPtr(password string, digest *string) bool {
	if digest == nil {
		return false
	}
	return h.Verify(password, *digest)
}
