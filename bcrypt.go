package accounts

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHashCost is the bcrypt work factor used for stored credentials.
// Each increment doubles the cost of an offline guess.
const PasswordHashCost = 12

// maxSecretBytes is the bcrypt input limit, longer secrets are rejected
// instead of silently truncated.
const maxSecretBytes = 72

// PasswordHasher hashes and verifies secrets
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

// BcryptHasher implements PasswordHasher using bcrypt
type BcryptHasher struct {
	cost int
}

// HasherOption configures a BcryptHasher
type HasherOption func(*BcryptHasher)

// WithHashCost overrides the work factor, tests use bcrypt.MinCost
func WithHashCost(cost int) HasherOption {
	return func(h *BcryptHasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// NewBcryptHasher returns a hasher with the package cost
func NewBcryptHasher(opts ...HasherOption) *BcryptHasher {
	h := &BcryptHasher{cost: passwordHashCost()}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

var _ PasswordHasher = (*BcryptHasher)(nil)

// Cost returns the configured work factor
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash will generate a password hash with an embedded random salt
func (h *BcryptHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrNoEmptyString
	}

	if len(secret) > maxSecretBytes {
		return "", fmt.Errorf("%w: secret exceeds %d bytes", ErrHashing, maxSecretBytes)
	}

	start := time.Now()
	out, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	passwordHashDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrHashing, err)
	}

	return string(out), nil
}

// Verify reports whether secret matches hash. Malformed hashes and any
// comparison failure return false.
func (h *BcryptHasher) Verify(secret, hash string) bool {
	return ComparePasswordAndHash(secret, hash) == nil
}

// HashPassword will generate a password hash using the default hasher
func HashPassword(password string) (string, error) {
	return NewBcryptHasher().Hash(password)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if len(password) > maxSecretBytes {
		return ErrMismatchedHashAndPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}
