package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is the one-way credential hasher used for account passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	// Compare returns nil when plain matches hash.
	Compare(hash, plain string) error
}

var ErrPasswordMismatch = errors.New("password mismatch")

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plain string) (string, error) {
	return hashWithCost(plain, h.cost)
}

func (h *BcryptHasher) Compare(hash, plain string) error {
	err := CheckPassword(hash, plain)
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// Hash password hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	return hashWithCost(plain, bcrypt.DefaultCost)
}

// helper that compares a bcrypt hash with a plaintext password.

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

func hashWithCost(plain string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}
