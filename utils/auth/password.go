package auth

import (
	"errors"
	"fmt"

	"github.com/sahilchouksey/univast-api/utils/validation"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", validation.PasswordMinLength)
	ErrPasswordMismatch = errors.New("password does not match")
)

// DefaultCost is the default bcrypt cost
const DefaultCost = 12

// PasswordHasher turns a plain secret into an opaque stored value and back.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// BcryptHasher is the production PasswordHasher.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher using DefaultCost
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: DefaultCost}
}

// Hash generates a bcrypt hash of the password
func (h *BcryptHasher) Hash(password string) (string, error) {
	if ok, _ := validation.ValidatePassword(password); !ok {
		return "", ErrPasswordTooShort
	}

	cost := h.Cost
	if cost == 0 {
		cost = DefaultCost
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}

	return string(hashedBytes), nil
}

// Verify checks if the provided password matches the hash
func (h *BcryptHasher) Verify(hashedPassword, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	}
	return nil
}
