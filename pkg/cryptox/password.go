package cryptox

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost factor used for every stored password.
// Changing it only affects newly hashed passwords.
const PasswordCost = 10

// MaxPasswordBytes is bcrypt's input limit; anything longer would be
// silently truncated so we refuse it instead.
const MaxPasswordBytes = 72

var (
	ErrPasswordMismatch = errors.New("password does not match")
	ErrPasswordTooLong  = errors.New("password exceeds 72 bytes")
)

// Bcrypt hashes and verifies passwords with a fixed cost.
type Bcrypt struct {
	Cost int
}

// NewBcrypt returns a hasher using PasswordCost.
func NewBcrypt() Bcrypt {
	return Bcrypt{Cost: PasswordCost}
}

// Hash returns the salted bcrypt digest of password.
func (b Bcrypt) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	cost := b.Cost
	if cost == 0 {
		cost = PasswordCost
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("cryptox: hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest. Malformed digests (such
// as the placeholder stored for federated users) never match.
func (b Bcrypt) Verify(password, digest string) bool {
	return VerifyPassword(password, digest) == nil
}

// HashPassword hashes password with PasswordCost.
func HashPassword(password string) (string, error) {
	return NewBcrypt().Hash(password)
}

// VerifyPassword compares a plaintext password against a bcrypt digest.
func VerifyPassword(password, digest string) error {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("%w: %v", ErrPasswordMismatch, err)
	}
}
