package jwtx

import (
	"errors"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// Issuer signs claims into a compact JWT.
type Issuer interface {
	Issue(claims Claims) (string, error)
}

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrAlgMismatch  = errors.New("jwtx: algorithm mismatch")
	ErrKindMismatch = errors.New("jwtx: token kind mismatch")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")

	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")

	ErrNoSecret = errors.New("jwtx: signing secret is empty")
)

// IsExpired reports whether err means the token was authentic but has
// passed its expiry. This is the only failure callers may try to recover
// from by renewing.
func IsExpired(err error) bool {
	return errors.Is(err, ErrExpired)
}

// IsInvalid reports whether err is any verification failure other than
// expiry (bad structure, signature, algorithm, kind or claims).
func IsInvalid(err error) bool {
	return err != nil && !IsExpired(err)
}
