package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/quackwell/pkg/jwtx"
)

// PasswordHasher hashes and checks user passwords. cryptox.Bcrypt is the
// production implementation.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// TokenCodec issues and verifies one kind of signed token. *jwtx.Codec
// implements it.
type TokenCodec interface {
	Issue(claims jwtx.Claims) (string, error)
	Verify(token string) (jwtx.Claims, error)
	TTL() time.Duration
}

// Mailer delivers the password reset link. Implementations own retries.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, address, link string) error
}

// AccessRenewer exchanges a refresh token for a fresh access token.
// AuthService implements it; the Authorizer depends on it.
type AccessRenewer interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
}
