package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. These can be overridden per codec.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	// Short-lived for security - typical range is 15m to 1h.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	// Longer-lived for user convenience - typical range is 7d to 30d.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	// DefaultResetTokenTTL is the lifetime of a password reset token. The
	// reset email tells the user the link is good for an hour.
	DefaultResetTokenTTL = time.Hour
)

// Claims are the payload of every token we sign. Access and refresh tokens
// carry the username and role; reset tokens only carry the subject.
//
// The wire payload is exactly {sub, username, role, iat, exp}. Keep it that
// way, anything added here ends up in every cookie.
type Claims struct {
	jwt.RegisteredClaims

	// Username of the authenticated user
	Username string `json:"username,omitempty"`

	// Role of the authenticated user ("client", "admin")
	Role string `json:"role,omitempty"`
}

// NewClaims builds the claims for an access or refresh token. Timestamps are
// filled in by the codec at issue time.
func NewClaims(subject, username, role string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Username:         username,
		Role:             role,
	}
}

// NewResetClaims builds the claims for a password reset token.
func NewResetClaims(subject string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}
}

// IssuedAtTime returns the iat claim or the zero time.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime returns the exp claim or the zero time.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
