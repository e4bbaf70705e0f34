package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind separates the token families we sign. It is written into the JOSE
// "typ" header so a token of one kind never verifies as another, even when
// two codecs share a secret.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindReset   Kind = "reset"
)

func (k Kind) header() string { return string(k) + "+jwt" }

// Codec signs and verifies HS256 tokens of a single kind with its own
// secret and lifetime.
type Codec struct {
	kind   Kind
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithLeeway allows small clock skew when validating exp/nbf.
func WithLeeway(d time.Duration) Option {
	return func(c *Codec) { c.leeway = d }
}

// NewCodec creates a codec for the given kind. A non-positive ttl falls back
// to the default for that kind.
func NewCodec(kind Kind, secret string, ttl time.Duration, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoSecret, kind)
	}

	if ttl <= 0 {
		ttl = defaultTTL(kind)
	}

	c := &Codec{
		kind:   kind,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func defaultTTL(kind Kind) time.Duration {
	switch kind {
	case KindRefresh:
		return DefaultRefreshTokenTTL
	case KindReset:
		return DefaultResetTokenTTL
	default:
		return DefaultAccessTokenTTL
	}
}

// Kind returns the token family this codec handles.
func (c *Codec) Kind() Kind { return c.kind }

// TTL returns the lifetime given to issued tokens.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue stamps iat/exp onto claims and signs them.
func (c *Codec) Issue(claims Claims) (string, error) {
	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["typ"] = c.kind.header()

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign %s token: %w", c.kind, err)
	}
	return signed, nil
}

// Verify validates the token and returns its claims.
//
// ErrExpired is only returned once the signature has been checked, so an
// expired token is always an authentic one. Every other failure is a
// different sentinel and must be treated as invalid.
func (c *Codec) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithTimeFunc(c.now),
		jwt.WithLeeway(c.leeway),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		// Only HS256, never trust the header to pick the algorithm
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrAlgMismatch
		}

		if typ, _ := t.Header["typ"].(string); typ != c.kind.header() {
			return nil, ErrKindMismatch
		}

		return c.secret, nil
	})
	if err != nil {
		return Claims{}, mapParseError(err)
	}

	if !token.Valid {
		return Claims{}, ErrInvalidClaim
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidClaim)
	}

	return *claims, nil
}

func mapParseError(err error) error {
	var sentinel error
	switch {
	case errors.Is(err, ErrAlgMismatch):
		sentinel = ErrAlgMismatch
	case errors.Is(err, ErrKindMismatch):
		sentinel = ErrKindMismatch
	case errors.Is(err, jwt.ErrTokenMalformed):
		sentinel = ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		sentinel = ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenExpired):
		sentinel = ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		sentinel = ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		sentinel = ErrInvalidClaim
	default:
		sentinel = ErrMalformed
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
