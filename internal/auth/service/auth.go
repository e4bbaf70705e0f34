package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/observability"
	"github.com/aussiebroadwan/quackwell/internal/auth/store"
	"github.com/aussiebroadwan/quackwell/pkg/cryptox"
	"github.com/aussiebroadwan/quackwell/pkg/idx"
	"github.com/aussiebroadwan/quackwell/pkg/jwtx"
	"github.com/aussiebroadwan/quackwell/pkg/slogx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// UnusablePasswordHash is stored for federated accounts. It is not a bcrypt
// digest, so no password ever verifies against it.
const UnusablePasswordHash = "!"

const tracerName = "github.com/aussiebroadwan/quackwell/internal/auth/service"

// RegisterInput is the data needed to create a password account.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Role     domain.Role // defaults to client
}

// ExternalIdentity is what a federated provider tells us about a user.
type ExternalIdentity struct {
	Email       string
	DisplayName string
}

// AuthService owns every credential and token flow: registration, login,
// federated login, access renewal, logout and the password reset flow.
type AuthService struct {
	Store   store.Store
	Hasher  PasswordHasher
	Access  TokenCodec
	Refresh TokenCodec
	Reset   TokenCodec
	Mailer  Mailer

	// ResetURLBase is the frontend origin the reset link points at.
	ResetURLBase string

	Metrics *observability.Metrics
	Tracer  trace.Tracer
	Now     func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AuthService) tracer() trace.Tracer {
	if s.Tracer != nil {
		return s.Tracer
	}
	return otel.Tracer(tracerName)
}

func (s *AuthService) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer().Start(ctx, "AuthService."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail accepts a bare RFC 5322 address, the only form the mailer can
// deliver to.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Name == "" && addr.Address == email
}

// Register creates a password account. Email and username must be unused,
// including by soft deleted accounts.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (u domain.User, err error) {
	ctx, span := s.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" || in.Password == "" || !validEmail(email) {
		return domain.User{}, fail(ErrBadRequest, "REGISTER_INVALID", "validate input")
	}

	role := in.Role
	if role == "" {
		role = domain.RoleClient
	}
	if !role.Assignable() {
		return domain.User{}, fail(ErrBadRequest, "REGISTER_INVALID_ROLE", "validate role")
	}

	if err := s.ensureAvailable(ctx, "", email, username); err != nil {
		return domain.User{}, err
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, cryptox.ErrPasswordTooLong) {
			return domain.User{}, fail(ErrBadRequest, "REGISTER_PASSWORD_TOO_LONG", "hash password")
		}
		return domain.User{}, internal("REGISTER_FAILED", "hash password", err)
	}

	now := s.now()
	u = domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, fail(ErrConflict, "REGISTER_CONFLICT", "create user")
		}
		return domain.User{}, internal("REGISTER_FAILED", "create user", err)
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", u.ID, "role", u.Role)
	u.PasswordHash = ""
	return u, nil
}

// ensureAvailable reports ErrConflict when email or username belongs to an
// account other than selfID.
func (s *AuthService) ensureAvailable(ctx context.Context, selfID, email, username string) error {
	return checkAvailable(ctx, s.Store.Users(), selfID, email, username)
}

func checkAvailable(ctx context.Context, users store.Users, selfID, email, username string) error {
	if email != "" {
		existing, err := users.GetUserByEmailIncludingDeleted(ctx, email)
		switch {
		case err == nil && existing.ID != selfID:
			return fail(ErrConflict, "EMAIL_TAKEN", "check email")
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return internal("LOOKUP_FAILED", "check email", err)
		}
	}
	if username != "" {
		existing, err := users.GetUserByUsernameIncludingDeleted(ctx, username)
		switch {
		case err == nil && existing.ID != selfID:
			return fail(ErrConflict, "USERNAME_TAKEN", "check username")
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return internal("LOOKUP_FAILED", "check username", err)
		}
	}
	return nil
}

// Login checks a password and starts a new session. An unknown email and a
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (pair domain.TokenPair, u domain.User, err error) {
	ctx, span := s.startSpan(ctx, "Login")
	defer func() {
		s.Metrics.RecordLogin("password", err)
		endSpan(span, err)
	}()

	u, err = s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, domain.User{}, fail(ErrUnauthorized, "LOGIN_FAILED", "lookup user")
		}
		return domain.TokenPair{}, domain.User{}, internal("LOGIN_FAILED", "lookup user", err)
	}

	if password == "" || !s.Hasher.Verify(password, u.PasswordHash) {
		slogx.FromContext(ctx).Info("login rejected", "user_id", u.ID)
		return domain.TokenPair{}, domain.User{}, fail(ErrUnauthorized, "LOGIN_FAILED", "verify password")
	}

	pair, err = s.issueSession(ctx, u)
	if err != nil {
		return domain.TokenPair{}, domain.User{}, err
	}

	u.PasswordHash = ""
	return pair, u, nil
}

// FederatedLogin signs in a user vouched for by an external provider,
// creating a client account on first sight.
func (s *AuthService) FederatedLogin(ctx context.Context, ext ExternalIdentity) (pair domain.TokenPair, u domain.User, err error) {
	ctx, span := s.startSpan(ctx, "FederatedLogin")
	defer func() {
		s.Metrics.RecordLogin("federated", err)
		endSpan(span, err)
	}()

	email := normalizeEmail(ext.Email)
	if email == "" {
		return domain.TokenPair{}, domain.User{}, fail(ErrBadRequest, "FEDERATED_NO_EMAIL", "validate identity")
	}

	u, err = s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		u, err = s.createFederatedUser(ctx, email, ext.DisplayName)
		if err != nil {
			return domain.TokenPair{}, domain.User{}, err
		}
	default:
		return domain.TokenPair{}, domain.User{}, internal("FEDERATED_FAILED", "lookup user", err)
	}

	pair, err = s.issueSession(ctx, u)
	if err != nil {
		return domain.TokenPair{}, domain.User{}, err
	}

	u.PasswordHash = ""
	return pair, u, nil
}

func (s *AuthService) createFederatedUser(ctx context.Context, email, displayName string) (domain.User, error) {
	username, err := s.freeUsername(ctx, usernameFrom(displayName, email))
	if err != nil {
		return domain.User{}, err
	}

	now := s.now()
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		Username:     username,
		PasswordHash: UnusablePasswordHash,
		Role:         domain.RoleClient,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		return domain.User{}, internal("FEDERATED_CREATE_FAILED", "create user", err)
	}

	slogx.FromContext(ctx).Info("federated user created", "user_id", u.ID)
	return u, nil
}

// usernameFrom derives a username from the provider's display name, falling
// back to the local part of the email.
func usernameFrom(displayName, email string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-', r == '.':
			return r
		case unicode.IsSpace(r):
			return '_'
		default:
			return -1
		}
	}, strings.TrimSpace(displayName))

	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	if name == "" {
		name = "user"
	}
	return name
}

const maxUsernameProbes = 10

// freeUsername returns base, or base with a numeric suffix, whichever is not
// yet taken. After a few probes it falls back to a random suffix.
func (s *AuthService) freeUsername(ctx context.Context, base string) (string, error) {
	for i := 0; i < maxUsernameProbes; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s%d", base, i+1)
		}

		_, err := s.Store.Users().GetUserByUsernameIncludingDeleted(ctx, candidate)
		if errors.Is(err, store.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", internal("FEDERATED_CREATE_FAILED", "probe username", err)
		}
	}

	id := idx.New().String()
	return base + "_" + strings.ToLower(id[len(id)-6:]), nil
}

// RefreshAccessToken returns a new access token for a refresh token that is
// authentic, unexpired and still the user's current one. The refresh token
// itself is not rotated.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (access string, err error) {
	ctx, span := s.startSpan(ctx, "RefreshAccessToken")
	defer func() { endSpan(span, err) }()

	if refreshToken == "" {
		return "", fail(ErrUnauthorized, "REFRESH_MISSING", "read token")
	}

	claims, err := s.Refresh.Verify(refreshToken)
	if err != nil {
		slogx.FromContext(ctx).Debug("refresh token rejected", "err", err)
		return "", fail(ErrUnauthorized, "REFRESH_INVALID", "verify token")
	}

	u, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fail(ErrUnauthorized, "REFRESH_UNKNOWN_USER", "lookup user")
		}
		return "", internal("REFRESH_FAILED", "lookup user", err)
	}

	if u.RefreshTokenHash == nil || !cryptox.FingerprintsEqual(*u.RefreshTokenHash, cryptox.FingerprintToken(refreshToken)) {
		return "", fail(ErrUnauthorized, "REFRESH_SUPERSEDED", "compare token")
	}

	access, err = s.Access.Issue(jwtx.NewClaims(u.ID, u.Username, string(u.Role)))
	if err != nil {
		return "", internal("REFRESH_FAILED", "issue access token", err)
	}
	s.Metrics.RecordTokenIssued(string(jwtx.KindAccess))
	return access, nil
}

// Logout ends the user's session by forgetting the refresh token. Unknown
// users are ignored.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	err := s.Store.Users().UpdateUserFields(ctx, userID, domain.UserFields{RefreshTokenHash: domain.Ptr("")})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return internal("LOGOUT_FAILED", "clear refresh token", err)
	}
	return nil
}

// issueSession signs an access and refresh pair for u and records the
// refresh token as the user's only live one, replacing any previous session.
func (s *AuthService) issueSession(ctx context.Context, u domain.User) (domain.TokenPair, error) {
	claims := jwtx.NewClaims(u.ID, u.Username, string(u.Role))

	access, err := s.Access.Issue(claims)
	if err != nil {
		return domain.TokenPair{}, internal("SESSION_FAILED", "issue access token", err)
	}
	refresh, err := s.Refresh.Issue(claims)
	if err != nil {
		return domain.TokenPair{}, internal("SESSION_FAILED", "issue refresh token", err)
	}

	fp := cryptox.FingerprintToken(refresh)
	if err := s.Store.Users().UpdateUserFields(ctx, u.ID, domain.UserFields{RefreshTokenHash: &fp}); err != nil {
		return domain.TokenPair{}, internal("SESSION_FAILED", "store refresh token", err)
	}

	s.Metrics.RecordTokenIssued(string(jwtx.KindAccess))
	s.Metrics.RecordTokenIssued(string(jwtx.KindRefresh))
	slogx.FromContext(ctx).Info("session issued", "user_id", u.ID)

	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
