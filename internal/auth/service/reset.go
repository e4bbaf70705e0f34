package service

import (
	"context"
	"errors"
	"strings"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/store"
	"github.com/aussiebroadwan/quackwell/pkg/cryptox"
	"github.com/aussiebroadwan/quackwell/pkg/jwtx"
	"github.com/aussiebroadwan/quackwell/pkg/slogx"
)

// GenerateResetToken issues a single use password reset token for the user
// and stores its fingerprint and expiry, replacing any earlier one.
func (s *AuthService) GenerateResetToken(ctx context.Context, userID string) (string, error) {
	token, err := s.Reset.Issue(jwtx.NewResetClaims(userID))
	if err != nil {
		return "", internal("RESET_GENERATE_FAILED", "issue reset token", err)
	}

	fp := cryptox.FingerprintToken(token)
	expiry := s.now().Add(s.Reset.TTL())

	err = s.Store.Users().UpdateUserFields(ctx, userID, domain.UserFields{
		ResetTokenHash:   &fp,
		ResetTokenExpiry: &expiry,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fail(ErrNotFound, "RESET_UNKNOWN_USER", "store reset token")
		}
		return "", internal("RESET_GENERATE_FAILED", "store reset token", err)
	}

	s.Metrics.RecordTokenIssued(string(jwtx.KindReset))
	return token, nil
}

// VerifyResetToken returns the user a reset token belongs to, provided it is
// authentic, unexpired and still the one on record.
func (s *AuthService) VerifyResetToken(ctx context.Context, token string) (userID string, err error) {
	ctx, span := s.startSpan(ctx, "VerifyResetToken")
	defer func() {
		s.Metrics.RecordPasswordReset("verify", err)
		endSpan(span, err)
	}()

	u, err := s.resetTokenOwner(ctx, token)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func (s *AuthService) resetTokenOwner(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, fail(ErrUnauthorized, "RESET_TOKEN_MISSING", "read token")
	}

	claims, err := s.Reset.Verify(token)
	if err != nil {
		slogx.FromContext(ctx).Debug("reset token rejected", "err", err)
		return domain.User{}, fail(ErrUnauthorized, "RESET_TOKEN_INVALID", "verify token")
	}

	u, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, fail(ErrUnauthorized, "RESET_TOKEN_INVALID", "lookup user")
		}
		return domain.User{}, internal("RESET_VERIFY_FAILED", "lookup user", err)
	}

	if u.ResetTokenHash == nil || !cryptox.FingerprintsEqual(*u.ResetTokenHash, cryptox.FingerprintToken(token)) {
		return domain.User{}, fail(ErrUnauthorized, "RESET_TOKEN_SUPERSEDED", "compare token")
	}
	if u.ResetTokenExpiry == nil || !s.now().Before(*u.ResetTokenExpiry) {
		return domain.User{}, fail(ErrUnauthorized, "RESET_TOKEN_EXPIRED", "check expiry")
	}

	return u, nil
}

// ResetPassword sets a new password using a reset token. The token is
// consumed by a conditional update, so it works at most once even under
// concurrent use.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, span := s.startSpan(ctx, "ResetPassword")
	defer func() {
		s.Metrics.RecordPasswordReset("reset", err)
		endSpan(span, err)
	}()

	if token == "" || newPassword == "" {
		return fail(ErrBadRequest, "RESET_INVALID", "validate input")
	}

	u, err := s.resetTokenOwner(ctx, token)
	if err != nil {
		return err
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, cryptox.ErrPasswordTooLong) {
			return fail(ErrBadRequest, "RESET_PASSWORD_TOO_LONG", "hash password")
		}
		return internal("RESET_FAILED", "hash password", err)
	}

	ok, err := s.Store.Users().ConsumeResetToken(ctx, u.ID, cryptox.FingerprintToken(token), s.now(), hash)
	if err != nil {
		return internal("RESET_FAILED", "consume reset token", err)
	}
	if !ok {
		return fail(ErrUnauthorized, "RESET_TOKEN_CONSUMED", "consume reset token")
	}

	slogx.FromContext(ctx).Info("password reset", "user_id", u.ID)
	return nil
}

// RequestPasswordReset mails a reset link to the account holder.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	ctx, span := s.startSpan(ctx, "RequestPasswordReset")
	defer func() {
		s.Metrics.RecordPasswordReset("request", err)
		endSpan(span, err)
	}()

	u, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(ErrNotFound, "RESET_UNKNOWN_EMAIL", "lookup user")
		}
		return internal("RESET_REQUEST_FAILED", "lookup user", err)
	}

	token, err := s.GenerateResetToken(ctx, u.ID)
	if err != nil {
		return err
	}

	link := ResetLink(s.ResetURLBase, token)
	if err := s.Mailer.SendPasswordResetEmail(ctx, u.Email, link); err != nil {
		s.Metrics.RecordMail(err)
		return internal("RESET_MAIL_FAILED", "send reset email", err)
	}
	s.Metrics.RecordMail(nil)

	slogx.FromContext(ctx).Info("password reset requested", "user_id", u.ID)
	return nil
}

// ResetLink builds "<base>/reset-password/<token>".
func ResetLink(base, token string) string {
	return strings.TrimRight(base, "/") + "/reset-password/" + token
}
