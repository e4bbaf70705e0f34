package service

import (
	"context"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/observability"
	"github.com/aussiebroadwan/quackwell/pkg/jwtx"
	"github.com/aussiebroadwan/quackwell/pkg/slogx"
)

// Identity is the authenticated caller, derived from access token claims.
type Identity struct {
	ID       string
	Username string
	Role     domain.Role
}

// PresentedTokens are the credentials a request carried.
type PresentedTokens struct {
	Bearer        string // from "Authorization: Bearer"
	AccessCookie  string // access_token cookie
	RefreshCookie string // refresh_token cookie
}

// DenyReason says why a request was refused.
type DenyReason string

const (
	DenyMissingToken       DenyReason = "missing_token"
	DenyInvalidToken       DenyReason = "invalid_token"
	DenyRefreshMissing     DenyReason = "refresh_missing"
	DenyRefreshFailed      DenyReason = "refresh_failed"
	DenyInsufficientRole   DenyReason = "insufficient_role"
	DenyVerificationFailed DenyReason = "verification_failed"
)

// Decision is the outcome of Authorize.
//
// RenewedAccessToken is set whenever the guard renewed an expired token,
// even if the role check then denied, so the caller can still hand the new
// cookie back.
type Decision struct {
	Allowed            bool
	Identity           *Identity // nil for public routes and denials
	RenewedAccessToken string
	Reason             DenyReason
}

func allow(id *Identity, renewed string) Decision {
	return Decision{Allowed: true, Identity: id, RenewedAccessToken: renewed}
}

func deny(reason DenyReason, renewed string) Decision {
	return Decision{Reason: reason, RenewedAccessToken: renewed}
}

// Authorizer is the single authentication and role check applied to every
// protected route. It never returns an error: anything unexpected denies.
type Authorizer struct {
	access  TokenCodec
	renewer AccessRenewer
	metrics *observability.Metrics
}

func NewAuthorizer(access TokenCodec, renewer AccessRenewer, metrics *observability.Metrics) *Authorizer {
	return &Authorizer{access: access, renewer: renewer, metrics: metrics}
}

// Authorize decides whether a request presenting tokens may access a route
// requiring one of the given roles.
//
// The access token is read from the bearer header, else the access cookie.
// An expired (but authentic) access token is renewed exactly once with the
// refresh cookie. A token that fails verification for any other reason is
// denied without trying to renew.
func (a *Authorizer) Authorize(ctx context.Context, required []domain.Role, presented PresentedTokens) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			slogx.FromContext(ctx).Error("authorizer panic", "panic", r)
			d = deny(DenyVerificationFailed, "")
		}
		a.metrics.RecordDecision(d.Allowed, string(d.Reason))
	}()

	if domain.AllowsAnyone(required) {
		return allow(nil, "")
	}

	token := presented.Bearer
	if token == "" {
		token = presented.AccessCookie
	}
	if token == "" {
		return deny(DenyMissingToken, "")
	}

	claims, err := a.access.Verify(token)
	switch {
	case err == nil:
		return decideRole(required, identityFrom(claims), "")
	case jwtx.IsExpired(err):
		return a.renew(ctx, required, presented.RefreshCookie)
	default:
		slogx.FromContext(ctx).Debug("access token rejected", "err", err)
		return deny(DenyInvalidToken, "")
	}
}

func (a *Authorizer) renew(ctx context.Context, required []domain.Role, refreshToken string) Decision {
	log := slogx.FromContext(ctx)

	if refreshToken == "" {
		return deny(DenyRefreshMissing, "")
	}

	renewed, err := a.renewer.RefreshAccessToken(ctx, refreshToken)
	a.metrics.RecordRefresh("guard", err)
	if err != nil {
		log.Info("access renewal failed", "err", err)
		return deny(DenyRefreshFailed, "")
	}

	claims, err := a.access.Verify(renewed)
	if err != nil {
		log.Error("renewed access token did not verify", "err", err)
		return deny(DenyVerificationFailed, "")
	}

	log.Debug("access token renewed", "user_id", claims.Subject)
	return decideRole(required, identityFrom(claims), renewed)
}

func decideRole(required []domain.Role, id *Identity, renewed string) Decision {
	if !domain.HasRole(required, id.Role) {
		return deny(DenyInsufficientRole, renewed)
	}
	return allow(id, renewed)
}

func identityFrom(c jwtx.Claims) *Identity {
	return &Identity{
		ID:       c.Subject,
		Username: c.Username,
		Role:     domain.Role(c.Role),
	}
}
