package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/quackwell/internal/auth/service"
	"github.com/aussiebroadwan/quackwell/pkg/authsdk"
	"github.com/aussiebroadwan/quackwell/pkg/httpx"
	"github.com/aussiebroadwan/quackwell/pkg/slogx"
)

// writeServiceError maps a service error kind onto its HTTP response.
// Internal errors are logged with their cause and reported generically.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrBadRequest):
		authsdk.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrUnauthorized):
		authsdk.ErrInvalidToken.WriteError(w)
	case errors.Is(err, service.ErrForbidden):
		authsdk.ErrInsufficientRole.WriteError(w)
	case errors.Is(err, service.ErrNotFound):
		authsdk.ErrNotFound.WriteError(w)
	case errors.Is(err, service.ErrConflict):
		authsdk.ErrConflict.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}

// writeDenial answers a refused authorization. Only a role mismatch is 403;
// every other reason means the caller is not authenticated.
func writeDenial(w http.ResponseWriter, reason service.DenyReason) {
	if reason == service.DenyInsufficientRole {
		authsdk.ErrInsufficientRole.WriteError(w)
		return
	}
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	authsdk.ErrInvalidToken.WithDescription(denialDescription(reason)).WriteError(w)
}

func denialDescription(reason service.DenyReason) string {
	switch reason {
	case service.DenyMissingToken:
		return "no access token was presented"
	case service.DenyRefreshMissing, service.DenyRefreshFailed:
		return "the access token expired and could not be renewed"
	default:
		return "the access token is invalid"
	}
}

// decodeBody decodes a JSON request body, answering 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(w, r, v); err != nil {
		slogx.FromContext(r.Context()).Debug("bad request body", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return false
	}
	return true
}
