package http

import (
	"net/http"

	"github.com/aussiebroadwan/quackwell/internal/auth/federation"
	"github.com/aussiebroadwan/quackwell/internal/auth/service"
	"github.com/aussiebroadwan/quackwell/pkg/authsdk"
	"github.com/aussiebroadwan/quackwell/pkg/httpx"
	"github.com/aussiebroadwan/quackwell/pkg/slogx"
)

type GoogleHandler struct {
	*Router
}

func (h *GoogleHandler) enabled(w http.ResponseWriter) bool {
	if !h.deps.Google.Enabled() || h.deps.State == nil {
		authsdk.ErrUnavailable.WithDescription("google sign-in is not configured").WriteError(w)
		return false
	}
	return true
}

// Start sends the browser to Google.
//
//	@Summary		Sign in with Google
//	@Description	Redirects to Google's consent screen. A sealed state cookie ties the callback to this browser.
//	@Tags			Auth
//	@Success		302
//	@Failure		503	{object}	authsdk.ErrorResponse	"Google sign-in is not configured"
//	@Router			/v1/auth/google [get].
func (h *GoogleHandler) Start(w http.ResponseWriter, r *http.Request, _ *service.Identity) {
	if !h.enabled(w) {
		return
	}

	state, cookie, err := h.deps.State.Issue()
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to issue oauth state", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.SetCookie(w, h.deps.Cookies, federation.StateCookieName, cookie, h.deps.State.TTL())
	http.Redirect(w, r, h.deps.Google.AuthCodeURL(state), http.StatusFound)
}

// Callback completes Google sign-in.
//
//	@Summary		Google sign-in callback
//	@Description	Exchanges the authorization code, signs the user in (creating a client account on first sign-in) and sets both session cookies. Redirects to the frontend when one is configured, otherwise returns the token pair.
//	@Tags			Auth
//	@Produce		json
//	@Param			code	query		string	true	"Authorization code"
//	@Param			state	query		string	true	"OAuth state"
//	@Success		200		{object}	authsdk.LoginResponse
//	@Success		302
//	@Failure		401		{object}	authsdk.ErrorResponse	"State mismatch or Google refused the sign-in"
//	@Failure		503		{object}	authsdk.ErrorResponse	"Google sign-in is not configured"
//	@Router			/v1/auth/google/redirect [get].
func (h *GoogleHandler) Callback(w http.ResponseWriter, r *http.Request, _ *service.Identity) {
	if !h.enabled(w) {
		return
	}

	ctx := r.Context()
	log := slogx.FromContext(ctx)
	q := r.URL.Query()

	cookie := httpx.CookieValue(r, federation.StateCookieName)
	httpx.ClearCookie(w, h.deps.Cookies, federation.StateCookieName)

	if e := q.Get("error"); e != "" {
		log.Info("google sign-in declined", "error", e)
		authsdk.ErrInvalidToken.WithDescription("google sign-in was declined").WriteError(w)
		return
	}

	if err := h.deps.State.Check(cookie, q.Get("state")); err != nil {
		log.Warn("oauth state rejected", "err", err)
		authsdk.ErrInvalidToken.WithDescription("sign-in state mismatch").WriteError(w)
		return
	}

	profile, err := h.deps.Google.Authenticate(ctx, q.Get("code"))
	if err != nil {
		log.Warn("google sign-in failed", "err", err)
		authsdk.ErrInvalidToken.WithDescription("google sign-in failed").WriteError(w)
		return
	}

	pair, u, err := h.deps.Auth.FederatedLogin(ctx, service.ExternalIdentity{
		Email:       profile.Email,
		DisplayName: profile.Name,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.setSessionCookies(w, pair.AccessToken, pair.RefreshToken)

	if h.deps.FrontendURL != "" {
		http.Redirect(w, r, h.deps.FrontendURL, http.StatusFound)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         userResponse(u),
	})
}
