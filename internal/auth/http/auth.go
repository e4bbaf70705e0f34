package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/service"
	"github.com/aussiebroadwan/quackwell/pkg/authsdk"
	"github.com/aussiebroadwan/quackwell/pkg/httpx"
)

type AuthHandler struct {
	*Router
}

// Register creates a client account.
//
//	@Summary		Register
//	@Description	Creates a client account. Admins are created from the command line.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"Account details"
//	@Success		201		{object}	authsdk.UserResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Missing or malformed fields"
//	@Failure		409		{object}	authsdk.ErrorResponse	"Email or username already in use"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request, _ *service.Identity) {
	var req authsdk.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, err := h.deps.Auth.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     domain.RoleClient,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, userResponse(u))
}

// Login checks a password and starts a session.
//
//	@Summary		Login
//	@Description	Returns an access and refresh token pair and sets both as HTTP-only cookies. Logging in again replaces the previous refresh token.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed body"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid email or password"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Too many attempts"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request, _ *service.Identity) {
	var req authsdk.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pair, u, err := h.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			authsdk.ErrInvalidCredentials.WriteError(w)
			return
		}
		writeServiceError(w, r, err)
		return
	}

	h.setSessionCookies(w, pair.AccessToken, pair.RefreshToken)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         userResponse(u),
	})
}

// Logout ends the caller's session.
//
//	@Summary		Logout
//	@Description	Forgets the stored refresh token and clears both cookies.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request, id *service.Identity) {
	if err := h.deps.Auth.Logout(r.Context(), id.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// Refresh issues a new access token.
//
//	@Summary		Refresh access token
//	@Description	Exchanges the refresh token (body or refresh_token cookie) for a new access token. The refresh token itself is not rotated.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	false	"Refresh token, optional when the cookie is sent"
//	@Success		200		{object}	authsdk.AccessTokenResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"Refresh token missing, invalid, expired or superseded"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request, _ *service.Identity) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	token := req.RefreshToken
	if token == "" {
		token = httpx.CookieValue(r, RefreshCookie)
	}

	access, err := h.deps.Auth.RefreshAccessToken(r.Context(), token)
	h.deps.Metrics.RecordRefresh("endpoint", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.setAccessCookie(w, access)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.AccessTokenResponse{AccessToken: access})
}

// ForgotPassword emails a reset link.
//
//	@Summary		Request a password reset
//	@Description	Emails a single use link, valid for one hour, to the account holder.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ForgotPasswordRequest	true	"Account email"
//	@Success		202		{object}	authsdk.MessageResponse
//	@Failure		404		{object}	authsdk.ErrorResponse	"No account with that email"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Mail could not be sent"
//	@Router			/v1/auth/forgot-password [post].
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request, _ *service.Identity) {
	var req authsdk.ForgotPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.deps.Auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, authsdk.MessageResponse{Message: "password reset email sent"})
}

// VerifyResetToken checks a reset link before the user picks a password.
//
//	@Summary		Verify a reset token
//	@Tags			Auth
//	@Produce		json
//	@Param			token	path		string	true	"Reset token"
//	@Success		200		{object}	authsdk.ResetTokenResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"Token invalid, expired or already used"
//	@Router			/v1/auth/reset-password/{token} [get].
func (h *AuthHandler) VerifyResetToken(w http.ResponseWriter, r *http.Request, _ *service.Identity) {
	userID, err := h.deps.Auth.VerifyResetToken(r.Context(), r.PathValue("token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.ResetTokenResponse{UserID: userID})
}

// ResetPassword sets a new password with a reset token.
//
//	@Summary		Reset password
//	@Description	Consumes the reset token; a token works exactly once.
//	@Tags			Auth
//	@Accept			json
//	@Param			request	body	authsdk.ResetPasswordRequest	true	"Token and new password"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"Missing token or password"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Token invalid, expired or already used"
//	@Router			/v1/auth/reset-password [post].
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request, _ *service.Identity) {
	var req authsdk.ResetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.deps.Auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
