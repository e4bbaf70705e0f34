package http

import (
	"net/http"

	"github.com/aussiebroadwan/quackwell/internal/auth/service"
	"github.com/aussiebroadwan/quackwell/pkg/authsdk"
	"github.com/aussiebroadwan/quackwell/pkg/httpx"
)

type UsersHandler struct {
	*Router
}

// Profile returns the caller's account.
//
//	@Summary		Get profile
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Router			/v1/users/profile [get].
func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request, id *service.Identity) {
	u, err := h.deps.Users.Profile(r.Context(), id.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, userResponse(u))
}

// UpdateProfile edits the caller's account.
//
//	@Summary		Update profile
//	@Description	Only the fields present are changed. Email and username must not belong to another account.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.UpdateProfileRequest	true	"Fields to change"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		401		{object}	authsdk.ErrorResponse
//	@Failure		409		{object}	authsdk.ErrorResponse	"Email or username already in use"
//	@Router			/v1/users/profile [put].
func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request, id *service.Identity) {
	var req authsdk.UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, err := h.deps.Users.UpdateProfile(r.Context(), id.ID, service.ProfileUpdate{
		Email:           req.Email,
		Username:        req.Username,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userResponse(u))
}

// DeleteAccount soft deletes the caller's account.
//
//	@Summary		Delete account
//	@Description	The account is hidden and its session ended. Its email and username stay reserved.
//	@Tags			Users
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Router			/v1/users/profile [delete].
func (h *UsersHandler) DeleteAccount(w http.ResponseWriter, r *http.Request, id *service.Identity) {
	if err := h.deps.Users.DeleteAccount(r.Context(), id.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// List returns every live account.
//
//	@Summary		List users
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		authsdk.UserResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Failure		403	{object}	authsdk.ErrorResponse	"Admins only"
//	@Router			/v1/users [get].
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request, _ *service.Identity) {
	users, err := h.deps.Users.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]authsdk.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse(u))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
