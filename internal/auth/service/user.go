package service

import (
	"context"
	"errors"
	"strings"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/store"
	"github.com/aussiebroadwan/quackwell/pkg/slogx"
)

// ProfileUpdate is a partial edit of the caller's own profile.
type ProfileUpdate struct {
	Email           *string
	Username        *string
	ProfileImageURL *string
}

type UserService struct {
	Store store.Store
}

// Profile returns the live user with id, without the password hash.
func (s *UserService) Profile(ctx context.Context, id string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, fail(ErrNotFound, "USER_NOT_FOUND", "get profile")
		}
		return domain.User{}, internal("PROFILE_FAILED", "get profile", err)
	}
	u.PasswordHash = ""
	return u, nil
}

// UpdateProfile edits the caller's email, username or picture. A new email or
// username must not belong to any other account.
func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (domain.User, error) {
	var fields domain.UserFields

	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if !validEmail(email) {
			return domain.User{}, fail(ErrBadRequest, "PROFILE_INVALID", "validate email")
		}
		fields.Email = &email
	}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return domain.User{}, fail(ErrBadRequest, "PROFILE_INVALID", "validate username")
		}
		fields.Username = &username
	}
	if in.ProfileImageURL != nil {
		url := strings.TrimSpace(*in.ProfileImageURL)
		fields.ProfileImageURL = &url
	}

	if fields.IsEmpty() {
		return s.Profile(ctx, id)
	}
	if _, err := s.Profile(ctx, id); err != nil {
		return domain.User{}, err
	}

	var email, username string
	if fields.Email != nil {
		email = *fields.Email
	}
	if fields.Username != nil {
		username = *fields.Username
	}
	if err := checkAvailable(ctx, s.Store.Users(), id, email, username); err != nil {
		return domain.User{}, err
	}

	if err := s.Store.Users().UpdateUserFields(ctx, id, fields); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.User{}, fail(ErrNotFound, "USER_NOT_FOUND", "update profile")
		case errors.Is(err, store.ErrAlreadyExists):
			return domain.User{}, fail(ErrConflict, "PROFILE_CONFLICT", "update profile")
		default:
			return domain.User{}, internal("PROFILE_FAILED", "update profile", err)
		}
	}

	slogx.FromContext(ctx).Info("profile updated", "user_id", id)
	return s.Profile(ctx, id)
}

// DeleteAccount soft deletes the user and ends their session. The email and
// username stay reserved.
func (s *UserService) DeleteAccount(ctx context.Context, id string) error {
	err := s.Store.Users().UpdateUserFields(ctx, id, domain.UserFields{
		Deleted:          domain.Ptr(true),
		RefreshTokenHash: domain.Ptr(""),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(ErrNotFound, "USER_NOT_FOUND", "delete account")
		}
		return internal("DELETE_FAILED", "delete account", err)
	}

	slogx.FromContext(ctx).Info("account deleted", "user_id", id)
	return nil
}

// ListUsers returns every live account, without password hashes.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.Store.Users().ListUsers(ctx)
	if err != nil {
		return nil, internal("LIST_USERS_FAILED", "list users", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}
