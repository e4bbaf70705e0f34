package http

import (
	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/pkg/authsdk"
)

func userResponse(u domain.User) authsdk.UserResponse {
	return authsdk.UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		Username:        u.Username,
		Role:            u.Role.String(),
		ProfileImageURL: u.ProfileImageURL,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func todoResponse(t domain.Todo) authsdk.TodoResponse {
	return authsdk.TodoResponse{
		ID:        t.ID,
		Content:   t.Content,
		DueDate:   t.DueDate,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
