package store

import (
	"time"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
)

// Assignment is one "column = value" pair of a partial update. A nil Value
// writes NULL.
type Assignment struct {
	Column string
	Value  any
}

// UserAssignments flattens a partial user update into column assignments, in
// a stable order. Drivers render these with their own placeholder syntax and
// append updated_at themselves.
func UserAssignments(f domain.UserFields) []Assignment {
	var out []Assignment
	add := func(col string, v any) { out = append(out, Assignment{Column: col, Value: v}) }

	if f.Email != nil {
		add("email", *f.Email)
	}
	if f.Username != nil {
		add("username", *f.Username)
	}
	if f.PasswordHash != nil {
		add("password_hash", *f.PasswordHash)
	}
	if f.ProfileImageURL != nil {
		add("profile_image_url", *f.ProfileImageURL)
	}
	if f.Deleted != nil {
		add("deleted", *f.Deleted)
	}
	if f.RefreshTokenHash != nil {
		add("refresh_token_hash", nullIfEmpty(*f.RefreshTokenHash))
	}

	switch {
	case f.ResetTokenHash != nil && *f.ResetTokenHash == "":
		add("reset_token_hash", nil)
		add("reset_token_expiry", nil)
	case f.ResetTokenHash != nil:
		add("reset_token_hash", *f.ResetTokenHash)
		if f.ResetTokenExpiry != nil {
			add("reset_token_expiry", f.ResetTokenExpiry.UTC())
		}
	case f.ResetTokenExpiry != nil:
		add("reset_token_expiry", f.ResetTokenExpiry.UTC())
	}

	return out
}

// TodoAssignments is the todo counterpart of UserAssignments.
func TodoAssignments(f domain.TodoFields) []Assignment {
	var out []Assignment
	if f.Content != nil {
		out = append(out, Assignment{Column: "content", Value: *f.Content})
	}
	switch {
	case f.ClearDueDate:
		out = append(out, Assignment{Column: "due_date", Value: nil})
	case f.DueDate != nil:
		out = append(out, Assignment{Column: "due_date", Value: f.DueDate.UTC()})
	}
	return out
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// NullableTime converts an optional time for a driver argument.
func NullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
