package domain

import "time"

type User struct {
	ID              string
	Email           string
	Username        string
	PasswordHash    string // bcrypt; "!" for federated accounts that never set one
	Role            Role
	ProfileImageURL string
	Deleted         bool // soft delete, hidden from every lookup except the *IncludingDeleted ones
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Single live session and reset state. Both hashes are SHA-256
	// fingerprints of the issued token, never the token itself.
	RefreshTokenHash *string
	ResetTokenHash   *string
	ResetTokenExpiry *time.Time
}

// UserFields is a partial update. Nil fields are left untouched.
//
// RefreshTokenHash and ResetTokenHash accept "" to clear the column. Clearing
// the reset hash also clears its expiry.
type UserFields struct {
	Email            *string
	Username         *string
	PasswordHash     *string
	ProfileImageURL  *string
	Deleted          *bool
	RefreshTokenHash *string
	ResetTokenHash   *string
	ResetTokenExpiry *time.Time
}

// IsEmpty reports whether the update would change nothing.
func (f UserFields) IsEmpty() bool {
	return f.Email == nil &&
		f.Username == nil &&
		f.PasswordHash == nil &&
		f.ProfileImageURL == nil &&
		f.Deleted == nil &&
		f.RefreshTokenHash == nil &&
		f.ResetTokenHash == nil &&
		f.ResetTokenExpiry == nil
}

// Ptr is a small helper for building UserFields.
func Ptr[T any](v T) *T { return &v }
