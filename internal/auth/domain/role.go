package domain

import (
	"errors"
	"strings"
)

// Role is the single authorization attribute of a user.
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"

	// RoleAny is only used in route requirements and means no token is
	// needed. It is never stored on a user.
	RoleAny Role = "any"
)

var ErrUnknownRole = errors.New("domain: unknown role")

// ParseRole accepts any of the known roles, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleClient, RoleAdmin, RoleAny:
		return r, nil
	default:
		return "", ErrUnknownRole
	}
}

// Assignable reports whether the role may be stored on a user.
func (r Role) Assignable() bool {
	return r == RoleClient || r == RoleAdmin
}

func (r Role) String() string { return string(r) }

// AllowsAnyone reports whether a route requirement skips authentication
// entirely: no roles listed, or the wildcard among them.
func AllowsAnyone(required []Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if r == RoleAny {
			return true
		}
	}
	return false
}

// HasRole reports whether role is one of required.
func HasRole(required []Role, role Role) bool {
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}
