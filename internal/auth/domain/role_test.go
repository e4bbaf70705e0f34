package domain_test

import (
	"testing"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.Role
		wantErr bool
	}{
		{"client", domain.RoleClient, false},
		{" Admin ", domain.RoleAdmin, false},
		{"ANY", domain.RoleAny, false},
		{"root", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := domain.ParseRole(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrUnknownRole)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRoleAssignable(t *testing.T) {
	require.True(t, domain.RoleClient.Assignable())
	require.True(t, domain.RoleAdmin.Assignable())
	require.False(t, domain.RoleAny.Assignable())
	require.False(t, domain.Role("root").Assignable())
}

func TestAllowsAnyone(t *testing.T) {
	require.True(t, domain.AllowsAnyone(nil))
	require.True(t, domain.AllowsAnyone([]domain.Role{domain.RoleAdmin, domain.RoleAny}))
	require.False(t, domain.AllowsAnyone([]domain.Role{domain.RoleClient, domain.RoleAdmin}))
}

func TestHasRole(t *testing.T) {
	required := []domain.Role{domain.RoleAdmin}
	require.True(t, domain.HasRole(required, domain.RoleAdmin))
	require.False(t, domain.HasRole(required, domain.RoleClient))
	require.False(t, domain.HasRole(nil, domain.RoleAdmin))
}

func TestUserFieldsIsEmpty(t *testing.T) {
	require.True(t, domain.UserFields{}.IsEmpty())
	require.False(t, domain.UserFields{Deleted: domain.Ptr(true)}.IsEmpty())
	require.False(t, domain.UserFields{RefreshTokenHash: domain.Ptr("")}.IsEmpty())
}
