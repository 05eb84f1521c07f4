package membership

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryRoles(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Add(ctx, Membership{GroupID: "g", UserID: "admin", Role: RoleAdmin, IsActive: true}))
	require.NoError(t, repo.Add(ctx, Membership{GroupID: "g", UserID: "member", Role: RoleMember, IsActive: true}))
	require.NoError(t, repo.Add(ctx, Membership{GroupID: "g", UserID: "former", Role: RoleAdmin, IsActive: false}))

	for principal, want := range map[string]bool{"admin": true, "member": false, "former": false, "stranger": false} {
		got, err := repo.IsGroupAdmin(ctx, principal, "g")
		require.NoError(t, err)
		assert.Equal(t, want, got, principal)
	}

	member, err := repo.IsMember(ctx, "member", "g")
	require.NoError(t, err)
	assert.True(t, member)
	admin, err := repo.IsGroupAdmin(ctx, "admin", "other")
	require.NoError(t, err)
	assert.False(t, admin)
}
