package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/identity"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormUserRepository(t *testing.T) {
	repo := NewGormUserRepository(setupTestDB(t))
	ctx := context.Background()

	user, err := identity.NewUser("Ravi Kumar", "Ravi@Example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, user))

	t.Run("finds by normalized email", func(t *testing.T) {
		found, err := repo.FindByEmail(ctx, user.Email)
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
		assert.Equal(t, identity.RoleCitizen, found.Role)
		assert.True(t, found.VerifyPassword("secret123"))
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		dup, err := identity.NewUser("Someone Else", "ravi@example.com", "another1")
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, dup), shared.ErrAlreadyExists)
	})

	t.Run("exists by email", func(t *testing.T) {
		exists, err := repo.ExistsByEmail(ctx, user.Email)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("update persists role and login", func(t *testing.T) {
		user.Promote()
		user.RecordLogin()
		require.NoError(t, repo.Update(ctx, user))

		found, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, found.IsAdmin())
		assert.NotNil(t, found.LastLoginAt)
		assert.Equal(t, user.Version, found.Version)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = repo.FindByEmail(ctx, "")
		assert.ErrorIs(t, err, shared.ErrNotFound)

		ghost, err := identity.NewUser("Ghost", "ghost@example.com", "secret123")
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Update(ctx, ghost), shared.ErrNotFound)
	})
}
