package localstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/repository"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(openStore(t))

	_, err := repo.FindByUsername(ctx, "alice")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	alice, err := repo.Create(ctx, &domain.User{Username: "alice", Password: "hash-a", Role: domain.RoleAdmin})
	require.NoError(t, err)
	bob, err := repo.Create(ctx, &domain.User{Username: "bob", Password: "hash-b", Role: domain.RoleOperator})
	require.NoError(t, err)
	assert.Equal(t, 1, alice.ID)
	assert.Equal(t, 2, bob.ID)

	_, err = repo.Create(ctx, &domain.User{Username: "alice", Password: "x", Role: domain.RoleOperator})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)

	_, err = repo.Create(ctx, &domain.User{Username: "carol", Password: "x", Role: "superuser"})
	assert.ErrorIs(t, err, repository.ErrInvalidRole)
	_, err = repo.FindByUsername(ctx, "carol")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := repo.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "hash-b", got.Password)

	got, err = repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = repo.FindByID(ctx, 99)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
