package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaupnik/internal/model"
)

func TestCreateVault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.CreateVault(ctx, f.bob.ID, " Taxes ")
	require.NoError(t, err)
	assert.Equal(t, "Taxes", v.Name)
	assert.Equal(t, f.bob.ID, v.OwnerID)
	assert.Equal(t, int64(1), v.Version)

	_, err = f.svc.CreateVault(ctx, f.bob.ID, "")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.svc.CreateVault(ctx, "nobody", "Taxes")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestGetVaultAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetVault(ctx, f.vault.ID, f.alice.ID)
	require.NoError(t, err)

	_, err = f.svc.GetVault(ctx, f.vault.ID, f.bob.ID)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	f.acceptedNominee(t, "Bob", f.bob)
	v, err := f.svc.GetVault(ctx, f.vault.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", v.OwnerName)
	assert.NoError(t, f.svc.CanWatch(ctx, f.vault.ID, f.bob.ID))

	_, err = f.svc.GetVault(ctx, "missing", f.alice.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListVaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owned, err := f.svc.ListVaults(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)

	shared, err := f.svc.ListSharedVaults(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, shared)

	f.acceptedNominee(t, "Bob", f.bob)
	shared, err = f.svc.ListSharedVaults(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, f.vault.ID, shared[0].ID)
}
