package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaupnik/internal/model"
)

func TestListNominees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.acceptedNominee(t, "Bob", f.bob)
	gone, err := f.svc.IssueInvite(ctx, f.vault.ID, "Dave", model.Contact{}, f.alice.ID)
	require.NoError(t, err)
	_, err = f.svc.RevokeNominee(ctx, gone.Nominee.ID, f.alice.ID)
	require.NoError(t, err)

	live, err := f.svc.ListNominees(ctx, f.vault.ID, f.alice.ID, false)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "Bob", live[0].Name)

	all, err := f.svc.ListNominees(ctx, f.vault.ID, f.alice.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.ListNominees(ctx, f.vault.ID, f.bob.ID, false)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	_, err = f.svc.ListNominees(ctx, "missing", f.alice.ID, false)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGetNominee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.acceptedNominee(t, "Bob", f.bob)

	got, err := f.svc.GetNominee(ctx, n.ID, f.alice.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.InviteToken)

	own, err := f.svc.GetNominee(ctx, n.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, own.InviteToken, "nominee does not see the token")

	_, err = f.svc.GetNominee(ctx, n.ID, f.carol.ID)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	_, err = f.svc.GetNominee(ctx, "missing", f.alice.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRevokeNominee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.acceptedNominee(t, "Bob", f.bob)

	_, err := f.svc.RevokeNominee(ctx, n.ID, f.bob.ID)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	revoked, err := f.svc.RevokeNominee(ctx, n.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NomineeRevoked, revoked.Status)
	assert.NotNil(t, revoked.EndedAt)

	// Revoked is terminal.
	_, err = f.svc.RevokeNominee(ctx, n.ID, f.alice.ID)
	assert.ErrorIs(t, err, model.ErrInvalidState)
	_, err = f.svc.ActivateNominee(ctx, n.ID, f.alice.ID)
	assert.ErrorIs(t, err, model.ErrInvalidState)

	_, err = f.svc.RevokeNominee(ctx, "missing", f.alice.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestActivateNominee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending, err := f.svc.IssueInvite(ctx, f.vault.ID, "Carol", model.Contact{}, f.alice.ID)
	require.NoError(t, err)
	_, err = f.svc.ActivateNominee(ctx, pending.Nominee.ID, f.alice.ID)
	assert.ErrorIs(t, err, model.ErrInvalidState, "pending nominee cannot skip acceptance")

	n := f.acceptedNominee(t, "Bob", f.bob)

	_, err = f.svc.ActivateNominee(ctx, n.ID, f.bob.ID)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	active, err := f.svc.ActivateNominee(ctx, n.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NomineeActive, active.Status)
	assert.Nil(t, active.EndedAt)

	// An active nominee can still be revoked.
	revoked, err := f.svc.RevokeNominee(ctx, n.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NomineeRevoked, revoked.Status)
}
