package access

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaupnik/internal/model"
	"github.com/erazemk/zaupnik/internal/notify"
	"github.com/erazemk/zaupnik/internal/store"
)

func TestIssueInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.IssueInvite(ctx, f.vault.ID, "  Bob  ", model.Contact{Email: "bob@example.com"}, f.alice.ID)
	require.NoError(t, err)

	assert.Equal(t, "Bob", inv.Nominee.Name)
	assert.Equal(t, "bob@example.com", inv.Nominee.Email)
	assert.Equal(t, model.NomineePending, inv.Nominee.Status)
	assert.Equal(t, f.alice.ID, inv.Nominee.IssuedBy)
	assert.Len(t, inv.Token, 64)
	assert.Equal(t, inv.Token, inv.Nominee.InviteToken)
	assert.Equal(t, "zaupnik://invite?token="+inv.Token, inv.Link)

	tok, err := store.GetToken(ctx, f.db, inv.Token)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, model.TokenInvite, tok.Kind)
	assert.Equal(t, inv.Nominee.ID, tok.SubjectID)
	assert.False(t, tok.Consumed())

	assert.Equal(t, []notify.Kind{notify.NomineeInvited}, f.events.kinds())
}

func TestIssueInviteTokensAreUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for range 20 {
		inv, err := f.svc.IssueInvite(ctx, f.vault.ID, "Bob", model.Contact{}, f.alice.ID)
		require.NoError(t, err)
		assert.False(t, seen[inv.Token], "duplicate token")
		seen[inv.Token] = true
	}
}

func TestIssueInviteRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.IssueInvite(ctx, f.vault.ID, "   ", model.Contact{}, f.alice.ID)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.svc.IssueInvite(ctx, f.vault.ID, "Carol", model.Contact{}, f.bob.ID)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	_, err = f.svc.IssueInvite(ctx, "missing", "Carol", model.Contact{}, f.alice.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	nominees, err := store.ListNominees(ctx, f.db, f.vault.ID, true)
	require.NoError(t, err)
	assert.Empty(t, nominees, "rejected issuance must not write")
}

func TestIssueTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := f.svc.IssueTransfer(ctx, f.vault.ID, model.Candidate{Name: "Bob"}, "moving abroad", f.alice.ID)
	require.NoError(t, err)

	assert.Equal(t, model.TransferPending, tr.Request.Status)
	assert.Equal(t, f.alice.ID, tr.Request.RequestedBy)
	assert.Equal(t, "moving abroad", tr.Request.Reason)
	assert.True(t, f.clock.Now().Equal(tr.Request.CreatedAt))
	assert.True(t, strings.HasPrefix(tr.Link, "zaupnik://transfer?token="))

	tok, err := store.GetToken(ctx, f.db, tr.Token)
	require.NoError(t, err)
	assert.Equal(t, model.TokenTransfer, tok.Kind)
	assert.Equal(t, tr.Request.ID, tok.SubjectID)
}

func TestIssueTransferResolvesCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	byEmail, err := f.svc.IssueTransfer(ctx, f.vault.ID, model.Candidate{Name: "Bob", Email: "bob@example.com"}, "", f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, f.bob.ID, byEmail.Request.Candidate.UserID)

	byUser, err := f.svc.IssueTransfer(ctx, f.vault.ID, model.Candidate{UserID: f.carol.ID}, "", f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", byUser.Request.Candidate.Name)

	n := f.acceptedNominee(t, "Bobby", f.bob)
	byNominee, err := f.svc.IssueTransfer(ctx, f.vault.ID, model.Candidate{NomineeID: n.ID}, "", f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, f.bob.ID, byNominee.Request.Candidate.UserID)
	assert.Equal(t, "Bobby", byNominee.Request.Candidate.Name)

	unknown, err := f.svc.IssueTransfer(ctx, f.vault.ID, model.Candidate{Name: "Dave", Email: "dave@example.com"}, "", f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, unknown.Request.Candidate.UserID)
}

func TestIssueTransferToSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	candidates := []model.Candidate{
		{UserID: f.alice.ID},
		{Name: "Me", Email: "alice@example.com"},
	}
	for _, c := range candidates {
		_, err := f.svc.IssueTransfer(ctx, f.vault.ID, c, "", f.alice.ID)
		assert.ErrorIs(t, err, model.ErrAlreadyOwner)
	}

	transfers, err := store.ListTransferRequests(ctx, f.db, f.vault.ID, "")
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestIssueTransferRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.IssueTransfer(ctx, f.vault.ID, model.Candidate{Name: "Carol"}, "", f.bob.ID)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	_, err = f.svc.IssueTransfer(ctx, f.vault.ID, model.Candidate{}, "", f.alice.ID)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.svc.IssueTransfer(ctx, f.vault.ID, model.Candidate{UserID: "nobody"}, "", f.alice.ID)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.svc.IssueTransfer(ctx, f.vault.ID, model.Candidate{NomineeID: "nobody"}, "", f.alice.ID)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCustomLinkScheme(t *testing.T) {
	f := newFixture(t)
	svc := New(f.db, Config{LinkScheme: "vaultapp"})

	inv, err := svc.IssueInvite(context.Background(), f.vault.ID, "Bob", model.Contact{}, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "vaultapp://invite?token="+inv.Token, inv.Link)

	kind, token, err := model.ParseShareLink(inv.Link)
	require.NoError(t, err)
	assert.Equal(t, model.TokenInvite, kind)
	assert.Equal(t, inv.Token, token)
}
