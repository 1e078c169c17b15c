package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
)

func TestCreateAndGetNominee(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	alice := mustUser(t, database, "alice")
	v := mustVault(t, database, alice.ID)
	n := mustNominee(t, database, v, "Bob")

	got, err := GetNominee(ctx, database, n.ID)
	if err != nil {
		t.Fatalf("GetNominee: %v", err)
	}
	if got.Status != model.NomineePending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if got.UserID != "" || got.AcceptedAt != nil {
		t.Errorf("expected no redeemer yet, got %+v", got)
	}

	byToken, err := LockNomineeByToken(ctx, database, n.InviteToken)
	if err != nil {
		t.Fatalf("LockNomineeByToken: %v", err)
	}
	if byToken == nil || byToken.ID != n.ID {
		t.Errorf("expected nominee %s by token, got %+v", n.ID, byToken)
	}
}

func TestAcceptNominee(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")
	v := mustVault(t, database, alice.ID)
	n := mustNominee(t, database, v, "Bob")

	if err := AcceptNominee(ctx, database, n.ID, bob.ID, t0); err != nil {
		t.Fatalf("AcceptNominee: %v", err)
	}

	got, _ := GetNominee(ctx, database, n.ID)
	if got.Status != model.NomineeAccepted {
		t.Errorf("expected accepted, got %s", got.Status)
	}
	if got.UserID != bob.ID {
		t.Errorf("expected user %s, got %q", bob.ID, got.UserID)
	}
	if got.AcceptedAt == nil || !got.AcceptedAt.Equal(t0) {
		t.Errorf("expected accepted_at %v, got %v", t0, got.AcceptedAt)
	}

	// Accepting twice loses the compare-and-swap.
	err := AcceptNominee(ctx, database, n.ID, "", t0)
	if !errors.Is(err, model.ErrStorageConflict) {
		t.Errorf("expected ErrStorageConflict, got %v", err)
	}
}

func TestUpdateNomineeStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	alice := mustUser(t, database, "alice")
	v := mustVault(t, database, alice.ID)
	n := mustNominee(t, database, v, "Bob")

	// pending -> active skips acceptance.
	err := UpdateNomineeStatus(ctx, database, n.ID, model.NomineePending, model.NomineeActive, t0)
	if !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	if err := UpdateNomineeStatus(ctx, database, n.ID, model.NomineePending, model.NomineeAccepted, t0); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := UpdateNomineeStatus(ctx, database, n.ID, model.NomineeAccepted, model.NomineeActive, t0); err != nil {
		t.Fatalf("activate: %v", err)
	}

	got, _ := GetNominee(ctx, database, n.ID)
	if got.Status != model.NomineeActive || got.EndedAt != nil {
		t.Errorf("expected active and not ended, got %s %v", got.Status, got.EndedAt)
	}

	if err := UpdateNomineeStatus(ctx, database, n.ID, model.NomineeActive, model.NomineeRevoked, t0); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, _ = GetNominee(ctx, database, n.ID)
	if got.Status != model.NomineeRevoked || got.EndedAt == nil {
		t.Errorf("expected revoked with ended_at, got %s %v", got.Status, got.EndedAt)
	}

	// The stored status no longer matches.
	err = UpdateNomineeStatus(ctx, database, n.ID, model.NomineeAccepted, model.NomineeRevoked, t0)
	if !errors.Is(err, model.ErrStorageConflict) {
		t.Errorf("expected ErrStorageConflict, got %v", err)
	}
}

func TestListAndDeactivateNominees(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	alice := mustUser(t, database, "alice")
	v := mustVault(t, database, alice.ID)
	pending := mustNominee(t, database, v, "Pending")
	accepted := mustNominee(t, database, v, "Accepted")
	revoked := mustNominee(t, database, v, "Revoked")

	AcceptNominee(ctx, database, accepted.ID, "", t0)
	UpdateNomineeStatus(ctx, database, revoked.ID, model.NomineePending, model.NomineeRevoked, t0)

	live, err := ListNominees(ctx, database, v.ID, false)
	if err != nil {
		t.Fatalf("ListNominees: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("expected 2 live nominees, got %d", len(live))
	}

	all, _ := ListNominees(ctx, database, v.ID, true)
	if len(all) != 3 {
		t.Fatalf("expected 3 nominees, got %d", len(all))
	}

	ids, err := DeactivateNominees(ctx, database, v.ID, t0)
	if err != nil {
		t.Fatalf("DeactivateNominees: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 deactivated, got %v", ids)
	}

	for _, id := range []string{pending.ID, accepted.ID} {
		got, _ := GetNominee(ctx, database, id)
		if got.Status != model.NomineeInactive {
			t.Errorf("nominee %s: expected inactive, got %s", got.Name, got.Status)
		}
	}
	got, _ := GetNominee(ctx, database, revoked.ID)
	if got.Status != model.NomineeRevoked {
		t.Errorf("expected revoked nominee to stay revoked, got %s", got.Status)
	}

	live, _ = ListNominees(ctx, database, v.ID, false)
	if len(live) != 0 {
		t.Errorf("expected no live nominees, got %d", len(live))
	}
}
