package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func mustUser(t *testing.T, q db.Querier, username string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), q, username, "", username+"@example.com", "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func mustVault(t *testing.T, q db.Querier, ownerID string) *model.Vault {
	t.Helper()
	v, err := CreateVault(context.Background(), q, "Family papers", ownerID, t0)
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}
	return v
}

func mustNominee(t *testing.T, q db.Querier, vault *model.Vault, name string) *model.Nominee {
	t.Helper()
	n := &model.Nominee{
		ID:          uuid.NewString(),
		VaultID:     vault.ID,
		Name:        name,
		InviteToken: uuid.NewString(),
		IssuedBy:    vault.OwnerID,
		Status:      model.NomineePending,
		CreatedAt:   t0,
	}
	if err := CreateNominee(context.Background(), q, n); err != nil {
		t.Fatalf("CreateNominee: %v", err)
	}
	return n
}

func mustTransfer(t *testing.T, q db.Querier, vault *model.Vault, candidate string, at time.Time) *model.TransferRequest {
	t.Helper()
	tr := &model.TransferRequest{
		ID:            uuid.NewString(),
		VaultID:       vault.ID,
		TransferToken: uuid.NewString(),
		RequestedBy:   vault.OwnerID,
		Candidate:     model.Candidate{Name: candidate},
		Status:        model.TransferPending,
		CreatedAt:     at,
	}
	if err := CreateTransferRequest(context.Background(), q, tr); err != nil {
		t.Fatalf("CreateTransferRequest: %v", err)
	}
	return tr
}
