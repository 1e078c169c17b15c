package access

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/erazemk/zaupnik/internal/model"
	"github.com/erazemk/zaupnik/internal/store"
)

// CreateVault creates an empty vault owned by ownerID.
func (s *Service) CreateVault(ctx context.Context, ownerID, name string) (*model.Vault, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create vault: %w: name is required", model.ErrValidation)
	}

	owner, err := store.GetUser(ctx, s.db, ownerID)
	if err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}
	if owner == nil || owner.DeletedAt != nil {
		return nil, fmt.Errorf("create vault: %w: unknown owner", model.ErrValidation)
	}

	v, err := store.CreateVault(ctx, s.db, name, ownerID, s.clock())
	if err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}
	slog.Info("vault created", "vault", v.ID, "owner", owner.Username)
	return v, nil
}

// GetVault returns a vault to its owner or to one of its accepted or active
// nominees.
func (s *Service) GetVault(ctx context.Context, vaultID, callerID string) (*model.Vault, error) {
	v, err := s.vaultView(ctx, vaultID, callerID)
	if err != nil {
		return nil, fmt.Errorf("get vault: %w", err)
	}
	return v, nil
}

// CanWatch reports, as an error, whether callerID may follow a vault's
// changes. The rule is the same as for GetVault.
func (s *Service) CanWatch(ctx context.Context, vaultID, callerID string) error {
	if _, err := s.vaultView(ctx, vaultID, callerID); err != nil {
		return fmt.Errorf("watch vault: %w", err)
	}
	return nil
}

// ListVaults returns the vaults userID owns.
func (s *Service) ListVaults(ctx context.Context, userID string) ([]model.Vault, error) {
	vaults, err := store.ListVaultsByOwner(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}
	return vaults, nil
}

// ListSharedVaults returns the vaults where userID is an accepted or active
// nominee.
func (s *Service) ListSharedVaults(ctx context.Context, userID string) ([]model.Vault, error) {
	vaults, err := store.ListVaultsSharedWith(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("list shared vaults: %w", err)
	}
	return vaults, nil
}

func (s *Service) vaultView(ctx context.Context, vaultID, callerID string) (*model.Vault, error) {
	v, err := store.GetVault(ctx, s.db, vaultID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, model.ErrNotFound
	}
	if callerID != "" && v.OwnerID == callerID {
		return v, nil
	}

	nominees, err := store.ListNominees(ctx, s.db, vaultID, false)
	if err != nil {
		return nil, err
	}
	for _, n := range nominees {
		if callerID != "" && n.UserID == callerID && n.Status.CanCommunicate() {
			return v, nil
		}
	}
	return nil, model.ErrNotAuthorized
}
