package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
	"github.com/erazemk/zaupnik/internal/notify"
	"github.com/erazemk/zaupnik/internal/store"
)

// ListNominees returns a vault's nominees. Only the current owner may list
// them. Inactive and revoked nominees are included only with includeEnded.
func (s *Service) ListNominees(ctx context.Context, vaultID, callerID string, includeEnded bool) ([]model.Nominee, error) {
	if _, err := s.ownerView(ctx, vaultID, callerID); err != nil {
		return nil, fmt.Errorf("list nominees: %w", err)
	}
	nominees, err := store.ListNominees(ctx, s.db, vaultID, includeEnded)
	if err != nil {
		return nil, fmt.Errorf("list nominees: %w", err)
	}
	return nominees, nil
}

// GetNominee returns a nominee to the vault's current owner or to the user
// who redeemed the invite.
func (s *Service) GetNominee(ctx context.Context, nomineeID, callerID string) (*model.Nominee, error) {
	n, err := store.GetNominee(ctx, s.db, nomineeID)
	if err != nil {
		return nil, fmt.Errorf("get nominee: %w", err)
	}
	if n == nil {
		return nil, fmt.Errorf("get nominee: %w", model.ErrNotFound)
	}
	if callerID != "" && n.UserID == callerID {
		n.InviteToken = ""
		return n, nil
	}
	if _, err := s.ownerView(ctx, n.VaultID, callerID); err != nil {
		return nil, fmt.Errorf("get nominee: %w", err)
	}
	return n, nil
}

// RevokeNominee removes a nominee's access. Only the current owner may revoke,
// and only while the nominee is pending, accepted or active. The invite token
// is left as it is; a revoked pending nominee's token can no longer be
// redeemed.
func (s *Service) RevokeNominee(ctx context.Context, nomineeID, callerID string) (*model.Nominee, error) {
	return s.moveNominee(ctx, "revoke nominee", nomineeID, callerID, model.NomineeRevoked, notify.NomineeRevoked)
}

// ActivateNominee marks an accepted nominee active once they are granted live
// access to the vault's contents. Only the current owner may activate.
func (s *Service) ActivateNominee(ctx context.Context, nomineeID, callerID string) (*model.Nominee, error) {
	return s.moveNominee(ctx, "activate nominee", nomineeID, callerID, model.NomineeActive, notify.NomineeActivated)
}

func (s *Service) moveNominee(ctx context.Context, op, nomineeID, callerID string, to model.NomineeStatus, kind notify.Kind) (*model.Nominee, error) {
	var out *model.Nominee
	err := s.run(ctx, op, func() error {
		now := s.clock()
		return s.db.WithTx(ctx, func(ctx context.Context, tx *db.Tx) error {
			n, err := store.LockNominee(ctx, tx, nomineeID)
			if err != nil {
				return err
			}
			if n == nil {
				return model.ErrNotFound
			}
			if _, err := ownedVault(ctx, tx, n.VaultID, callerID); err != nil {
				return err
			}
			if !n.Status.CanTransitionTo(to) {
				return fmt.Errorf("%w: nominee is %s", model.ErrInvalidState, n.Status)
			}
			if err := store.UpdateNomineeStatus(ctx, tx, n.ID, n.Status, to, now); err != nil {
				return err
			}
			out, err = store.GetNominee(ctx, tx, n.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("nominee status changed", "vault", out.VaultID, "nominee", out.ID, "status", out.Status, "by", callerID)
	s.publish([]notify.Event{event(out.VaultID, kind, out.ID, s.clock())})
	return out, nil
}

// ownerView reads a vault without locking and checks callerID owns it.
func (s *Service) ownerView(ctx context.Context, vaultID, callerID string) (*model.Vault, error) {
	v, err := store.GetVault(ctx, s.db, vaultID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, model.ErrNotFound
	}
	if callerID == "" || v.OwnerID != callerID {
		return nil, model.ErrNotAuthorized
	}
	return v, nil
}
