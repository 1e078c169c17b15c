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

// ListTransfers returns a vault's transfer requests, newest first. Only the
// current owner may list them.
func (s *Service) ListTransfers(ctx context.Context, vaultID, callerID string) ([]model.TransferRequest, error) {
	if _, err := s.ownerView(ctx, vaultID, callerID); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	transfers, err := store.ListTransferRequests(ctx, s.db, vaultID, "")
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, nil
}

// ListTransfersByRequester returns the transfer requests callerID issued.
func (s *Service) ListTransfersByRequester(ctx context.Context, callerID string) ([]model.TransferRequest, error) {
	if callerID == "" {
		return nil, fmt.Errorf("list transfers: %w", model.ErrNotAuthorized)
	}
	transfers, err := store.ListTransferRequests(ctx, s.db, "", callerID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, nil
}

// GetTransfer returns a transfer request to its issuer or the vault's current
// owner.
func (s *Service) GetTransfer(ctx context.Context, transferID, callerID string) (*model.TransferRequest, error) {
	t, err := store.GetTransferRequest(ctx, s.db, transferID)
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if t == nil {
		return nil, fmt.Errorf("get transfer: %w", model.ErrNotFound)
	}
	if callerID != "" && t.RequestedBy == callerID {
		return t, nil
	}
	if _, err := s.ownerView(ctx, t.VaultID, callerID); err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	return t, nil
}

// CancelTransfer withdraws a pending transfer request. Only its issuer may
// cancel it.
func (s *Service) CancelTransfer(ctx context.Context, transferID, callerID string) (*model.TransferRequest, error) {
	var out *model.TransferRequest
	err := s.run(ctx, "cancel transfer", func() error {
		now := s.clock()
		return s.db.WithTx(ctx, func(ctx context.Context, tx *db.Tx) error {
			t, err := store.LockTransferRequest(ctx, tx, transferID)
			if err != nil {
				return err
			}
			if t == nil {
				return model.ErrNotFound
			}
			if callerID == "" || t.RequestedBy != callerID {
				return model.ErrNotAuthorized
			}
			if !t.Status.CanTransitionTo(model.TransferCancelled) {
				return fmt.Errorf("%w: transfer is %s", model.ErrInvalidState, t.Status)
			}
			if err := store.EndTransferRequest(ctx, tx, t.ID, model.TransferCancelled, now); err != nil {
				return err
			}
			out, err = store.GetTransferRequest(ctx, tx, t.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("transfer cancelled", "vault", out.VaultID, "request", out.ID, "by", callerID)
	s.publish([]notify.Event{event(out.VaultID, notify.TransferCancelled, out.ID, *out.EndedAt)})
	return out, nil
}
