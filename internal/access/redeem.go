package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
	"github.com/erazemk/zaupnik/internal/notify"
	"github.com/erazemk/zaupnik/internal/store"
)

// InviteRedemption is the result of RedeemInvite.
type InviteRedemption struct {
	Nominee *model.Nominee `json:"nominee"`
	Vault   *model.Vault   `json:"vault"`
}

// TransferRedemption is the result of RedeemTransfer.
type TransferRedemption struct {
	Request     *model.TransferRequest `json:"request"`
	Vault       *model.Vault           `json:"vault"`
	Deactivated []string               `json:"deactivated_nominees,omitempty"`
	Superseded  []string               `json:"superseded_transfers,omitempty"`
}

// errExpired aborts a redemption that found the request past its window. The
// read transaction is rolled back and the expired status committed separately.
var errExpired = errors.New("expired")

// RedeemInvite accepts the nominee an invite token was issued for. Anyone
// holding the token may redeem it; redeemerID, when set, is recorded as the
// nominee's user. raw may be a share link or a bare token.
//
// Of any number of concurrent redemptions of one token exactly one succeeds.
// The rest fail with model.ErrAlreadyRedeemed.
func (s *Service) RedeemInvite(ctx context.Context, raw, redeemerID string) (*InviteRedemption, error) {
	token, err := tokenOf(raw, model.TokenInvite)
	if err != nil {
		return nil, fmt.Errorf("redeem invite: %w", err)
	}

	var out *InviteRedemption
	err = s.run(ctx, "redeem invite", func() error {
		now := s.clock()
		return s.db.WithTx(ctx, func(ctx context.Context, tx *db.Tx) error {
			tok, err := store.LockToken(ctx, tx, token)
			if err != nil {
				return err
			}
			if tok == nil || tok.Kind != model.TokenInvite {
				return model.ErrTokenNotFound
			}
			if tok.Consumed() {
				return model.ErrAlreadyRedeemed
			}

			n, err := store.LockNominee(ctx, tx, tok.SubjectID)
			if err != nil {
				return err
			}
			if n == nil || n.Status != model.NomineePending {
				return model.ErrTokenNotFound
			}

			if redeemerID != "" {
				u, err := store.GetUser(ctx, tx, redeemerID)
				if err != nil {
					return err
				}
				if u == nil || u.DeletedAt != nil {
					return fmt.Errorf("%w: unknown redeemer", model.ErrValidation)
				}
			}

			if err := store.AcceptNominee(ctx, tx, n.ID, redeemerID, now); err != nil {
				return err
			}
			if err := store.ConsumeToken(ctx, tx, token, redeemerID, now); err != nil {
				return err
			}

			accepted, err := store.GetNominee(ctx, tx, n.ID)
			if err != nil {
				return err
			}
			v, err := store.GetVault(ctx, tx, n.VaultID)
			if err != nil {
				return err
			}
			out = &InviteRedemption{Nominee: accepted, Vault: v}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("invite redeemed", "vault", out.Vault.ID, "nominee", out.Nominee.ID, "redeemer", redeemerID)
	s.publish([]notify.Event{event(out.Vault.ID, notify.NomineeAccepted, out.Nominee.ID, *out.Nominee.AcceptedAt)})
	return out, nil
}

// RedeemTransfer hands a vault to candidateUserID. In a single transaction it
// reassigns the owner, completes the request, consumes its token, deactivates
// every live nominee of the vault, and cancels every other pending transfer.
//
// Checks run in order: unknown or consumed token, candidate already owns the
// vault, request past its window. An expired request is marked expired.
func (s *Service) RedeemTransfer(ctx context.Context, raw, candidateUserID string) (*TransferRedemption, error) {
	if candidateUserID == "" {
		return nil, fmt.Errorf("redeem transfer: %w: candidate user is required", model.ErrValidation)
	}
	token, err := tokenOf(raw, model.TokenTransfer)
	if err != nil {
		return nil, fmt.Errorf("redeem transfer: %w", err)
	}

	var (
		out     *TransferRedemption
		expired *model.TransferRequest
	)
	err = s.run(ctx, "redeem transfer", func() error {
		now := s.clock()
		err := s.db.WithTx(ctx, func(ctx context.Context, tx *db.Tx) error {
			tok, err := store.LockToken(ctx, tx, token)
			if err != nil {
				return err
			}
			if tok == nil || tok.Kind != model.TokenTransfer {
				return model.ErrTokenNotFound
			}
			if tok.Consumed() {
				return model.ErrAlreadyRedeemed
			}

			req, err := store.LockTransferRequest(ctx, tx, tok.SubjectID)
			if err != nil {
				return err
			}
			if req == nil {
				return model.ErrTokenNotFound
			}
			switch req.Status {
			case model.TransferPending:
			case model.TransferExpired:
				return model.ErrRequestExpired
			case model.TransferCompleted, model.TransferCancelled:
				return model.ErrTokenNotFound
			default:
				return fmt.Errorf("%w: transfer status %q", model.ErrInvalidState, req.Status)
			}

			v, err := store.LockVault(ctx, tx, req.VaultID)
			if err != nil {
				return err
			}
			if v == nil {
				return model.ErrTokenNotFound
			}
			if v.OwnerID == candidateUserID {
				return model.ErrAlreadyOwner
			}

			if req.Expired(now, s.cfg.TransferWindow) {
				expired = req
				return errExpired
			}

			u, err := store.GetUser(ctx, tx, candidateUserID)
			if err != nil {
				return err
			}
			if u == nil || u.DeletedAt != nil {
				return fmt.Errorf("%w: unknown candidate user", model.ErrValidation)
			}

			if err := store.ReassignOwner(ctx, tx, v.ID, v.OwnerID, v.Version, candidateUserID, now); err != nil {
				return err
			}
			if err := store.CompleteTransferRequest(ctx, tx, req.ID, candidateUserID, now); err != nil {
				return err
			}
			if err := store.ConsumeToken(ctx, tx, token, candidateUserID, now); err != nil {
				return err
			}
			deactivated, err := store.DeactivateNominees(ctx, tx, v.ID, now)
			if err != nil {
				return err
			}
			superseded, err := store.SupersedeTransferRequests(ctx, tx, v.ID, req.ID, now)
			if err != nil {
				return err
			}

			completed, err := store.GetTransferRequest(ctx, tx, req.ID)
			if err != nil {
				return err
			}
			vault, err := store.GetVault(ctx, tx, v.ID)
			if err != nil {
				return err
			}
			out = &TransferRedemption{
				Request:     completed,
				Vault:       vault,
				Deactivated: deactivated,
				Superseded:  superseded,
			}
			return nil
		})
		if errors.Is(err, errExpired) {
			return s.markExpired(ctx, expired, now)
		}
		return err
	})
	if err != nil {
		if expired != nil && errors.Is(err, model.ErrRequestExpired) {
			slog.Info("transfer request expired", "vault", expired.VaultID, "request", expired.ID)
			s.publish([]notify.Event{event(expired.VaultID, notify.TransferExpired, expired.ID, s.clock())})
		}
		return nil, err
	}

	slog.Info("transfer completed", "vault", out.Vault.ID, "request", out.Request.ID,
		"new_owner", candidateUserID, "deactivated", len(out.Deactivated), "superseded", len(out.Superseded))

	at := *out.Request.ApprovedAt
	events := []notify.Event{event(out.Vault.ID, notify.TransferCompleted, out.Request.ID, at)}
	for _, id := range out.Deactivated {
		events = append(events, event(out.Vault.ID, notify.NomineeInactive, id, at))
	}
	for _, id := range out.Superseded {
		events = append(events, event(out.Vault.ID, notify.TransferCancelled, id, at))
	}
	s.publish(events)
	return out, nil
}

// markExpired commits the expired status of a request on its own and reports
// model.ErrRequestExpired. Losing the race to another writer still reports
// expiry, since the request cannot be redeemed either way.
func (s *Service) markExpired(ctx context.Context, req *model.TransferRequest, now time.Time) error {
	err := s.db.WithTx(ctx, func(ctx context.Context, tx *db.Tx) error {
		return store.EndTransferRequest(ctx, tx, req.ID, model.TransferExpired, now)
	})
	if err != nil && !errors.Is(err, model.ErrStorageConflict) {
		return err
	}
	return model.ErrRequestExpired
}

// tokenOf extracts the token from a share link or bare token and rejects a
// link of the wrong kind.
func tokenOf(raw string, want model.TokenKind) (string, error) {
	kind, token, err := model.ParseShareLink(raw)
	if err != nil {
		return "", err
	}
	if kind != "" && kind != want {
		return "", model.ErrTokenNotFound
	}
	return token, nil
}
