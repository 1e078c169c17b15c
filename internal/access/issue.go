package access

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
	"github.com/erazemk/zaupnik/internal/notify"
	"github.com/erazemk/zaupnik/internal/store"
)

// Invite is the result of IssueInvite. Token and Link must reach the nominee
// out of band.
type Invite struct {
	Nominee *model.Nominee `json:"nominee"`
	Token   string         `json:"token"`
	Link    string         `json:"link"`
}

// Transfer is the result of IssueTransfer.
type Transfer struct {
	Request *model.TransferRequest `json:"request"`
	Token   string                 `json:"token"`
	Link    string                 `json:"link"`
}

// IssueInvite creates a pending nominee for a vault and the single-use token
// that accepts it. Only the vault's current owner may invite.
func (s *Service) IssueInvite(ctx context.Context, vaultID, name string, contact model.Contact, issuerID string) (*Invite, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("issue invite: %w: name is required", model.ErrValidation)
	}

	var inv *Invite
	err := s.run(ctx, "issue invite", func() error {
		token, err := model.NewToken()
		if err != nil {
			return err
		}
		now := s.clock()

		return s.db.WithTx(ctx, func(ctx context.Context, tx *db.Tx) error {
			if _, err := ownedVault(ctx, tx, vaultID, issuerID); err != nil {
				return err
			}

			n := &model.Nominee{
				ID:          uuid.NewString(),
				VaultID:     vaultID,
				Name:        name,
				Email:       strings.TrimSpace(contact.Email),
				Phone:       strings.TrimSpace(contact.Phone),
				InviteToken: token,
				IssuedBy:    issuerID,
				Status:      model.NomineePending,
				CreatedAt:   now,
			}
			if err := store.CreateNominee(ctx, tx, n); err != nil {
				return err
			}
			if err := store.CreateToken(ctx, tx, &model.CapabilityToken{
				Token:     token,
				Kind:      model.TokenInvite,
				VaultID:   vaultID,
				SubjectID: n.ID,
				IssuedBy:  issuerID,
				CreatedAt: now,
			}); err != nil {
				return err
			}

			inv = &Invite{
				Nominee: n,
				Token:   token,
				Link:    model.ShareLink(s.cfg.LinkScheme, model.TokenInvite, token),
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("nominee invited", "vault", vaultID, "nominee", inv.Nominee.ID, "issuer", issuerID)
	s.publish([]notify.Event{event(vaultID, notify.NomineeInvited, inv.Nominee.ID, inv.Nominee.CreatedAt)})
	return inv, nil
}

// IssueTransfer creates a pending request to hand a vault to candidate. Only
// the current owner may issue one, and the candidate must not resolve to the
// owner. A candidate resolves to a user by explicit user ID, by the bound user
// of one of the vault's nominees, or by registered email.
func (s *Service) IssueTransfer(ctx context.Context, vaultID string, candidate model.Candidate, reason, issuerID string) (*Transfer, error) {
	candidate.Name = strings.TrimSpace(candidate.Name)
	candidate.Email = strings.TrimSpace(candidate.Email)
	candidate.Phone = strings.TrimSpace(candidate.Phone)
	if candidate.Name == "" && candidate.UserID == "" && candidate.NomineeID == "" {
		return nil, fmt.Errorf("issue transfer: %w: candidate is required", model.ErrValidation)
	}

	var tr *Transfer
	err := s.run(ctx, "issue transfer", func() error {
		token, err := model.NewToken()
		if err != nil {
			return err
		}
		now := s.clock()

		return s.db.WithTx(ctx, func(ctx context.Context, tx *db.Tx) error {
			v, err := ownedVault(ctx, tx, vaultID, issuerID)
			if err != nil {
				return err
			}

			c, err := resolveCandidate(ctx, tx, vaultID, candidate)
			if err != nil {
				return err
			}
			if c.UserID != "" && c.UserID == v.OwnerID {
				return model.ErrAlreadyOwner
			}

			req := &model.TransferRequest{
				ID:            uuid.NewString(),
				VaultID:       vaultID,
				TransferToken: token,
				RequestedBy:   issuerID,
				Candidate:     c,
				Reason:        strings.TrimSpace(reason),
				Status:        model.TransferPending,
				CreatedAt:     now,
			}
			if err := store.CreateTransferRequest(ctx, tx, req); err != nil {
				return err
			}
			if err := store.CreateToken(ctx, tx, &model.CapabilityToken{
				Token:     token,
				Kind:      model.TokenTransfer,
				VaultID:   vaultID,
				SubjectID: req.ID,
				IssuedBy:  issuerID,
				CreatedAt: now,
			}); err != nil {
				return err
			}

			tr = &Transfer{
				Request: req,
				Token:   token,
				Link:    model.ShareLink(s.cfg.LinkScheme, model.TokenTransfer, token),
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("transfer requested", "vault", vaultID, "request", tr.Request.ID,
		"issuer", issuerID, "candidate", tr.Request.Candidate.Name)
	s.publish([]notify.Event{event(vaultID, notify.TransferRequested, tr.Request.ID, tr.Request.CreatedAt)})
	return tr, nil
}

// resolveCandidate fills in what the system knows about a transfer candidate.
// The result's UserID is empty when the candidate is not a registered user.
func resolveCandidate(ctx context.Context, q db.Querier, vaultID string, c model.Candidate) (model.Candidate, error) {
	switch {
	case c.UserID != "":
		u, err := store.GetUser(ctx, q, c.UserID)
		if err != nil {
			return c, err
		}
		if u == nil || u.DeletedAt != nil {
			return c, fmt.Errorf("%w: unknown candidate user", model.ErrValidation)
		}
		if c.Name == "" {
			c.Name = u.DisplayName
		}
		if c.Email == "" {
			c.Email = u.Email
		}

	case c.NomineeID != "":
		n, err := store.GetNominee(ctx, q, c.NomineeID)
		if err != nil {
			return c, err
		}
		if n == nil || n.VaultID != vaultID {
			return c, fmt.Errorf("%w: candidate is not a nominee of this vault", model.ErrValidation)
		}
		c.UserID = n.UserID
		if c.Name == "" {
			c.Name = n.Name
		}
		if c.Email == "" {
			c.Email = n.Email
		}
		if c.Phone == "" {
			c.Phone = n.Phone
		}

	case c.Email != "":
		u, err := store.GetUserByEmail(ctx, q, c.Email)
		if err != nil {
			return c, err
		}
		if u != nil {
			c.UserID = u.ID
		}
	}

	if c.Name == "" {
		return c, fmt.Errorf("%w: candidate name is required", model.ErrValidation)
	}
	return c, nil
}

// ownedVault locks a vault and checks that callerID owns it.
func ownedVault(ctx context.Context, q db.Querier, vaultID, callerID string) (*model.Vault, error) {
	v, err := store.LockVault(ctx, q, vaultID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("vault %s: %w", vaultID, model.ErrNotFound)
	}
	if callerID == "" || v.OwnerID != callerID {
		return nil, model.ErrNotAuthorized
	}
	return v, nil
}
