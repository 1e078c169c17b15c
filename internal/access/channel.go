package access

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
	"github.com/erazemk/zaupnik/internal/notify"
	"github.com/erazemk/zaupnik/internal/store"
)

// SendMessage appends body to the channel between a vault's owner and one of
// its nominees. The sender must be the current owner or the nominee's user.
// The nominee's status is read under the same lock as the insert, so a message
// is never accepted after a revocation or transfer has committed.
func (s *Service) SendMessage(ctx context.Context, vaultID, nomineeID, senderID, body string) (*model.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("send message: %w: body is required", model.ErrValidation)
	}

	var msg *model.Message
	err := s.run(ctx, "send message", func() error {
		now := s.clock()
		return s.db.WithTx(ctx, func(ctx context.Context, tx *db.Tx) error {
			n, err := channelNominee(ctx, tx, vaultID, nomineeID, senderID, true)
			if err != nil {
				return err
			}
			msg, err = store.CreateMessage(ctx, tx, n.VaultID, n.ID, senderID, body, now)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish([]notify.Event{event(vaultID, notify.MessageSent, msg.ID, msg.CreatedAt)})
	return msg, nil
}

// ListMessages returns the channel's messages, optionally only those after
// since. Reading is gated like sending.
func (s *Service) ListMessages(ctx context.Context, vaultID, nomineeID, callerID string, since time.Time) ([]model.Message, error) {
	if _, err := channelNominee(ctx, s.db, vaultID, nomineeID, callerID, false); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	msgs, err := store.ListMessages(ctx, s.db, nomineeID, since)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// channelNominee loads the nominee at the other end of a channel and checks
// that callerID is a party to it and that the channel is open.
func channelNominee(ctx context.Context, q db.Querier, vaultID, nomineeID, callerID string, lock bool) (*model.Nominee, error) {
	var (
		n   *model.Nominee
		err error
	)
	if lock {
		n, err = store.LockNominee(ctx, q, nomineeID)
	} else {
		n, err = store.GetNominee(ctx, q, nomineeID)
	}
	if err != nil {
		return nil, err
	}
	if n == nil || n.VaultID != vaultID {
		return nil, model.ErrNotFound
	}

	v, err := store.GetVault(ctx, q, vaultID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, model.ErrNotFound
	}

	party := callerID != "" && (callerID == v.OwnerID || callerID == n.UserID)
	if !party {
		return nil, model.ErrNotAuthorized
	}
	if !n.Status.CanCommunicate() {
		return nil, fmt.Errorf("%w: nominee is %s", model.ErrChannelClosed, n.Status)
	}
	return n, nil
}
