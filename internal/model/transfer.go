package model

import (
	"fmt"
	"time"
)

// TransferStatus is the lifecycle state of an ownership transfer request.
type TransferStatus string

// Transfer statuses.
const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
	TransferExpired   TransferStatus = "expired"
	TransferCancelled TransferStatus = "cancelled"
)

// DefaultTransferWindow is how long a transfer request stays redeemable.
const DefaultTransferWindow = 30 * 24 * time.Hour

// ParseTransferStatus converts a stored value into a TransferStatus.
func ParseTransferStatus(s string) (TransferStatus, error) {
	switch st := TransferStatus(s); st {
	case TransferPending, TransferCompleted, TransferExpired, TransferCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown transfer status %q", s)
	}
}

// CanTransitionTo reports whether the state machine allows s -> next.
// Every non-pending status is terminal.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	switch s {
	case TransferPending:
		return next == TransferCompleted || next == TransferExpired || next == TransferCancelled
	case TransferCompleted, TransferExpired, TransferCancelled:
		return false
	default:
		return false
	}
}

// Candidate identifies the intended new owner of a vault. UserID or NomineeID
// may be set when the candidate is already known to the system.
type Candidate struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	NomineeID string `json:"nominee_id,omitempty"`
}

// TransferRequest is an offer to hand a vault to a new owner.
type TransferRequest struct {
	ID            string         `json:"id"`
	VaultID       string         `json:"vault_id"`
	TransferToken string         `json:"transfer_token,omitempty"`
	RequestedBy   string         `json:"requested_by"`
	Candidate     Candidate      `json:"candidate"`
	Reason        string         `json:"reason,omitempty"`
	Status        TransferStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	ApprovedAt    *time.Time     `json:"approved_at,omitempty"`
	NewOwnerID    string         `json:"new_owner_id,omitempty"`
	SupersededBy  string         `json:"superseded_by,omitempty"`
	EndedAt       *time.Time     `json:"ended_at,omitempty"`
}

// ExpiresAt returns the instant after which the request can no longer be redeemed.
func (t *TransferRequest) ExpiresAt(window time.Duration) time.Time {
	return t.CreatedAt.Add(window)
}

// Expired reports whether now lies strictly past the redemption window.
func (t *TransferRequest) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(t.CreatedAt) > window
}
