package model

import (
	"fmt"
	"time"
)

// NomineeStatus is the lifecycle state of a nominee grant.
type NomineeStatus string

// Nominee statuses.
const (
	NomineePending  NomineeStatus = "pending"
	NomineeAccepted NomineeStatus = "accepted"
	NomineeActive   NomineeStatus = "active"
	NomineeInactive NomineeStatus = "inactive"
	NomineeRevoked  NomineeStatus = "revoked"
)

// ParseNomineeStatus converts a stored value into a NomineeStatus.
func ParseNomineeStatus(s string) (NomineeStatus, error) {
	switch st := NomineeStatus(s); st {
	case NomineePending, NomineeAccepted, NomineeActive, NomineeInactive, NomineeRevoked:
		return st, nil
	default:
		return "", fmt.Errorf("unknown nominee status %q", s)
	}
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s NomineeStatus) CanTransitionTo(next NomineeStatus) bool {
	switch s {
	case NomineePending:
		return next == NomineeAccepted || next == NomineeInactive || next == NomineeRevoked
	case NomineeAccepted:
		return next == NomineeActive || next == NomineeInactive || next == NomineeRevoked
	case NomineeActive:
		return next == NomineeInactive || next == NomineeRevoked
	case NomineeInactive, NomineeRevoked:
		return false
	default:
		return false
	}
}

// CanCommunicate reports whether the secure channel is open in this status.
func (s NomineeStatus) CanCommunicate() bool {
	switch s {
	case NomineeAccepted, NomineeActive:
		return true
	case NomineePending, NomineeInactive, NomineeRevoked:
		return false
	default:
		return false
	}
}

// Ended reports whether s is terminal.
func (s NomineeStatus) Ended() bool {
	switch s {
	case NomineeInactive, NomineeRevoked:
		return true
	case NomineePending, NomineeAccepted, NomineeActive:
		return false
	default:
		return true
	}
}

// LiveNomineeStatuses are the statuses an ownership change forces to inactive.
var LiveNomineeStatuses = []NomineeStatus{NomineePending, NomineeAccepted, NomineeActive}

// Nominee is a grant of concurrent, non-owning access to a vault.
type Nominee struct {
	ID          string        `json:"id"`
	VaultID     string        `json:"vault_id"`
	Name        string        `json:"name"`
	Email       string        `json:"email,omitempty"`
	Phone       string        `json:"phone,omitempty"`
	InviteToken string        `json:"invite_token,omitempty"`
	IssuedBy    string        `json:"issued_by"`
	UserID      string        `json:"user_id,omitempty"`
	Status      NomineeStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	AcceptedAt  *time.Time    `json:"accepted_at,omitempty"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
}

// Contact is optional, descriptive contact information for a nominee or a
// transfer candidate. It is never used to bind redemption to an identity.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}
