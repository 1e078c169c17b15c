package model

import "time"

// Vault is an encrypted document vault. Only its identity and ownership
// matter here; contents live elsewhere.
type Vault struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined field (not always populated).
	OwnerName string `json:"owner_name,omitempty"`
}

// Message is one entry on the secure channel between a vault owner and a nominee.
type Message struct {
	ID        string    `json:"id"`
	VaultID   string    `json:"vault_id"`
	NomineeID string    `json:"nominee_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
