package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// TokenKind says which record a capability token unlocks.
type TokenKind string

// Token kinds. Each doubles as the host part of a share link.
const (
	TokenInvite   TokenKind = "invite"
	TokenTransfer TokenKind = "transfer"
)

// DefaultLinkScheme is the URL scheme used for share links.
const DefaultLinkScheme = "zaupnik"

// tokenBytes is the amount of randomness in a capability token.
const tokenBytes = 32

// CapabilityToken is the Token Store record for one invite or transfer token.
type CapabilityToken struct {
	Token      string     `json:"token"`
	Kind       TokenKind  `json:"kind"`
	VaultID    string     `json:"vault_id"`
	SubjectID  string     `json:"subject_id"`
	IssuedBy   string     `json:"issued_by"`
	CreatedAt  time.Time  `json:"created_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	ConsumedBy string     `json:"consumed_by,omitempty"`
}

// Consumed reports whether the token has been redeemed.
func (t *CapabilityToken) Consumed() bool {
	return t.ConsumedAt != nil
}

// NewToken returns a fresh, unguessable token string.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ShareLink builds the out-of-band link for a token, e.g.
// zaupnik://invite?token=abc.
func ShareLink(scheme string, kind TokenKind, token string) string {
	if scheme == "" {
		scheme = DefaultLinkScheme
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     string(kind),
		RawQuery: url.Values{"token": {token}}.Encode(),
	}
	return u.String()
}

// ParseShareLink extracts the token from a share link. A bare token (manual
// paste) is returned as-is with an empty kind.
func ParseShareLink(s string) (TokenKind, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", fmt.Errorf("%w: empty token", ErrValidation)
	}
	if !strings.Contains(s, "://") {
		return "", s, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid link: %v", ErrValidation, err)
	}

	kind := TokenKind(u.Host)
	if kind != TokenInvite && kind != TokenTransfer {
		return "", "", fmt.Errorf("%w: unknown link kind %q", ErrValidation, u.Host)
	}

	token := u.Query().Get("token")
	if token == "" {
		return "", "", fmt.Errorf("%w: link has no token", ErrValidation)
	}
	return kind, token, nil
}
