package model

import (
	"encoding/hex"
	"errors"
	"testing"
)

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if len(a) != tokenBytes*2 {
		t.Errorf("expected %d hex chars, got %d", tokenBytes*2, len(a))
	}
	if _, err := hex.DecodeString(a); err != nil {
		t.Errorf("token is not hex: %v", err)
	}

	b, _ := NewToken()
	if a == b {
		t.Error("two tokens should not be equal")
	}
}

func TestShareLinkRoundTrip(t *testing.T) {
	link := ShareLink("", TokenInvite, "abc123")
	if link != "zaupnik://invite?token=abc123" {
		t.Errorf("unexpected link %q", link)
	}

	kind, token, err := ParseShareLink(link)
	if err != nil {
		t.Fatalf("ParseShareLink: %v", err)
	}
	if kind != TokenInvite || token != "abc123" {
		t.Errorf("got (%q, %q), want (invite, abc123)", kind, token)
	}

	kind, token, err = ParseShareLink(ShareLink("vault", TokenTransfer, "xyz"))
	if err != nil {
		t.Fatalf("ParseShareLink: %v", err)
	}
	if kind != TokenTransfer || token != "xyz" {
		t.Errorf("got (%q, %q), want (transfer, xyz)", kind, token)
	}
}

func TestParseShareLinkRawAndInvalid(t *testing.T) {
	kind, token, err := ParseShareLink("  deadbeef \n")
	if err != nil {
		t.Fatalf("ParseShareLink raw: %v", err)
	}
	if kind != "" || token != "deadbeef" {
		t.Errorf("got (%q, %q), want (\"\", deadbeef)", kind, token)
	}

	for _, in := range []string{"", "zaupnik://share?token=a", "zaupnik://invite?foo=bar"} {
		if _, _, err := ParseShareLink(in); !errors.Is(err, ErrValidation) {
			t.Errorf("ParseShareLink(%q) = %v, want ErrValidation", in, err)
		}
	}
}
