package crypto

import (
	"strings"
	"testing"
)

func TestTokenCipher_RoundTrip(t *testing.T) {
	key := strings.Repeat("ab", 32)
	c, err := NewTokenCipher(key)
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}

	ct, err := c.Encrypt("ya29.access-token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ct == "ya29.access-token" {
		t.Fatal("ciphertext equals plaintext")
	}

	pt, err := c.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if pt != "ya29.access-token" {
		t.Fatalf("round trip mismatch: %q", pt)
	}
}

func TestTokenCipher_BadKey(t *testing.T) {
	if _, err := NewTokenCipher("deadbeef"); err == nil {
		t.Fatal("expected error for short key")
	}
	if _, err := NewTokenCipher("zz"); err == nil {
		t.Fatal("expected error for non-hex key")
	}
}
