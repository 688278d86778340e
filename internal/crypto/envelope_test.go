package crypto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t, "k1", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")

	for _, plain := range []string{"super-secret", "5432", "db.internal.example.com", "p@ss w0rd\n"} {
		raw, err := c.EncryptString(plain)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plain, err)
		}
		out, err := c.DecryptString(raw)
		if err != nil {
			t.Fatalf("decrypt %q: %v", plain, err)
		}
		if out != plain {
			t.Fatalf("round trip mismatch: got %q want %q", out, plain)
		}
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	c := newTestCipher(t, "k1", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")

	a, err := c.EncryptString("same input")
	if err != nil {
		t.Fatalf("encrypt#1: %v", err)
	}
	b, err := c.EncryptString("same input")
	if err != nil {
		t.Fatalf("encrypt#2: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct envelopes for repeated plaintext")
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	first := newTestCipher(t, "k1", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
	second := newTestCipher(t, "k1", "AQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQE=")

	raw, err := first.EncryptString("credential")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := second.DecryptString(raw); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
}

func TestDecryptMalformedFails(t *testing.T) {
	c := newTestCipher(t, "k1", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")

	for _, raw := range []string{
		"",
		"not json",
		`{"key_id":"missing","nonce":"AAAA","ciphertext":"AAAA"}`,
		`{"key_id":"k1","nonce":"%%%","ciphertext":"AAAA"}`,
	} {
		if _, err := c.DecryptString(raw); !errors.Is(err, ErrDecrypt) {
			t.Fatalf("input %q: expected ErrDecrypt, got %v", raw, err)
		}
	}
}

func TestDecryptTruncatedFails(t *testing.T) {
	c := newTestCipher(t, "k1", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")

	raw, err := c.EncryptString("long enough plaintext to truncate")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	truncated := strings.Replace(raw, `"ciphertext":"`, `"ciphertext":"AAAA`, 1)
	if _, err := c.DecryptString(truncated); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt for corrupted ciphertext, got %v", err)
	}
}

func TestRotationDecryptOldEncryptNew(t *testing.T) {
	oldKey := mustKey(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
	newKey := mustKey(t, "AQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQE=")

	oldCipher, err := NewCipher("old", map[string][]byte{"old": oldKey})
	if err != nil {
		t.Fatalf("old cipher: %v", err)
	}
	legacy, err := oldCipher.EncryptString("legacy")
	if err != nil {
		t.Fatalf("old encrypt: %v", err)
	}

	rotated, err := NewCipher("new", map[string][]byte{"old": oldKey, "new": newKey})
	if err != nil {
		t.Fatalf("rotated cipher: %v", err)
	}
	plain, err := rotated.DecryptString(legacy)
	if err != nil {
		t.Fatalf("decrypt with old key: %v", err)
	}
	if plain != "legacy" {
		t.Fatalf("unexpected plaintext %q", plain)
	}

	fresh, err := rotated.EncryptString("fresh")
	if err != nil {
		t.Fatalf("new encrypt: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal([]byte(fresh), &env); err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	if env.KeyID != "new" {
		t.Fatalf("expected new values sealed under current key, got %q", env.KeyID)
	}
}

func newTestCipher(t *testing.T, id, keyB64 string) *Cipher {
	t.Helper()
	c, err := NewCipher(id, map[string][]byte{id: mustKey(t, keyB64)})
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	return c
}

func mustKey(t *testing.T, b64 string) []byte {
	t.Helper()
	k, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	if len(k) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(k))
	}
	return k
}
