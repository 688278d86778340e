package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecrypt marks ciphertext that cannot be read under the configured
// keys: produced under an unknown key, corrupt, or truncated. Callers
// branch on it with errors.Is; a failed field must not take down the
// whole project view.
var ErrDecrypt = errors.New("cannot decrypt value")

// Envelope is the stored form of one encrypted credential field. It is
// JSON so it survives as an opaque string in a text column.
type Envelope struct {
	KeyID      string `json:"key_id"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Cipher encrypts and decrypts short credential strings with
// AES-256-GCM. New values are sealed under the current key; old values
// stay readable as long as their key remains in the map, which is what
// makes rotation possible.
type Cipher struct {
	currentKeyID string
	keys         map[string][]byte
}

func NewCipher(currentKeyID string, keys map[string][]byte) (*Cipher, error) {
	if currentKeyID == "" {
		return nil, errors.New("current key id is empty")
	}
	if len(keys) == 0 {
		return nil, errors.New("keys map is empty")
	}
	if _, ok := keys[currentKeyID]; !ok {
		return nil, fmt.Errorf("current key id %q not found", currentKeyID)
	}
	cp := make(map[string][]byte, len(keys))
	for id, key := range keys {
		if len(key) != 32 {
			return nil, fmt.Errorf("key %q must be 32 bytes", id)
		}
		buf := make([]byte, len(key))
		copy(buf, key)
		cp[id] = buf
	}
	return &Cipher{currentKeyID: currentKeyID, keys: cp}, nil
}

// EncryptString seals plaintext under the current key and returns the
// JSON envelope. Output is non-deterministic: a fresh nonce per call.
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	aead, err := c.aead(c.currentKeyID)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)

	env := Envelope{
		KeyID:      c.currentKeyID,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(b), nil
}

// DecryptString is the inverse of EncryptString. Every failure mode
// that stems from the stored value itself wraps ErrDecrypt.
func (c *Cipher) DecryptString(raw string) (string, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return "", fmt.Errorf("%w: malformed envelope: %v", ErrDecrypt, err)
	}
	key, ok := c.keys[env.KeyID]
	if !ok {
		return "", fmt.Errorf("%w: unknown key id %q", ErrDecrypt, env.KeyID)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return "", fmt.Errorf("%w: decode nonce: %v", ErrDecrypt, err)
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decode ciphertext: %v", ErrDecrypt, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}

func (c *Cipher) aead(keyID string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.keys[keyID])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return aead, nil
}
