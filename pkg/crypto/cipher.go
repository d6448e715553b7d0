// Package crypto encrypts personal fields (phone numbers, licence plates)
// before they are persisted.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrMalformed = errors.New("crypto: malformed ciphertext")

// Cipher encodes and decodes field values.
type Cipher interface {
	Encode(plain string) (string, error)
	Decode(encoded string) (string, error)
}

type fieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher builds an XChaCha20-Poly1305 cipher from a 32-byte hex key.
func NewFieldCipher(keyHex string) (Cipher, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &fieldCipher{aead: aead}, nil
}

func (c *fieldCipher) Encode(plain string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *fieldCipher) Decode(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformed
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", ErrMalformed
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrMalformed
	}
	return string(plain), nil
}

// Plain is a pass-through Cipher used when no key is configured.
type Plain struct{}

func (Plain) Encode(plain string) (string, error)   { return plain, nil }
func (Plain) Decode(encoded string) (string, error) { return encoded, nil }
