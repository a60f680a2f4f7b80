// Package crypto encrypts small secrets at rest with AES-256-GCM.
//
// Ciphertexts are base64(nonce || sealed). A fresh random 12-byte nonce is
// drawn per call, so equal plaintexts never produce equal ciphertexts.
//
//	key, _ := crypto.DeriveKey("<64 hex chars>")
//	enc, _ := crypto.Encrypt("secret", key)
//	dec, _ := crypto.Decrypt(enc, key)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrDecrypt is returned when a ciphertext fails authentication.
var ErrDecrypt = errors.New("decryption failed")

// DeriveKey decodes a 64-character hex string into a 32-byte key.
func DeriveKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid hex key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be exactly 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	return key, nil
}

// Encrypt seals plaintext under key.
func Encrypt(plaintext string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce generation: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func Decrypt(encoded string, key []byte) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	return string(plaintext), nil
}

// FieldCipher encrypts optional columns. With no key configured it stores
// values as-is, which keeps development setups working without a secret.
type FieldCipher struct {
	key []byte
}

// NewFieldCipher builds a FieldCipher from a hex key; an empty key disables
// encryption.
func NewFieldCipher(hexKey string) (*FieldCipher, error) {
	if hexKey == "" {
		return &FieldCipher{}, nil
	}
	key, err := DeriveKey(hexKey)
	if err != nil {
		return nil, err
	}
	return &FieldCipher{key: key}, nil
}

// Enabled reports whether values are actually encrypted.
func (c *FieldCipher) Enabled() bool { return len(c.key) > 0 }

// Seal encrypts v. Empty strings stay empty.
func (c *FieldCipher) Seal(v string) (string, error) {
	if v == "" || !c.Enabled() {
		return v, nil
	}
	return Encrypt(v, c.key)
}

// Open reverses Seal.
func (c *FieldCipher) Open(v string) (string, error) {
	if v == "" || !c.Enabled() {
		return v, nil
	}
	return Decrypt(v, c.key)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
