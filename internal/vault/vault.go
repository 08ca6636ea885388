package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// CredentialVault encrypts connection secrets before they hit the registry.
// Callers own error handling; no retries live here. Plaintext secrets must
// never reach logs or audit payloads.
type CredentialVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

var ErrInvalidKeyLength = errors.New("vault: key must be 16, 24 or 32 bytes")

type aesGCMVault struct {
	aead cipher.AEAD
}

// NewAESVault builds an AES-GCM vault from a base64 key (an optional
// "base64:" prefix is stripped). Ciphertexts are base64(nonce || sealed).
func NewAESVault(encodedKey string) (CredentialVault, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encodedKey, "base64:"))
	if err != nil {
		return nil, fmt.Errorf("vault: failed to decode key: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &aesGCMVault{aead: aead}, nil
}

func (v *aesGCMVault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *aesGCMVault) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", errors.New("vault: empty ciphertext")
	}
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("vault: failed to decode ciphertext: %w", err)
	}
	if len(blob) < v.aead.NonceSize() {
		return "", errors.New("vault: ciphertext too short")
	}
	nonce, sealed := blob[:v.aead.NonceSize()], blob[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("vault: failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}
