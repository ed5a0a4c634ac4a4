// Package sessionvault seals portal session state so it can rest in the
// database without exposing cookies or tokens. Payloads are encrypted with
// AES-256-GCM under a key derived from the configured session passphrase,
// and serialized as three dot-separated base64 segments:
// nonce, authentication tag, ciphertext.
package sessionvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"fieldline/internal/portal"
)

const (
	nonceSize = 12
	tagSize   = 16
)

// Vault encrypts and decrypts session payloads with a fixed derived key.
type Vault struct {
	key []byte
}

// New derives a 256-bit key from the passphrase via SHA-256.
func New(passphrase string) (*Vault, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, fmt.Errorf("%w: session key must not be empty", portal.ErrConfiguration)
	}
	sum := sha256.Sum256([]byte(passphrase))
	return &Vault{key: sum[:]}, nil
}

// Encrypt seals the payload and returns the dot-separated envelope. Each
// call draws a fresh random nonce, so encrypting the same payload twice
// yields different envelopes.
func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	aead, err := v.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: generating nonce: %w", portal.ErrInfrastructure, err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	enc := base64.StdEncoding
	return enc.EncodeToString(nonce) + "." + enc.EncodeToString(tag) + "." + enc.EncodeToString(ciphertext), nil
}

// Decrypt opens an envelope produced by Encrypt. Any malformed segment,
// wrong key, or tampered byte yields an error and no plaintext.
func (v *Vault) Decrypt(envelope string) ([]byte, error) {
	parts := strings.Split(envelope, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: session envelope must have three segments, got %d", portal.ErrValidation, len(parts))
	}

	enc := base64.StdEncoding
	nonce, err := enc.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: decoding nonce: %w", portal.ErrValidation, err)
	}
	tag, err := enc.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: decoding auth tag: %w", portal.ErrValidation, err)
	}
	ciphertext, err := enc.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: decoding ciphertext: %w", portal.ErrValidation, err)
	}
	if len(nonce) != nonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", portal.ErrValidation, nonceSize, len(nonce))
	}
	if len(tag) != tagSize {
		return nil, fmt.Errorf("%w: auth tag must be %d bytes, got %d", portal.ErrValidation, tagSize, len(tag))
	}

	aead, err := v.aead()
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: session envelope failed authentication", portal.ErrValidation)
	}
	return plaintext, nil
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing cipher: %w", portal.ErrInfrastructure, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing GCM: %w", portal.ErrInfrastructure, err)
	}
	return aead, nil
}
