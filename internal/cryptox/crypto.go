// Package cryptox seals small secrets at rest: a key is derived from a
// configured secret with Argon2id, and values are encrypted with
// XChaCha20-Poly1305.
package cryptox

import (
	"errors"
	"fmt"

	"github.com/vroomly/rentclient/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// SaltSize is the length of the salt DeriveKey expects to be stored next to
// the sealed data.
const SaltSize = 16

var ErrCorrupted = errors.New("sealed value is corrupted or the key is wrong")

// DeriveKey stretches secret into a 32-byte key.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
}

// NewSalt returns a random salt for DeriveKey.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// Seal encrypts plaintext with key. The random nonce is prepended to the
// ciphertext; ad, if any, must be passed to Open unchanged.
func Seal(key, plaintext, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	nonce := common.GenerateRandByteArray(aead.NonceSize())
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, ad), nil
}

// Open reverses Seal.
func Open(key, sealed, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCorrupted
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, ErrCorrupted
	}
	return plaintext, nil
}
