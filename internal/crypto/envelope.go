// Package crypto contains the session security primitives: the symmetric
// envelope used for small control payloads and the RSA bootstrap used to
// deliver session keys to clients.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pa-tiq/synthia-api/internal/errs"
)

// Envelope failure modes. Both wrap errs.ErrDecryption so handlers map them
// to a 400 with a single errors.Is check.
var (
	// ErrTokenMalformed indicates bad base64 or truncated framing.
	ErrTokenMalformed = fmt.Errorf("%w: malformed token", errs.ErrDecryption)

	// ErrTokenInvalid indicates an authentication failure: the token was
	// tampered with or sealed under a different key.
	ErrTokenInvalid = fmt.Errorf("%w: invalid token", errs.ErrDecryption)

	// ErrBadKey indicates a session key that is not a valid envelope key.
	ErrBadKey = fmt.Errorf("%w: bad key", errs.ErrDecryption)
)

const keyLen = chacha20poly1305.KeySize

// NewKey returns a fresh envelope key as url-safe base64 text. Keys travel
// through the session store and form fields, so the textual form is the
// canonical one.
func NewKey() (string, error) {
	raw := make([]byte, keyLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// KeyBytes decodes the textual key back to raw bytes, e.g. for wrapping under
// a client's public key.
func KeyBytes(key string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(key)
	if err != nil || len(raw) != keyLen {
		return nil, ErrBadKey
	}
	return raw, nil
}

// Encrypt seals plaintext under key using XChaCha20-Poly1305 with a random
// nonce prepended to the ciphertext, and returns the token as url-safe base64.
func Encrypt(key string, plaintext []byte) (string, error) {
	raw, err := KeyBytes(key)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, nil)...)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt opens a token produced by Encrypt. It distinguishes malformed
// framing from authentication failures; both are client errors.
func Decrypt(key string, token string) ([]byte, error) {
	raw, err := KeyBytes(key)
	if err != nil {
		return nil, err
	}
	blob, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrTokenMalformed
	}
	if len(blob) < chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, ErrTokenMalformed
	}
	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	nonce := blob[:chacha20poly1305.NonceSizeX]
	ct := blob[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	return plaintext, nil
}
