package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"github.com/pa-tiq/synthia-api/internal/errs"
)

const rsaBits = 2048

// GenerateKeyPair produces a fresh RSA keypair for one registration. The
// public half is returned PEM-encoded for the client; the private half is
// discarded by the caller once registration completes, since the server never
// decrypts anything under it.
func GenerateKeyPair() (*rsa.PrivateKey, string, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return nil, "", fmt.Errorf("generate rsa key: %w", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, "", fmt.Errorf("marshal public key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return priv, string(pemBytes), nil
}

// WrapSymmetricKey encrypts the raw session key bytes under the client's
// public key with RSA-OAEP (SHA-256 for both digest and MGF1) and returns the
// result as standard base64 so it fits in a JSON string or form field.
// A malformed or non-RSA key is a client error, never a server fault.
func WrapSymmetricKey(clientPublicKeyPEM string, key []byte) (string, error) {
	pub, err := parsePublicKey(clientPublicKeyPEM)
	if err != nil {
		return "", err
	}
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return "", fmt.Errorf("%w: encrypt under client key: %v", errs.ErrBadRequest, err)
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

func parsePublicKey(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("%w: public key is not PEM", errs.ErrBadRequest)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %v", errs.ErrBadRequest, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key is not RSA", errs.ErrBadRequest)
	}
	return pub, nil
}
