package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/pa-tiq/synthia-api/internal/errs"
)

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	t.Parallel()
	key, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	for _, pt := range [][]byte{
		[]byte("hello world"),
		[]byte(`{"job_id":"abc-123"}`),
		[]byte{0x00, 0x01, 0xff},
		{},
	} {
		token, err := Encrypt(key, pt)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		got, err := Decrypt(key, token)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(got, pt) {
			t.Fatalf("roundtrip mismatch: got %q want %q", got, pt)
		}
	}
}

func TestDecrypt_TamperDetection(t *testing.T) {
	t.Parallel()
	key, _ := NewKey()
	token, err := Encrypt(key, []byte("sensitive control payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	blob, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	// Flipping any single byte must surface as an authentication failure,
	// never as silently corrupted plaintext.
	for i := range blob {
		tampered := make([]byte, len(blob))
		copy(tampered, blob)
		tampered[i] ^= 0x01
		_, err := Decrypt(key, base64.RawURLEncoding.EncodeToString(tampered))
		if !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("byte %d: err=%v, want ErrTokenInvalid", i, err)
		}
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	t.Parallel()
	key1, _ := NewKey()
	key2, _ := NewKey()
	token, _ := Encrypt(key1, []byte("payload"))
	if _, err := Decrypt(key2, token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err=%v, want ErrTokenInvalid", err)
	}
}

func TestDecrypt_MalformedToken(t *testing.T) {
	t.Parallel()
	key, _ := NewKey()
	for _, token := range []string{
		"not base64!!!",
		"",
		base64.RawURLEncoding.EncodeToString([]byte("short")),
	} {
		_, err := Decrypt(key, token)
		if !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("token %q: err=%v, want ErrTokenMalformed", token, err)
		}
		if !errors.Is(err, errs.ErrDecryption) {
			t.Fatalf("token %q: err=%v must wrap errs.ErrDecryption", token, err)
		}
	}
}

func TestDecrypt_BadKey(t *testing.T) {
	t.Parallel()
	if _, err := Decrypt("definitely-not-a-key", "token"); !errors.Is(err, ErrBadKey) {
		t.Fatalf("err=%v, want ErrBadKey", err)
	}
}

func TestNewKey_UniqueAndDecodable(t *testing.T) {
	t.Parallel()
	a, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	b, _ := NewKey()
	if a == b {
		t.Fatalf("NewKey produced equal keys")
	}
	raw, err := KeyBytes(a)
	if err != nil {
		t.Fatalf("KeyBytes: %v", err)
	}
	if len(raw) != keyLen {
		t.Fatalf("len=%d, want=%d", len(raw), keyLen)
	}
}
