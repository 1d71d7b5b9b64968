// Package errs contains sentinel errors shared across layers so HTTP handlers
// can map failures to status codes with errors.Is.
package errs

import "errors"

var (
	// ErrNotFound indicates the requested session or job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing, mismatched, or inactive registration.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDecryption indicates a payload that could not be opened under the
	// current session key (malformed framing or failed authentication).
	ErrDecryption = errors.New("decryption failed")

	// ErrBadRequest indicates client input that fails validation, such as an
	// unsupported file type or a malformed public key.
	ErrBadRequest = errors.New("bad request")
)
