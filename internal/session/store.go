// Package session persists per-user registration state: the proof-of-
// registration token, the server public key handed out at registration, and
// the rotating symmetric envelope key.
package session

import (
	"context"
	"time"
)

// Store is the contract both the Redis-backed store and the in-memory store
// satisfy. Absent sessions are a normal branch: Validate reports false and
// GetOrRotateKey returns errs.ErrNotFound, never a panic or a server fault.
type Store interface {
	// Create writes a full session record with the given TTL and returns the
	// freshly generated symmetric key.
	Create(ctx context.Context, userID, token, serverPublicKey string) (string, error)

	// Validate fails closed: false when the record is absent, the token
	// mismatches, or the session was deactivated.
	Validate(ctx context.Context, userID, token string) (bool, error)

	// GetOrRotateKey returns the current symmetric key, minting a fresh one
	// first when the rotation window has elapsed. Returns errs.ErrNotFound
	// when no usable session exists.
	GetOrRotateKey(ctx context.Context, userID string) (string, error)

	// RemainingTTL reports how long the session record has left to live.
	// Returns 0 on any lookup failure rather than an error.
	RemainingTTL(ctx context.Context, userID string) time.Duration

	// Deactivate flips the session's liveness flag so Validate fails from
	// then on, without waiting for the TTL.
	Deactivate(ctx context.Context, userID string) error
}

// Hash field names, shared by both implementations and by tests that poke at
// records directly.
const (
	fieldToken      = "registration_token"
	fieldPublicKey  = "server_public_key"
	fieldSymKey     = "symmetric_key"
	fieldKeyCreated = "key_created_at"
	fieldActive     = "active"
)

func sessionKey(userID string) string {
	return "user:" + userID
}
