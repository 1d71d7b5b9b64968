package session

import (
	"context"
	"sync"
	"time"

	"github.com/pa-tiq/synthia-api/internal/crypto"
	"github.com/pa-tiq/synthia-api/internal/errs"
)

type record struct {
	token      string
	publicKey  string
	symKey     string
	keyCreated time.Time
	active     bool
	expiresAt  time.Time
}

// MemoryStore is an in-memory Store with the same semantics as the Redis
// implementation. It backs handler tests and single-process development runs
// where no Redis is available.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*record
	ttl      time.Duration
	rotation time.Duration
	now      func() time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore(ttl, rotation time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*record),
		ttl:      ttl,
		rotation: rotation,
		now:      time.Now,
	}
}

// SetClock replaces the time source; tests use it to step past the rotation
// window and the session TTL.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Create writes a full record and returns the fresh symmetric key.
func (m *MemoryStore) Create(ctx context.Context, userID, token, serverPublicKey string) (string, error) {
	symKey, err := crypto.NewKey()
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sessions[userID] = &record{
		token:      token,
		publicKey:  serverPublicKey,
		symKey:     symKey,
		keyCreated: now,
		active:     true,
		expiresAt:  now.Add(m.ttl),
	}
	return symKey, nil
}

// Validate fails closed like the Redis store.
func (m *MemoryStore) Validate(ctx context.Context, userID, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.get(userID)
	if rec == nil {
		return false, nil
	}
	return rec.token == token && rec.active, nil
}

// GetOrRotateKey returns the current key, rotating when stale. The mutex makes
// the check-and-set trivially atomic here.
func (m *MemoryStore) GetOrRotateKey(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.get(userID)
	if rec == nil || !rec.active {
		return "", errs.ErrNotFound
	}
	if rec.symKey != "" && m.now().Sub(rec.keyCreated) <= m.rotation {
		return rec.symKey, nil
	}
	fresh, err := crypto.NewKey()
	if err != nil {
		return "", err
	}
	rec.symKey = fresh
	rec.keyCreated = m.now()
	return fresh, nil
}

// RemainingTTL returns 0 for expired or missing sessions.
func (m *MemoryStore) RemainingTTL(ctx context.Context, userID string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.get(userID)
	if rec == nil {
		return 0
	}
	return rec.expiresAt.Sub(m.now())
}

// Deactivate flips the liveness flag.
func (m *MemoryStore) Deactivate(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.get(userID)
	if rec == nil {
		return errs.ErrNotFound
	}
	rec.active = false
	return nil
}

// get returns the live record or nil, evicting expired entries on the way.
// Callers must hold the mutex.
func (m *MemoryStore) get(userID string) *record {
	rec, ok := m.sessions[userID]
	if !ok {
		return nil
	}
	if !m.now().Before(rec.expiresAt) {
		delete(m.sessions, userID)
		return nil
	}
	return rec
}
