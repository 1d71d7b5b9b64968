package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pa-tiq/synthia-api/internal/errs"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, 24*time.Hour, time.Hour), mr
}

func TestRedisStore_CreateAndValidate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	symKey, err := store.Create(ctx, "user-1", "token-1", "PEM")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if symKey == "" {
		t.Fatalf("Create returned empty symmetric key")
	}

	ok, err := store.Validate(ctx, "user-1", "token-1")
	if err != nil || !ok {
		t.Fatalf("Validate: ok=%v err=%v, want true", ok, err)
	}
	// Fails closed on every bad input.
	if ok, _ := store.Validate(ctx, "no-such-user", "token-1"); ok {
		t.Fatalf("Validate accepted nonexistent user")
	}
	if ok, _ := store.Validate(ctx, "user-1", "wrong-token"); ok {
		t.Fatalf("Validate accepted wrong token")
	}
	if err := store.Deactivate(ctx, "user-1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if ok, _ := store.Validate(ctx, "user-1", "token-1"); ok {
		t.Fatalf("Validate accepted deactivated session")
	}
}

func TestRedisStore_RotationIdempotentWithinWindow(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "user-1", "token-1", "PEM")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	first, err := store.GetOrRotateKey(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrRotateKey: %v", err)
	}
	second, err := store.GetOrRotateKey(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrRotateKey: %v", err)
	}
	if first != created || second != created {
		t.Fatalf("keys rotated inside the window: %q %q %q", created, first, second)
	}
}

func TestRedisStore_RotationAfterWindow(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "user-1", "token-1", "PEM")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	before := mr.HGet(sessionKey("user-1"), fieldKeyCreated)

	store.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	rotated, err := store.GetOrRotateKey(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrRotateKey: %v", err)
	}
	if rotated == created {
		t.Fatalf("key not rotated after the window elapsed")
	}
	after := mr.HGet(sessionKey("user-1"), fieldKeyCreated)
	if after == before {
		t.Fatalf("key_created_at not updated on rotation")
	}

	// The rotated key is now the stable one.
	again, err := store.GetOrRotateKey(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrRotateKey: %v", err)
	}
	if again != rotated {
		t.Fatalf("key changed again within the new window")
	}
}

func TestRedisStore_MissingSession(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetOrRotateKey(ctx, "ghost"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("err=%v, want errs.ErrNotFound", err)
	}
	if ttl := store.RemainingTTL(ctx, "ghost"); ttl != 0 {
		t.Fatalf("RemainingTTL=%v, want 0", ttl)
	}
	if err := store.Deactivate(ctx, "ghost"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("Deactivate err=%v, want errs.ErrNotFound", err)
	}
}

func TestRedisStore_Expiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	store := NewRedisStore(rdb, time.Second, time.Hour)
	ctx := context.Background()

	if _, err := store.Create(ctx, "user-1", "token-1", "PEM"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ttl := store.RemainingTTL(ctx, "user-1"); ttl <= 0 {
		t.Fatalf("RemainingTTL=%v, want > 0", ttl)
	}

	mr.FastForward(2 * time.Second)

	if ok, _ := store.Validate(ctx, "user-1", "token-1"); ok {
		t.Fatalf("Validate accepted expired session")
	}
	if _, err := store.GetOrRotateKey(ctx, "user-1"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("err=%v, want errs.ErrNotFound after expiry", err)
	}
	if ttl := store.RemainingTTL(ctx, "user-1"); ttl != 0 {
		t.Fatalf("RemainingTTL=%v, want 0 after expiry", ttl)
	}
}
