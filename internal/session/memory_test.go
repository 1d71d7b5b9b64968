package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pa-tiq/synthia-api/internal/errs"
)

func TestMemoryStore_SameSemanticsAsRedis(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore(24*time.Hour, time.Hour)
	ctx := context.Background()

	created, err := store.Create(ctx, "user-1", "token-1", "PEM")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, _ := store.Validate(ctx, "user-1", "token-1"); !ok {
		t.Fatalf("Validate rejected valid session")
	}
	if ok, _ := store.Validate(ctx, "user-1", "nope"); ok {
		t.Fatalf("Validate accepted wrong token")
	}

	key, err := store.GetOrRotateKey(ctx, "user-1")
	if err != nil || key != created {
		t.Fatalf("GetOrRotateKey: key=%q err=%v, want %q", key, err, created)
	}

	if err := store.Deactivate(ctx, "user-1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if ok, _ := store.Validate(ctx, "user-1", "token-1"); ok {
		t.Fatalf("Validate accepted deactivated session")
	}
	if _, err := store.GetOrRotateKey(ctx, "user-1"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("err=%v, want errs.ErrNotFound for deactivated session", err)
	}
}

func TestMemoryStore_RotationAndExpiry(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore(24*time.Hour, time.Hour)
	ctx := context.Background()

	base := time.Now()
	store.SetClock(func() time.Time { return base })

	created, _ := store.Create(ctx, "user-1", "token-1", "PEM")

	store.SetClock(func() time.Time { return base.Add(30 * time.Minute) })
	key, _ := store.GetOrRotateKey(ctx, "user-1")
	if key != created {
		t.Fatalf("key rotated inside the window")
	}

	store.SetClock(func() time.Time { return base.Add(2 * time.Hour) })
	rotated, err := store.GetOrRotateKey(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrRotateKey: %v", err)
	}
	if rotated == created {
		t.Fatalf("key not rotated after the window")
	}

	if ttl := store.RemainingTTL(ctx, "user-1"); ttl != 22*time.Hour {
		t.Fatalf("RemainingTTL=%v, want 22h", ttl)
	}

	store.SetClock(func() time.Time { return base.Add(25 * time.Hour) })
	if ok, _ := store.Validate(ctx, "user-1", "token-1"); ok {
		t.Fatalf("Validate accepted expired session")
	}
	if ttl := store.RemainingTTL(ctx, "user-1"); ttl != 0 {
		t.Fatalf("RemainingTTL=%v, want 0 after expiry", ttl)
	}
}
