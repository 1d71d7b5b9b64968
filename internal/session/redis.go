package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pa-tiq/synthia-api/internal/crypto"
	"github.com/pa-tiq/synthia-api/internal/errs"
)

// casRetries bounds how often a rotation loser re-reads before giving up.
const casRetries = 3

// RedisStore keeps sessions in Redis hashes with a per-record TTL. Key
// rotation is a WATCH-guarded check-and-set on key_created_at so concurrent
// rotators converge on a single winner (the losers re-read the winner's key).
type RedisStore struct {
	rdb      redis.UniversalClient
	ttl      time.Duration
	rotation time.Duration
	now      func() time.Time
}

// NewRedisStore builds a store over an existing client. ttl is the absolute
// session lifetime, rotation the symmetric key refresh window.
func NewRedisStore(rdb redis.UniversalClient, ttl, rotation time.Duration) *RedisStore {
	return &RedisStore{
		rdb:      rdb,
		ttl:      ttl,
		rotation: rotation,
		now:      time.Now,
	}
}

// SetClock replaces the time source; tests use it to step past the rotation
// window.
func (s *RedisStore) SetClock(now func() time.Time) {
	s.now = now
}

// Create writes the full record and arms the TTL in one pipeline.
func (s *RedisStore) Create(ctx context.Context, userID, token, serverPublicKey string) (string, error) {
	symKey, err := crypto.NewKey()
	if err != nil {
		return "", err
	}
	key := sessionKey(userID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			fieldToken:      token,
			fieldPublicKey:  serverPublicKey,
			fieldSymKey:     symKey,
			fieldKeyCreated: strconv.FormatInt(s.now().Unix(), 10),
			fieldActive:     "true",
		})
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return symKey, nil
}

// Validate fails closed on absent records, token mismatch, and deactivation.
func (s *RedisStore) Validate(ctx context.Context, userID, token string) (bool, error) {
	fields, err := s.rdb.HGetAll(ctx, sessionKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("read session: %w", err)
	}
	if len(fields) == 0 {
		return false, nil
	}
	return fields[fieldToken] == token && fields[fieldActive] == "true", nil
}

// GetOrRotateKey returns the current key, rotating first when stale.
func (s *RedisStore) GetOrRotateKey(ctx context.Context, userID string) (string, error) {
	key := sessionKey(userID)
	for attempt := 0; attempt < casRetries; attempt++ {
		var symKey string
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			fields, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return fmt.Errorf("read session: %w", err)
			}
			if len(fields) == 0 || fields[fieldActive] != "true" {
				return errs.ErrNotFound
			}
			createdAt, _ := strconv.ParseInt(fields[fieldKeyCreated], 10, 64)
			current := fields[fieldSymKey]
			if current != "" && s.now().Sub(time.Unix(createdAt, 0)) <= s.rotation {
				symKey = current
				return nil
			}
			fresh, err := crypto.NewKey()
			if err != nil {
				return err
			}
			// The MULTI/EXEC fails when another rotator touched the record
			// between our read and here; the retry loop re-reads.
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, map[string]interface{}{
					fieldSymKey:     fresh,
					fieldKeyCreated: strconv.FormatInt(s.now().Unix(), 10),
				})
				return nil
			})
			if err != nil {
				return err
			}
			symKey = fresh
			return nil
		}, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return "", err
		}
		return symKey, nil
	}
	return "", fmt.Errorf("rotate key for %s: too many conflicts", userID)
}

// RemainingTTL returns 0 for missing keys and on any Redis error.
func (s *RedisStore) RemainingTTL(ctx context.Context, userID string) time.Duration {
	ttl, err := s.rdb.TTL(ctx, sessionKey(userID)).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}

// Deactivate marks the session unusable without deleting the record.
func (s *RedisStore) Deactivate(ctx context.Context, userID string) error {
	key := sessionKey(userID)
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if exists == 0 {
		return errs.ErrNotFound
	}
	if err := s.rdb.HSet(ctx, key, fieldActive, "false").Err(); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}
