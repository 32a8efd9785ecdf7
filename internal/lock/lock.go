// Package lock serialises bookings of the same slot across API instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rendezvous-api/internal/model"
)

var ErrNotAcquired = errors.New("slot lock not acquired")

// Locker guards the check-then-insert section for one slot.
type Locker interface {
	WithSlotLock(ctx context.Context, slot model.Slot, fn func(ctx context.Context) error) error
}

// Nop runs fn directly; the store's unique index still holds the invariant.
type Nop struct{}

func (Nop) WithSlotLock(ctx context.Context, _ model.Slot, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis returns a Locker holding one SETNX key per slot for at most ttl.
func NewRedis(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{client: client, ttl: ttl}
}

func slotKey(slot model.Slot) string {
	return "lock:slot:" + slot.Key()
}

func (l *redisLocker) WithSlotLock(ctx context.Context, slot model.Slot, fn func(ctx context.Context) error) error {
	key := slotKey(slot)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(lockCtx)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}
