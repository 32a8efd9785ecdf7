package lock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"rendezvous-api/internal/model"
)

func TestNopRunsFn(t *testing.T) {
	called := false
	err := Nop{}.WithSlotLock(context.Background(), model.Slot{}, func(context.Context) error {
		called = true
		return errors.New("boom")
	})
	if !called {
		t.Fatal("fn not called")
	}
	if err == nil || err.Error() != "boom" {
		t.Errorf("expected fn error to propagate, got %v", err)
	}
}

func TestSlotKey(t *testing.T) {
	got := slotKey(model.Slot{PractitionerID: "doc1", Date: "2025-06-01", Time: "10:00"})
	if got != "lock:slot:doc1|2025-06-01|10:00" {
		t.Errorf("slotKey = %q", got)
	}
}

func TestClientOptions(t *testing.T) {
	opts := ClientOptions{Addr: "cache:6379", Username: "u", Password: "p"}.redisOptions()
	if opts.PoolSize != defaultPoolSize {
		t.Errorf("PoolSize = %d, want %d", opts.PoolSize, defaultPoolSize)
	}
	if opts.DialTimeout != defaultTimeout || opts.ReadTimeout != defaultTimeout || opts.WriteTimeout != defaultTimeout {
		t.Errorf("timeouts = %v/%v/%v, want %v", opts.DialTimeout, opts.ReadTimeout, opts.WriteTimeout, defaultTimeout)
	}
	if opts.Addr != "cache:6379" || opts.Username != "u" || opts.Password != "p" {
		t.Errorf("credentials not carried: %+v", opts)
	}

	opts = ClientOptions{Addr: "cache:6379", PoolSize: 32, Timeout: 500 * time.Millisecond}.redisOptions()
	if opts.PoolSize != 32 || opts.ReadTimeout != 500*time.Millisecond {
		t.Errorf("got pool %d timeout %v", opts.PoolSize, opts.ReadTimeout)
	}
}

func TestNewRedisClientRequiresAddr(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), ClientOptions{}); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb, err := NewRedisClient(context.Background(), ClientOptions{Addr: addr})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })

	l := NewRedis(rdb, 2*time.Second)
	slot := model.Slot{PractitionerID: "doc-" + uuid.NewString(), Date: "2025-06-01", Time: "10:00"}

	err = l.WithSlotLock(context.Background(), slot, func(ctx context.Context) error {
		// second holder must be refused while the first is inside
		inner := l.WithSlotLock(ctx, slot, func(context.Context) error { return nil })
		if !errors.Is(inner, ErrNotAcquired) {
			t.Errorf("expected ErrNotAcquired, got %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer: %v", err)
	}

	// released after fn returns
	if err := l.WithSlotLock(context.Background(), slot, func(context.Context) error { return nil }); err != nil {
		t.Errorf("expected lock to be free again, got %v", err)
	}
}
