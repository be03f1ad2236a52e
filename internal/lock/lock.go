package lock

// Package lock serializes return creation per order. The load-prior-returns →
// validate → insert sequence in the return service is not serializable on its
// own; holding a per-order lock across it is what keeps two concurrent
// requests from jointly over-returning.

import (
	"context"
	"fmt"
	"time"
)

// Locker acquires an exclusive lease on a key. Release must always be called,
// even on error paths, so the deferred form is the expected usage.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewLocker(cfg Config) (Locker, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryLocker(), nil
	case "redis":
		return NewRedisLocker(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported lock provider: %s", cfg.Provider)
	}
}

// ReturnKey builds the lock key serializing return creation for one order.
func ReturnKey(orderID string) string {
	return fmt.Sprintf("returns:order:%s", orderID)
}
