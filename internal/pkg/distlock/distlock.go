// Package distlock serializes work across replicas, such as schema
// migration at boot. Redis is preferred; without it a Postgres advisory
// lock is used.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by Do when the lock stayed busy until the
// context was done.
var ErrNotAcquired = errors.New("lock not acquired")

// Lock is a non-blocking mutual exclusion lock shared between processes.
// A Lock value is owned by one goroutine at a time.
type Lock interface {
	// TryAcquire returns true if the lock is now held by this instance.
	TryAcquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this instance still holds it.
	Release(ctx context.Context) error
}

// New picks the Redis lock when a client is given, otherwise a Postgres
// advisory lock on db.
func New(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) Lock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// Do acquires l, polling every interval until ctx is done, runs fn and
// releases the lock.
func Do(ctx context.Context, l Lock, interval time.Duration, fn func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := l.TryAcquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	defer func() {
		// Release even if ctx was cancelled while fn ran.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Release(rctx)
	}()
	return fn(ctx)
}
