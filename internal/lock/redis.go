package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gopost/repost/internal/logger"
)

// RedisLocker implements Locker on Redis. SET NX PX is the atomic
// conditional write; expired leases are garbage-collected by Redis
// itself, so no explicit delete is required after expiry.
type RedisLocker struct {
	client redis.UniversalClient
	holder string
	logger logger.Logger
}

// NewRedisLocker creates a locker with a process-stable holder identity.
func NewRedisLocker(client redis.UniversalClient, log logger.Logger) *RedisLocker {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &RedisLocker{
		client: client,
		holder: hostname + "-" + uuid.New().String(),
		logger: log,
	}
}

// Holder returns this locker's identity.
func (l *RedisLocker) Holder() string {
	return l.holder
}

func (l *RedisLocker) key(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

// Acquire attempts the conditional write. On contention it re-reads the
// row; if the holder turns out to be self (a race with an earlier own
// write) the lease is still reported as acquired.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	redisKey := l.key(key)
	now := time.Now()

	ok, err := l.client.SetNX(ctx, redisKey, l.holder, ttl).Result()
	if err != nil {
		return Lease{}, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	if ok {
		l.logger.Debug("Lock acquired",
			logger.String("key", key),
			logger.String("holder", l.holder),
			logger.Duration("ttl", ttl),
		)
		return Lease{OK: true, Key: key, Holder: l.holder, ExpiresAt: now.Add(ttl)}, nil
	}

	current, err := l.client.Get(ctx, redisKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Owner expired between SETNX and GET; retry the conditional write once.
			retried, retryErr := l.client.SetNX(ctx, redisKey, l.holder, ttl).Result()
			if retryErr != nil {
				return Lease{}, fmt.Errorf("acquire lock %s: %w", key, retryErr)
			}
			if retried {
				return Lease{OK: true, Key: key, Holder: l.holder, ExpiresAt: now.Add(ttl)}, nil
			}
			current = ""
		} else {
			return Lease{}, fmt.Errorf("read lock %s: %w", key, err)
		}
	}

	if current == l.holder {
		return Lease{OK: true, Key: key, Holder: l.holder, ExpiresAt: now.Add(ttl)}, nil
	}

	remaining, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil || remaining < 0 {
		remaining = 0
	}

	l.logger.Debug("Lock held by another instance",
		logger.String("key", key),
		logger.String("holder", current),
		logger.Duration("remaining", remaining),
	)

	return Lease{OK: false, Key: key, Holder: current, ExpiresAt: now.Add(remaining)}, nil
}

// Release unconditionally deletes the lease row.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
