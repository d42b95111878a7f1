// Package dedup provides a Redis-backed cache of recently published
// fingerprints, used as a fast-path duplicate check before a candidate's
// payload is downloaded.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gopost/repost/internal/logger"
)

// Cache tracks published fingerprints with a TTL. It is advisory: the
// authoritative comparison set is the publish history; a cache miss only
// means the expensive checks still run.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger logger.Logger
}

// NewCache creates a fingerprint cache.
func NewCache(client redis.UniversalClient, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

func (c *Cache) key(fingerprint string) string {
	return fmt.Sprintf("posted:fingerprint:%s", fingerprint)
}

// Seen reports whether the fingerprint was recently published. A Redis
// error degrades to false: the pipeline falls back to the full checks
// rather than failing the run.
func (c *Cache) Seen(ctx context.Context, fingerprint string) bool {
	if fingerprint == "" {
		return false
	}

	exists, err := c.client.Exists(ctx, c.key(fingerprint)).Result()
	if err != nil {
		c.logger.Warn("Redis error checking fingerprint",
			logger.String("fingerprint", fingerprint),
			logger.Error(err),
		)
		return false
	}

	return exists == 1
}

// Mark records a fingerprint as published.
func (c *Cache) Mark(ctx context.Context, fingerprint string) error {
	if fingerprint == "" {
		return nil
	}

	if err := c.client.Set(ctx, c.key(fingerprint), "1", c.ttl).Err(); err != nil {
		c.logger.Warn("Redis error marking fingerprint",
			logger.String("fingerprint", fingerprint),
			logger.Error(err),
		)
		return fmt.Errorf("mark fingerprint: %w", err)
	}

	return nil
}
