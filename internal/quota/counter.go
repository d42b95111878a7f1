// Package quota provides per-platform per-day publish accounting.
package quota

import (
	"context"
	"fmt"

	"github.com/gopost/repost/internal/logger"
)

// Store is the persistence boundary for daily counters.
type Store interface {
	CountToday(ctx context.Context, platform string) (int, error)
	IncrementQuota(ctx context.Context, platform string) error
	UsedToday(ctx context.Context) (map[string]int, error)
}

// Counter tracks daily publish usage against configured limits.
type Counter struct {
	store  Store
	logger logger.Logger
}

// NewCounter creates a new quota counter backed by store.
func NewCounter(store Store, log logger.Logger) *Counter {
	return &Counter{
		store:  store,
		logger: log,
	}
}

// Remaining returns how many publishes the platform has left today,
// never negative even if the recorded count exceeds the limit.
func (c *Counter) Remaining(ctx context.Context, platform string, dailyLimit int) (int, error) {
	count, err := c.store.CountToday(ctx, platform)
	if err != nil {
		return 0, fmt.Errorf("read quota for %s: %w", platform, err)
	}

	remaining := dailyLimit - count
	if remaining < 0 {
		remaining = 0
	}

	c.logger.Debug("Quota read",
		logger.String("platform", platform),
		logger.Int("used", count),
		logger.Int("limit", dailyLimit),
		logger.Int("remaining", remaining),
	)

	return remaining, nil
}

// Increment records one publish for the platform today. Callers must not
// assume success; a store failure is retryable.
func (c *Counter) Increment(ctx context.Context, platform string) error {
	if err := c.store.IncrementQuota(ctx, platform); err != nil {
		return fmt.Errorf("increment quota for %s: %w", platform, err)
	}
	return nil
}

// UsedToday returns today's counts keyed by platform.
func (c *Counter) UsedToday(ctx context.Context) (map[string]int, error) {
	used, err := c.store.UsedToday(ctx)
	if err != nil {
		return nil, fmt.Errorf("read today's quota usage: %w", err)
	}
	return used, nil
}
