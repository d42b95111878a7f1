package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gopost/repost/internal/models"
)

// ====================
// Daily quota counters
// ====================
//
// One row per platform per local calendar day. Counts only ever grow
// within a day; a new date_key implicitly resets them.

// CountToday returns today's publish count for a platform, 0 if no row exists.
func (r *Repository) CountToday(ctx context.Context, platform string) (int, error) {
	var count int
	query := `SELECT count FROM daily_quota WHERE platform = $1 AND date_key = $2`

	err := r.db.GetContext(ctx, &count, query, platform, todayKey())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get quota count: %w", err)
	}

	return count, nil
}

// IncrementQuota atomically adds 1 to today's row for a platform,
// creating it if absent. There is no decrement.
func (r *Repository) IncrementQuota(ctx context.Context, platform string) error {
	query := `
		INSERT INTO daily_quota (platform, date_key, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (platform, date_key) DO UPDATE SET
			count = daily_quota.count + 1
	`

	_, err := r.db.ExecContext(ctx, query, platform, todayKey())
	if err != nil {
		return fmt.Errorf("failed to increment quota: %w", err)
	}

	return nil
}

// UsedToday returns today's publish counts keyed by platform. Platforms
// with no row are absent from the map.
func (r *Repository) UsedToday(ctx context.Context) (map[string]int, error) {
	query := `SELECT platform, count FROM daily_quota WHERE date_key = $1`

	rows, err := r.db.QueryContext(ctx, query, todayKey())
	if err != nil {
		return nil, fmt.Errorf("failed to get today's quota usage: %w", err)
	}
	defer rows.Close()

	used := make(map[string]int)
	for rows.Next() {
		var platform string
		var count int
		if scanErr := rows.Scan(&platform, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan row: %w", scanErr)
		}
		used[platform] = count
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("row iteration error: %w", rowsErr)
	}

	return used, nil
}

// todayKey returns the local calendar date key, not an instant.
func todayKey() string {
	return time.Now().Format(models.DateKeyLayout)
}
