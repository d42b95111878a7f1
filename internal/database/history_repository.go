package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gopost/repost/internal/models"
)

// ====================
// Publish history
// ====================

const recentPostColumns = `id, visual_hash, hash, caption, platform, external_id, source_url, posted_at`

// defaultHistoryLimit matches the dedup comparison window.
const defaultHistoryLimit = 30

// AppendHistory records a successful publication for future dedup purposes.
func (r *Repository) AppendHistory(ctx context.Context, post *models.RecentPost) (*models.RecentPost, error) {
	recorded := *post
	if recorded.ID == "" {
		recorded.ID = uuid.New().String()
	}
	if recorded.PostedAt.IsZero() {
		recorded.PostedAt = time.Now()
	}

	query := `
		INSERT INTO publish_history (id, visual_hash, hash, caption, platform, external_id, source_url, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + recentPostColumns

	err := r.db.QueryRowxContext(
		ctx, query,
		recorded.ID, recorded.VisualHash, recorded.Hash, recorded.Caption,
		recorded.Platform, recorded.ExternalID, recorded.SourceURL, recorded.PostedAt,
	).StructScan(&recorded)

	if err != nil {
		return nil, fmt.Errorf("failed to append publish history: %w", err)
	}

	return &recorded, nil
}

// RecentHistory returns the most recent publications, newest first.
func (r *Repository) RecentHistory(ctx context.Context, limit int) ([]models.RecentPost, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	posts := []models.RecentPost{}
	query := `
		SELECT ` + recentPostColumns + `
		FROM publish_history
		ORDER BY posted_at DESC
		LIMIT $1
	`

	err := r.db.SelectContext(ctx, &posts, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list publish history: %w", err)
	}

	return posts, nil
}

// CountPostedToday returns the number of history rows recorded today.
func (r *Repository) CountPostedToday(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM publish_history WHERE posted_at >= $1`

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	err := r.db.GetContext(ctx, &count, query, startOfDay)
	if err != nil {
		return 0, fmt.Errorf("failed to count today's posts: %w", err)
	}

	return count, nil
}
