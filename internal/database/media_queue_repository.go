package database

import (
	"context"
	"fmt"

	"github.com/gopost/repost/internal/models"
)

// ====================
// Media queue
// ====================
//
// Pending media items awaiting publication. Rows are written by the
// upload collaborator; the core reads them for diagnostics only.

// ListPendingMedia returns pending media-queue items, oldest first.
func (r *Repository) ListPendingMedia(ctx context.Context) ([]models.QueuedItem, error) {
	items := []models.QueuedItem{}
	query := `
		SELECT id, video_url, thumb_url, added_at
		FROM media_queue
		WHERE posted = FALSE
		ORDER BY added_at ASC
	`

	err := r.db.SelectContext(ctx, &items, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending media: %w", err)
	}

	return items, nil
}

// CountPendingMedia returns the number of pending media-queue items.
func (r *Repository) CountPendingMedia(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM media_queue WHERE posted = FALSE`

	err := r.db.GetContext(ctx, &count, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending media: %w", err)
	}

	return count, nil
}
