package database_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/gopost/repost/internal/models"
)

var historyColumns = []string{
	"id", "visual_hash", "hash", "caption", "platform", "external_id", "source_url", "posted_at",
}

func TestAppendHistory(t *testing.T) {
	repo, mock := newMockRepository(t)

	postedAt := time.Now()
	rows := sqlmock.NewRows(historyColumns).AddRow(
		"generated-id", "p:a1b2", "", "sunset over the lake", "mastodon",
		"ext-1", "https://cdn.example/v.mp4", postedAt,
	)
	mock.ExpectQuery("INSERT INTO publish_history").
		WillReturnRows(rows)

	recorded, err := repo.AppendHistory(context.Background(), &models.RecentPost{
		VisualHash: "p:a1b2",
		Caption:    "sunset over the lake",
		Platform:   "mastodon",
		ExternalID: "ext-1",
		SourceURL:  "https://cdn.example/v.mp4",
	})
	if err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}

	if recorded.ID == "" {
		t.Error("AppendHistory() returned empty ID")
	}
	if recorded.VisualHash != "p:a1b2" {
		t.Errorf("AppendHistory() visual_hash = %q, want %q", recorded.VisualHash, "p:a1b2")
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestAppendHistoryDatabaseError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("INSERT INTO publish_history").
		WillReturnError(sql.ErrConnDone)

	_, err := repo.AppendHistory(context.Background(), &models.RecentPost{
		Caption:  "sunset",
		Platform: "mastodon",
	})
	if err == nil {
		t.Error("AppendHistory() expected error, got nil")
	}
}

func TestRecentHistory(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := sqlmock.NewRows(historyColumns).
		AddRow("id-2", "h2", "", "newer", "mastodon", "", "", time.Now()).
		AddRow("id-1", "h1", "", "older", "mastodon", "", "", time.Now().Add(-time.Hour))
	mock.ExpectQuery("SELECT (.+) FROM publish_history").
		WithArgs(30).
		WillReturnRows(rows)

	posts, err := repo.RecentHistory(context.Background(), 30)
	if err != nil {
		t.Fatalf("RecentHistory() error = %v", err)
	}

	if len(posts) != 2 {
		t.Fatalf("RecentHistory() returned %d posts, want 2", len(posts))
	}
	if posts[0].ID != "id-2" {
		t.Errorf("RecentHistory() first post = %q, want newest first", posts[0].ID)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestRecentHistoryDefaultLimit(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM publish_history").
		WithArgs(30).
		WillReturnRows(sqlmock.NewRows(historyColumns))

	// A non-positive limit falls back to the default window.
	posts, err := repo.RecentHistory(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentHistory() error = %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("RecentHistory() returned %d posts, want 0", len(posts))
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestCountPostedToday(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(2)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	count, err := repo.CountPostedToday(context.Background())
	if err != nil {
		t.Fatalf("CountPostedToday() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountPostedToday() = %d, want 2", count)
	}
}
