package database

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Repository provides access to the quota, history and media-queue tables.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new repository.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Ping verifies the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
