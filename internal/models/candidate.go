package models

import "time"

// Candidate represents a scraped media item eligible for republishing.
// Candidates are immutable once built; fingerprints are attached by the
// scraping collaborator and never recomputed here.
type Candidate struct {
	ID              string  `json:"id"`
	SourceURL       string  `json:"source_url"`
	Caption         string  `json:"caption"`
	EngagementScore float64 `json:"engagement_score"`
	ViewCount       int64   `json:"view_count,omitempty"`
	VisualHash      string  `json:"visual_hash,omitempty"`
}

// Rank returns the value candidates are ordered by: view count when
// positive, engagement score otherwise.
func (c Candidate) Rank() float64 {
	if c.ViewCount > 0 {
		return float64(c.ViewCount)
	}
	return c.EngagementScore
}

// RecentPost is one entry of the recent-publication window used as a
// read-only comparison set for deduplication.
type RecentPost struct {
	ID         string    `db:"id"          json:"id"`
	VisualHash string    `db:"visual_hash" json:"visual_hash,omitempty"`
	Hash       string    `db:"hash"        json:"hash,omitempty"` // legacy fingerprint field
	Caption    string    `db:"caption"     json:"caption"`
	Platform   string    `db:"platform"    json:"platform"`
	ExternalID string    `db:"external_id" json:"external_id,omitempty"`
	SourceURL  string    `db:"source_url"  json:"source_url,omitempty"`
	PostedAt   time.Time `db:"posted_at"   json:"posted_at"`
}

// Fingerprint returns the post's content fingerprint, preferring the
// visual hash over the legacy hash field.
func (p RecentPost) Fingerprint() string {
	if p.VisualHash != "" {
		return p.VisualHash
	}
	return p.Hash
}

// QueuedItem is a pending media-queue entry awaiting publication. Items
// are created by the upload collaborator; the core only reads them for
// diagnostics.
type QueuedItem struct {
	ID       string    `db:"id"        json:"id"`
	VideoURL string    `db:"video_url" json:"video_url"`
	ThumbURL string    `db:"thumb_url" json:"thumb_url"`
	AddedAt  time.Time `db:"added_at"  json:"added_at"`
}

// DailyCounter is one row of per-platform per-day usage accounting.
// DateKey is the local calendar date, not an instant.
type DailyCounter struct {
	Platform string `db:"platform" json:"platform"`
	DateKey  string `db:"date_key" json:"date_key"`
	Count    int    `db:"count"    json:"count"`
}

// DateKeyLayout is the format for DailyCounter.DateKey.
const DateKeyLayout = "2006-01-02"
