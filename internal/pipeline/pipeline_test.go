package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopost/repost/internal/config"
	"github.com/gopost/repost/internal/lock"
	"github.com/gopost/repost/internal/logger"
	"github.com/gopost/repost/internal/metrics"
	"github.com/gopost/repost/internal/models"
	"github.com/gopost/repost/internal/pipeline"
	"github.com/gopost/repost/internal/publish"
)

// ====================
// Stub collaborators
// ====================

type stubScraper struct {
	history  []models.Candidate
	pool     []models.Candidate
	payloads map[string][]byte
}

func (s *stubScraper) History(context.Context, string, int) ([]models.Candidate, error) {
	return s.history, nil
}

func (s *stubScraper) Pool(context.Context, string, int) ([]models.Candidate, error) {
	return s.pool, nil
}

func (s *stubScraper) Download(_ context.Context, url string) ([]byte, error) {
	payload, ok := s.payloads[url]
	if !ok {
		return nil, fmt.Errorf("no payload for %s", url)
	}
	return payload, nil
}

// stubHasher maps payload contents directly to fingerprints.
type stubHasher struct{}

func (stubHasher) Compute(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty payload")
	}
	return "fp:" + string(data), nil
}

type stubPublisher struct {
	mu       sync.Mutex
	calls    []string
	failFor  map[string]bool
	captions []string
}

func (p *stubPublisher) Publish(_ context.Context, platform string, _ []byte, caption string) (publish.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, platform)
	p.captions = append(p.captions, caption)

	if p.failFor[platform] {
		return publish.Result{Platform: platform, Error: "rejected"}, nil
	}
	return publish.Result{Platform: platform, Success: true, ExternalID: "ext-" + platform}, nil
}

type stubHistory struct {
	stored   []models.RecentPost
	appended []models.RecentPost
}

func (h *stubHistory) AppendHistory(_ context.Context, post *models.RecentPost) (*models.RecentPost, error) {
	h.appended = append(h.appended, *post)
	return post, nil
}

func (h *stubHistory) RecentHistory(context.Context, int) ([]models.RecentPost, error) {
	return h.stored, nil
}

type stubQuota struct {
	remaining  map[string]int
	increments []string
}

func (q *stubQuota) Remaining(_ context.Context, platform string, _ int) (int, error) {
	return q.remaining[platform], nil
}

func (q *stubQuota) Increment(_ context.Context, platform string) error {
	q.increments = append(q.increments, platform)
	q.remaining[platform]--
	return nil
}

type stubCache struct {
	seen   map[string]bool
	marked []string
}

func (c *stubCache) Seen(_ context.Context, fp string) bool {
	return c.seen[fp]
}

func (c *stubCache) Mark(_ context.Context, fp string) error {
	c.marked = append(c.marked, fp)
	return nil
}

type stubLocker struct {
	held     bool
	holder   string
	released bool
}

func (l *stubLocker) Acquire(_ context.Context, key string, ttl time.Duration) (lock.Lease, error) {
	if l.held {
		return lock.Lease{OK: false, Key: key, Holder: l.holder, ExpiresAt: time.Now().Add(ttl)}, nil
	}
	return lock.Lease{OK: true, Key: key, Holder: "self", ExpiresAt: time.Now().Add(ttl)}, nil
}

func (l *stubLocker) Release(context.Context, string) error {
	l.released = true
	return nil
}

// ====================
// Fixture
// ====================

type fixture struct {
	scraper *stubScraper
	pub     *stubPublisher
	history *stubHistory
	quota   *stubQuota
	cache   *stubCache
	locker  *stubLocker
	cfg     *config.Config
}

func newFixture() *fixture {
	return &fixture{
		scraper: &stubScraper{payloads: map[string][]byte{}},
		pub:     &stubPublisher{failFor: map[string]bool{}},
		history: &stubHistory{},
		quota:   &stubQuota{remaining: map[string]int{"mastodon": 5}},
		cache:   &stubCache{seen: map[string]bool{}},
		locker:  &stubLocker{},
		cfg: &config.Config{
			Scheduler: config.SchedulerConfig{Enabled: true, DailyLimit: 5},
			Pipeline: config.PipelineConfig{
				Account:             "source-account",
				HistoryWindow:       30,
				PoolSize:            500,
				SimilarityThreshold: 0.92,
			},
			Lock:    config.LockConfig{Key: "pipeline:run", TTL: 55 * time.Second},
			Publish: config.PublishConfig{Platforms: []string{"mastodon"}},
		},
	}
}

func (f *fixture) build() *pipeline.Pipeline {
	return pipeline.New(f.cfg, pipeline.Deps{
		Scraper: f.scraper,
		Hasher:  stubHasher{},
		Pub:     f.pub,
		History: f.history,
		Quota:   f.quota,
		Cache:   f.cache,
		Locker:  f.locker,
		Metrics: metrics.NewNop(),
		Logger:  logger.NewNopLogger(),
	})
}

func (f *fixture) addCandidate(id, caption string, score float64) {
	url := "https://cdn.example/" + id
	f.scraper.pool = append(f.scraper.pool, models.Candidate{
		ID:              id,
		SourceURL:       url,
		Caption:         caption,
		EngagementScore: score,
	})
	f.scraper.payloads[url] = []byte("payload-" + id)
}

// ====================
// Tests
// ====================

func TestRunPublishesTopUniqueCandidate(t *testing.T) {
	f := newFixture()
	f.addCandidate("best", "sunset over the lake", 100)
	f.addCandidate("second", "city skyline at night", 50)

	result, err := f.build().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "best", result.CandidateID)
	assert.Equal(t, "fp:payload-best", result.Fingerprint)
	require.Len(t, result.Published, 1)
	assert.True(t, result.Published[0].Success)
	assert.Equal(t, "mastodon", result.Published[0].Platform)

	require.Len(t, f.history.appended, 1)
	assert.Equal(t, "fp:payload-best", f.history.appended[0].VisualHash)
	assert.Equal(t, []string{"fp:payload-best"}, f.cache.marked)
	assert.Equal(t, []string{"mastodon"}, f.quota.increments)
	assert.True(t, f.locker.released)
}

func TestRunSkipsFingerprintDuplicate(t *testing.T) {
	f := newFixture()
	f.addCandidate("dupe", "brand new caption", 100)
	f.addCandidate("fresh", "another caption entirely", 50)

	// The top candidate's payload matches a stored fingerprint.
	f.history.stored = []models.RecentPost{
		{VisualHash: "fp:payload-dupe", Caption: "something unrelated"},
	}

	result, err := f.build().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", result.CandidateID)
}

func TestRunSkipsCaptionDuplicate(t *testing.T) {
	f := newFixture()
	f.addCandidate("near-dupe", "amazing sunset over the lake tonight wow", 100)
	f.addCandidate("fresh", "completely different topic here", 50)

	f.history.stored = []models.RecentPost{
		{VisualHash: "fp:other", Caption: "Amazing sunset over the lake tonight wow"},
	}

	result, err := f.build().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", result.CandidateID)
}

func TestRunExhaustsCandidates(t *testing.T) {
	f := newFixture()
	f.addCandidate("only", "sunset over the lake", 100)
	f.history.stored = []models.RecentPost{
		{VisualHash: "fp:payload-only", Caption: "unrelated"},
	}

	_, err := f.build().Run(context.Background())
	assert.ErrorIs(t, err, models.ErrNoUniqueCandidate)

	assert.Empty(t, f.pub.calls)
	assert.Empty(t, f.history.appended)
	assert.True(t, f.locker.released)
}

func TestRunEmptyPool(t *testing.T) {
	f := newFixture()

	_, err := f.build().Run(context.Background())
	assert.ErrorIs(t, err, models.ErrNoUniqueCandidate)
}

func TestRunLockHeld(t *testing.T) {
	f := newFixture()
	f.addCandidate("best", "sunset over the lake", 100)
	f.locker.held = true
	f.locker.holder = "other-instance"

	_, err := f.build().Run(context.Background())
	assert.ErrorIs(t, err, models.ErrLockHeld)
	assert.Contains(t, err.Error(), "other-instance")
	assert.Empty(t, f.pub.calls)
}

func TestRunSchedulerDisabled(t *testing.T) {
	f := newFixture()
	f.addCandidate("best", "sunset over the lake", 100)
	f.cfg.Scheduler.Enabled = false

	_, err := f.build().Run(context.Background())
	assert.ErrorIs(t, err, models.ErrSchedulerDisabled)
	assert.Empty(t, f.pub.calls)
}

func TestRunDailyLimitReached(t *testing.T) {
	f := newFixture()
	f.addCandidate("best", "sunset over the lake", 100)
	f.quota.remaining["mastodon"] = 0

	_, err := f.build().Run(context.Background())
	assert.ErrorIs(t, err, models.ErrDailyLimitReached)
	assert.Empty(t, f.pub.calls)
	assert.True(t, f.locker.released)
}

func TestRunCacheFastPathSkips(t *testing.T) {
	f := newFixture()
	f.scraper.pool = append(f.scraper.pool, models.Candidate{
		ID:              "cached",
		SourceURL:       "https://cdn.example/cached",
		Caption:         "seen before",
		EngagementScore: 100,
		VisualHash:      "known-fp",
	})
	f.addCandidate("fresh", "never seen", 50)
	f.cache.seen["known-fp"] = true

	result, err := f.build().Run(context.Background())
	require.NoError(t, err)
	// The cached candidate is skipped without a download attempt.
	assert.Equal(t, "fresh", result.CandidateID)
}

func TestRunRanksByEngagement(t *testing.T) {
	f := newFixture()
	f.addCandidate("low", "caption one", 1)
	f.addCandidate("high", "caption two", 99)
	f.addCandidate("mid", "caption three", 42)

	result, err := f.build().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "high", result.CandidateID)
}

func TestRunDownloadFailureSkipsCandidate(t *testing.T) {
	f := newFixture()
	f.scraper.pool = append(f.scraper.pool, models.Candidate{
		ID:              "broken",
		SourceURL:       "https://cdn.example/broken",
		Caption:         "unreachable",
		EngagementScore: 100,
	})
	f.addCandidate("fresh", "works fine", 50)

	result, err := f.build().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", result.CandidateID)
}

func TestRunPartialPublishFailure(t *testing.T) {
	f := newFixture()
	f.cfg.Publish.Platforms = []string{"mastodon", "bluesky"}
	f.quota.remaining["bluesky"] = 5
	f.pub.failFor["bluesky"] = true
	f.addCandidate("best", "sunset over the lake", 100)

	result, err := f.build().Run(context.Background())
	require.ErrorIs(t, err, models.ErrPublishFailed)

	// Both attempts stay visible; the success is recorded, the failure is not.
	require.NotNil(t, result)
	require.Len(t, result.Published, 2)
	assert.True(t, result.Published[0].Success)
	assert.False(t, result.Published[1].Success)

	require.Len(t, f.history.appended, 1)
	assert.Equal(t, "mastodon", f.history.appended[0].Platform)
	assert.Equal(t, []string{"mastodon"}, f.quota.increments)
}

func TestRunScrapedHistoryExcludesCandidates(t *testing.T) {
	f := newFixture()
	// The source account already posted this payload; it was never stored
	// locally but its scraped fingerprint still excludes the candidate.
	f.scraper.history = []models.Candidate{
		{ID: "h1", SourceURL: "https://cdn.example/h1", Caption: "old upload"},
	}
	f.scraper.payloads["https://cdn.example/h1"] = []byte("payload-best")

	f.addCandidate("best", "brand new caption", 100)
	f.addCandidate("fresh", "another new caption", 50)

	result, err := f.build().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", result.CandidateID)
}

func TestRunScrapedHistoryFingerprintFailureKeepsCaption(t *testing.T) {
	f := newFixture()
	// The history payload cannot be downloaded, but its caption still
	// participates in similarity checks.
	f.scraper.history = []models.Candidate{
		{ID: "h1", SourceURL: "https://cdn.example/missing", Caption: "amazing sunset over the lake tonight"},
	}

	f.addCandidate("near-dupe", "amazing sunset over the lake tonight", 100)
	f.addCandidate("fresh", "completely different subject", 50)

	result, err := f.build().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", result.CandidateID)
}
