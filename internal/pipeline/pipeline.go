// Package pipeline implements the selection-and-dispatch run: evaluate
// ranked candidates one at a time, pick the first passing both
// uniqueness checks and publish it to every enabled platform.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/gopost/repost/internal/candidates"
	"github.com/gopost/repost/internal/config"
	"github.com/gopost/repost/internal/lock"
	"github.com/gopost/repost/internal/logger"
	"github.com/gopost/repost/internal/metrics"
	"github.com/gopost/repost/internal/models"
	"github.com/gopost/repost/internal/publish"
	"github.com/gopost/repost/internal/similarity"
)

// Scraper supplies account history, candidate pools and payloads.
type Scraper interface {
	History(ctx context.Context, account string, limit int) ([]models.Candidate, error)
	Pool(ctx context.Context, account string, limit int) ([]models.Candidate, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Fingerprinter computes content fingerprints from payload bytes.
type Fingerprinter interface {
	Compute(data []byte) (string, error)
}

// Publisher pushes a payload to one platform.
type Publisher interface {
	Publish(ctx context.Context, platform string, payload []byte, caption string) (publish.Result, error)
}

// HistoryStore records publications and serves the recent window.
type HistoryStore interface {
	AppendHistory(ctx context.Context, post *models.RecentPost) (*models.RecentPost, error)
	RecentHistory(ctx context.Context, limit int) ([]models.RecentPost, error)
}

// QuotaCounter gates per-platform daily publishes.
type QuotaCounter interface {
	Remaining(ctx context.Context, platform string, dailyLimit int) (int, error)
	Increment(ctx context.Context, platform string) error
}

// FingerprintCache is the advisory fast-path duplicate check.
type FingerprintCache interface {
	Seen(ctx context.Context, fingerprint string) bool
	Mark(ctx context.Context, fingerprint string) error
}

// Result is the outcome of a successful (or partially successful) run.
// Published always lists every platform attempt, so per-platform
// successes are never hidden by an overall failure.
type Result struct {
	CandidateID string           `json:"candidate_id"`
	SourceURL   string           `json:"source_url"`
	Caption     string           `json:"caption"`
	Fingerprint string           `json:"fingerprint"`
	Published   []publish.Result `json:"published"`
}

// Pipeline orchestrates one selection-and-dispatch run.
type Pipeline struct {
	cfg       config.PipelineConfig
	scheduler config.SchedulerConfig
	platforms []string
	lockKey   string
	lockTTL   time.Duration

	scraper  Scraper
	hasher   Fingerprinter
	pub      Publisher
	history  HistoryStore
	quota    QuotaCounter
	cache    FingerprintCache
	locker   lock.Locker
	metrics  *metrics.Metrics
	logger   logger.Logger
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Scraper Scraper
	Hasher  Fingerprinter
	Pub     Publisher
	History HistoryStore
	Quota   QuotaCounter
	Cache   FingerprintCache
	Locker  lock.Locker
	Metrics *metrics.Metrics
	Logger  logger.Logger
}

// New creates a pipeline.
func New(cfg *config.Config, deps Deps) *Pipeline {
	return &Pipeline{
		cfg:       cfg.Pipeline,
		scheduler: cfg.Scheduler,
		platforms: cfg.Publish.Platforms,
		lockKey:   cfg.Lock.Key,
		lockTTL:   cfg.Lock.TTL,
		scraper:   deps.Scraper,
		hasher:    deps.Hasher,
		pub:       deps.Pub,
		history:   deps.History,
		quota:     deps.Quota,
		cache:     deps.Cache,
		locker:    deps.Locker,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

// exclusionSet is the per-run comparison state built from history.
type exclusionSet struct {
	fingerprints map[string]bool
	captions     []string
	recent       []models.RecentPost
}

// Run executes one selection-and-dispatch cycle. It acquires the
// cross-instance lease before touching shared state and releases it on
// every exit path.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	p.metrics.RunsStarted.Inc()

	if !p.scheduler.Enabled {
		p.metrics.RunsFailed.Inc()
		return nil, models.ErrSchedulerDisabled
	}

	lease, err := p.locker.Acquire(ctx, p.lockKey, p.lockTTL)
	if err != nil {
		p.metrics.RunsFailed.Inc()
		return nil, fmt.Errorf("acquire pipeline lock: %w", err)
	}
	if !lease.OK {
		p.metrics.RunsFailed.Inc()
		return nil, fmt.Errorf("%w (holder %s until %s)",
			models.ErrLockHeld, lease.Holder, lease.ExpiresAt.Format(time.RFC3339))
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if releaseErr := p.locker.Release(releaseCtx, p.lockKey); releaseErr != nil {
			p.logger.Warn("Failed to release pipeline lock", logger.Error(releaseErr))
		}
	}()

	result, err := p.run(ctx)
	if err != nil {
		p.metrics.RunsFailed.Inc()
		return result, err
	}

	p.metrics.RunsSucceeded.Inc()
	p.logger.Info("Pipeline run completed",
		logger.String("candidate_id", result.CandidateID),
		logger.Int("platforms", len(result.Published)),
		logger.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context) (*Result, error) {
	exclusion, err := p.buildExclusionSet(ctx)
	if err != nil {
		return nil, err
	}

	pool, err := p.scraper.Pool(ctx, p.cfg.Account, p.cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("fetch candidate pool: %w", err)
	}

	ranked := candidates.Build(pool, exclusion.recent, p.cfg.MaxCandidates)

	p.logger.Info("Evaluating candidates",
		logger.Int("pool_size", len(ranked)),
		logger.Int("history_fingerprints", len(exclusion.fingerprints)),
	)

	selected, payload, fp := p.selectCandidate(ctx, ranked, exclusion)
	if selected == nil {
		return nil, models.ErrNoUniqueCandidate
	}

	return p.dispatch(ctx, *selected, payload, fp)
}

// buildExclusionSet combines the stored publish history with the source
// account's scraped history. Scraped payloads are fingerprinted one at a
// time; each buffer is dropped before the next download regardless of
// whether hashing succeeded, and a hashing failure only costs the
// fingerprint, never the caption.
func (p *Pipeline) buildExclusionSet(ctx context.Context) (*exclusionSet, error) {
	window := p.cfg.HistoryWindow

	stored, err := p.history.RecentHistory(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("load publish history: %w", err)
	}

	set := &exclusionSet{
		fingerprints: candidates.FingerprintSet(stored),
		recent:       stored,
	}
	for _, post := range stored {
		set.captions = append(set.captions, post.Caption)
	}

	scraped, err := p.scraper.History(ctx, p.cfg.Account, window)
	if err != nil {
		return nil, fmt.Errorf("scrape account history: %w", err)
	}

	for _, item := range scraped {
		set.captions = append(set.captions, item.Caption)

		if item.VisualHash != "" {
			set.fingerprints[item.VisualHash] = true
			continue
		}

		fp, hashErr := p.fingerprintOne(ctx, item.SourceURL)
		if hashErr != nil {
			// Non-fatal: the caption above still participates in
			// similarity checks.
			p.logger.Warn("History item fingerprint failed",
				logger.String("item_id", item.ID),
				logger.Error(hashErr),
			)
			continue
		}
		set.fingerprints[fp] = true
	}

	return set, nil
}

// fingerprintOne downloads and hashes a single payload. The buffer is
// confined to this call so at most one payload is resident.
func (p *Pipeline) fingerprintOne(ctx context.Context, url string) (string, error) {
	payload, err := p.scraper.Download(ctx, url)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}

	fp, err := p.hasher.Compute(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	return fp, nil
}

// selectCandidate scans candidates in rank order and returns the first
// one passing both uniqueness checks, together with its payload and
// fingerprint. First match wins: upstream ranking already guarantees it
// is the best-scoring unique item encountered.
func (p *Pipeline) selectCandidate(
	ctx context.Context,
	ranked []models.Candidate,
	exclusion *exclusionSet,
) (*models.Candidate, []byte, string) {
	for i := range ranked {
		c := ranked[i]

		if c.VisualHash != "" && p.cache.Seen(ctx, c.VisualHash) {
			p.metrics.CandidatesSkipped.WithLabelValues(metrics.SkipCached).Inc()
			continue
		}

		payload, err := p.scraper.Download(ctx, c.SourceURL)
		if err != nil {
			p.metrics.CandidatesSkipped.WithLabelValues(metrics.SkipDownload).Inc()
			p.logger.Warn("Candidate download failed",
				logger.String("candidate_id", c.ID),
				logger.Error(err),
			)
			continue
		}

		fp, err := p.hasher.Compute(payload)
		if err != nil {
			p.metrics.CandidatesSkipped.WithLabelValues(metrics.SkipHash).Inc()
			p.logger.Warn("Candidate fingerprint failed",
				logger.String("candidate_id", c.ID),
				logger.Error(err),
			)
			continue
		}

		if exclusion.fingerprints[fp] {
			p.metrics.CandidatesSkipped.WithLabelValues(metrics.SkipFingerprint).Inc()
			p.logger.Debug("Candidate skipped, fingerprint match",
				logger.String("candidate_id", c.ID),
			)
			continue
		}

		if p.captionDuplicate(c.Caption, exclusion.captions) {
			p.metrics.CandidatesSkipped.WithLabelValues(metrics.SkipCaption).Inc()
			p.logger.Debug("Candidate skipped, caption similarity",
				logger.String("candidate_id", c.ID),
			)
			continue
		}

		return &ranked[i], payload, fp
	}

	return nil, nil, ""
}

// captionDuplicate reports whether the caption scores strictly above the
// similarity threshold against any history caption.
func (p *Pipeline) captionDuplicate(caption string, history []string) bool {
	for _, h := range history {
		if similarity.Captions(caption, h) > p.cfg.SimilarityThreshold {
			return true
		}
	}
	return false
}

// dispatch publishes the selected payload to every enabled platform with
// quota remaining, then records the outcome for future dedup.
func (p *Pipeline) dispatch(
	ctx context.Context,
	selected models.Candidate,
	payload []byte,
	fp string,
) (*Result, error) {
	result := &Result{
		CandidateID: selected.ID,
		SourceURL:   selected.SourceURL,
		Caption:     selected.Caption,
		Fingerprint: fp,
		Published:   []publish.Result{},
	}

	targets := make([]string, 0, len(p.platforms))
	for _, platform := range p.platforms {
		remaining, err := p.quota.Remaining(ctx, platform, p.scheduler.QuotaLimit(platform))
		if err != nil {
			return result, fmt.Errorf("read quota for %s: %w", platform, err)
		}
		if remaining > 0 {
			targets = append(targets, platform)
		}
	}
	if len(targets) == 0 {
		return result, models.ErrDailyLimitReached
	}

	var publishErr error
	for _, platform := range targets {
		pubResult, err := p.pub.Publish(ctx, platform, payload, selected.Caption)
		if err != nil {
			pubResult = publish.Result{Platform: platform, Error: err.Error()}
		}
		result.Published = append(result.Published, pubResult)

		if !pubResult.Success {
			p.metrics.Publishes.WithLabelValues(platform, "error").Inc()
			publishErr = fmt.Errorf("%w: platform %s: %s",
				models.ErrPublishFailed, platform, pubResult.Error)
			p.logger.Error("Publish failed",
				logger.String("platform", platform),
				logger.String("candidate_id", selected.ID),
				logger.String("reason", pubResult.Error),
			)
			continue
		}

		p.metrics.Publishes.WithLabelValues(platform, "success").Inc()
		p.recordPublication(ctx, selected, fp, platform, pubResult.ExternalID)
	}

	if publishErr != nil {
		return result, publishErr
	}
	return result, nil
}

// recordPublication appends to history, marks the fingerprint cache and
// consumes quota. Recording failures are logged, not fatal: the publish
// already happened and must stay visible in the result.
func (p *Pipeline) recordPublication(
	ctx context.Context,
	selected models.Candidate,
	fp, platform, externalID string,
) {
	if _, err := p.history.AppendHistory(ctx, &models.RecentPost{
		VisualHash: fp,
		Caption:    selected.Caption,
		Platform:   platform,
		ExternalID: externalID,
		SourceURL:  selected.SourceURL,
	}); err != nil {
		p.logger.Error("Failed to record publish history",
			logger.String("platform", platform),
			logger.Error(err),
		)
	}

	if err := p.cache.Mark(ctx, fp); err != nil {
		p.logger.Warn("Failed to mark fingerprint cache", logger.Error(err))
	}

	if err := p.quota.Increment(ctx, platform); err != nil {
		p.logger.Error("Failed to increment quota",
			logger.String("platform", platform),
			logger.Error(err),
		)
	}
}
