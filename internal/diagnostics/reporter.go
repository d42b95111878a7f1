// Package diagnostics explains why the pipeline is or is not eligible to
// run. Producing a report never mutates state and never fails: probe
// errors degrade to a conservative "missing" verdict.
package diagnostics

import (
	"context"
	"time"

	"github.com/gopost/repost/internal/config"
	"github.com/gopost/repost/internal/logger"
	"github.com/gopost/repost/internal/models"
)

// QuotaReader supplies today's publish counts.
type QuotaReader interface {
	UsedToday(ctx context.Context) (map[string]int, error)
}

// PendingLister supplies the pending media queue.
type PendingLister interface {
	ListPendingMedia(ctx context.Context) ([]models.QueuedItem, error)
}

// ObjectProber checks object-storage existence. May be nil when object
// storage is not configured; existence checks are then skipped.
type ObjectProber interface {
	Exists(ctx context.Context, ref string) (bool, error)
}

// Snapshot is the read-only state a report is computed from.
type Snapshot struct {
	Date             time.Time
	SchedulerEnabled bool
	DailyLimit       int // total across platforms
	Used             map[string]int
	Pending          []models.QueuedItem
	AssetExists      func(ref string) bool // nil skips storage probes
}

// Reporter assembles snapshots and evaluates them.
type Reporter struct {
	scheduler config.SchedulerConfig
	platforms []string
	quota     QuotaReader
	pending   PendingLister
	prober    ObjectProber
	logger    logger.Logger
}

// NewReporter creates a diagnostics reporter.
func NewReporter(
	scheduler config.SchedulerConfig,
	platforms []string,
	quota QuotaReader,
	pending PendingLister,
	prober ObjectProber,
	log logger.Logger,
) *Reporter {
	return &Reporter{
		scheduler: scheduler,
		platforms: platforms,
		quota:     quota,
		pending:   pending,
		prober:    prober,
		logger:    log,
	}
}

// Report gathers current state and evaluates it. Store failures degrade
// to empty snapshots rather than erroring.
func (r *Reporter) Report(ctx context.Context) models.DiagnosticsReport {
	snap := Snapshot{
		Date:             time.Now(),
		SchedulerEnabled: r.scheduler.Enabled,
	}

	for _, p := range r.platforms {
		snap.DailyLimit += r.scheduler.QuotaLimit(p)
	}

	used, err := r.quota.UsedToday(ctx)
	if err != nil {
		r.logger.Warn("Diagnostics quota read failed", logger.Error(err))
		used = map[string]int{}
	}
	snap.Used = used

	pending, err := r.pending.ListPendingMedia(ctx)
	if err != nil {
		r.logger.Warn("Diagnostics queue read failed", logger.Error(err))
		pending = nil
	}
	snap.Pending = pending

	if r.prober != nil {
		prober := r.prober
		log := r.logger
		snap.AssetExists = func(ref string) bool {
			exists, probeErr := prober.Exists(ctx, ref)
			if probeErr != nil {
				// A failed probe counts as missing, never as an error.
				log.Warn("Storage probe failed",
					logger.String("ref", ref),
					logger.Error(probeErr),
				)
				return false
			}
			return exists
		}
	}

	return Evaluate(snap)
}

// Evaluate computes the report from a snapshot. All checks run
// independently; every blocking reason that holds is reported.
func Evaluate(in Snapshot) models.DiagnosticsReport {
	report := models.DiagnosticsReport{
		Date:             in.Date.Format(models.DateKeyLayout),
		SchedulerEnabled: in.SchedulerEnabled,
		PostsPerPlatform: in.Used,
		QueueLength:      len(in.Pending),
		Reasons:          []models.Reason{},
	}
	if report.PostsPerPlatform == nil {
		report.PostsPerPlatform = map[string]int{}
	}

	for _, count := range in.Used {
		report.PostsToday += count
	}

	if !in.SchedulerEnabled {
		report.Reasons = append(report.Reasons, models.Reason{
			Reason: models.ReasonSchedulerDisabled,
		})
	}

	if in.DailyLimit > 0 && report.PostsToday >= in.DailyLimit {
		report.Reasons = append(report.Reasons, models.Reason{
			Reason: models.ReasonDailyLimitReached,
			Limit:  in.DailyLimit,
			Used:   report.PostsToday,
		})
	}

	if len(in.Pending) == 0 {
		report.Reasons = append(report.Reasons, models.Reason{
			Reason: models.ReasonQueueEmpty,
		})
	}

	for _, item := range in.Pending {
		if item.VideoURL == "" || item.ThumbURL == "" {
			report.Reasons = append(report.Reasons, models.Reason{
				Reason: models.ReasonMissingAsset,
				ItemID: item.ID,
			})
			continue
		}

		if in.AssetExists == nil {
			continue
		}
		if !in.AssetExists(item.VideoURL) {
			report.Reasons = append(report.Reasons, models.Reason{
				Reason: models.ReasonS3VideoMissing,
				ItemID: item.ID,
			})
		}
		if !in.AssetExists(item.ThumbURL) {
			report.Reasons = append(report.Reasons, models.Reason{
				Reason: models.ReasonS3ThumbMissing,
				ItemID: item.ID,
			})
		}
	}

	if report.PostsToday == 0 {
		report.Reasons = append(report.Reasons, models.Reason{
			Reason: models.ReasonNoPostsToday,
		})
	}

	return report
}
