package models

// Reason codes consumed by UIs. These strings are stable.
const (
	ReasonSchedulerDisabled = "SCHEDULER_DISABLED"
	ReasonDailyLimitReached = "DAILY_LIMIT_REACHED"
	ReasonQueueEmpty        = "QUEUE_EMPTY"
	ReasonMissingAsset      = "MISSING_ASSET"
	ReasonS3VideoMissing    = "S3_VIDEO_MISSING"
	ReasonS3ThumbMissing    = "S3_THUMB_MISSING"
	ReasonNoPostsToday      = "NO_POSTS_TODAY"
)

// Reason is one tagged explanation of why the pipeline is blocked or idle.
type Reason struct {
	Reason string `json:"reason"`
	ItemID string `json:"item_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Used   int    `json:"used,omitempty"`
}

// DiagnosticsReport explains the pipeline's current eligibility. It is a
// pure read; producing it never mutates state.
type DiagnosticsReport struct {
	Date             string         `json:"date"`
	PostsToday       int            `json:"posts_today"`
	PostsPerPlatform map[string]int `json:"posts_per_platform"`
	SchedulerEnabled bool           `json:"scheduler_enabled"`
	QueueLength      int            `json:"queue_length"`
	Reasons          []Reason       `json:"reasons"`
}
