package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a queued pipeline run.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobError   JobStatus = "error"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobError
}

// Job is the observable record of one enqueued pipeline execution.
// A job's terminal state is set exactly once and never overwritten;
// jobs are never re-queued automatically.
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Status     JobStatus  `json:"status"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
}
