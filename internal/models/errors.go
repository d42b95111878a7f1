package models

import "errors"

// Common errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrLockHeld is returned when the pipeline lease is held by another instance
	ErrLockHeld = errors.New("pipeline lock held by another instance")

	// ErrNoUniqueCandidate is returned when the selection loop exhausts the
	// pool without finding an item that passes both uniqueness checks
	ErrNoUniqueCandidate = errors.New("no unique candidates in pool")

	// ErrSchedulerDisabled is returned when a run is requested while the
	// scheduler is switched off
	ErrSchedulerDisabled = errors.New("scheduler is disabled")

	// ErrDailyLimitReached is returned when every enabled platform has
	// exhausted its daily quota
	ErrDailyLimitReached = errors.New("daily publish limit reached")

	// ErrPublishFailed is returned when at least one enabled platform's
	// publish call failed
	ErrPublishFailed = errors.New("publish failed")
)
