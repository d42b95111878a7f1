// Package lock implements a cross-instance single-flight lease.
//
// The lease provides mutual exclusion, not linearizable consensus: the
// only safety property relied on is the backing store's atomic
// conditional write. There is no renewal primitive; a holder running
// longer than the TTL risks losing exclusivity and must re-acquire.
package lock

import (
	"context"
	"time"
)

// Lease is the outcome of an acquisition attempt. When OK is false,
// Holder and ExpiresAt describe the current owner so the caller can
// decide to wait or abort.
type Lease struct {
	OK        bool      `json:"ok"`
	Key       string    `json:"key"`
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Locker is a distributed single-flight lock keyed by a named resource.
type Locker interface {
	// Acquire attempts to take the lease for key. It returns an error
	// only when the backing store is unreachable; contention is reported
	// through Lease.OK.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)

	// Release drops the lease for key. Idempotent; releasing an absent
	// lease is a no-op.
	Release(ctx context.Context, key string) error
}
