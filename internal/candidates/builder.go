// Package candidates filters and ranks raw candidate pools against
// recent-publication fingerprints.
package candidates

import (
	"sort"

	"github.com/gopost/repost/internal/models"
)

// DefaultMaxCount caps Build's output when maxCount is not positive.
const DefaultMaxCount = 20

// Build returns pool filtered against the recent-fingerprint set, sorted
// by rank descending and truncated to maxCount. The input
// pool is never mutated; relative order among equal scores is preserved.
//
// Items without a fingerprint are never dropped here: fingerprint
// presence is opportunistic, and fingerprinting itself is an external
// capability this component never invokes.
func Build(pool []models.Candidate, recent []models.RecentPost, maxCount int) []models.Candidate {
	if maxCount <= 0 {
		maxCount = DefaultMaxCount
	}

	seen := FingerprintSet(recent)

	filtered := make([]models.Candidate, 0, len(pool))
	for _, c := range pool {
		if c.VisualHash != "" && seen[c.VisualHash] {
			continue
		}
		filtered = append(filtered, c)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Rank() > filtered[j].Rank()
	})

	if len(filtered) > maxCount {
		filtered = filtered[:maxCount]
	}

	return filtered
}

// FingerprintSet collects the fingerprints of recent posts, preferring
// the visual hash and falling back to the legacy hash field.
func FingerprintSet(recent []models.RecentPost) map[string]bool {
	set := make(map[string]bool, len(recent))
	for _, p := range recent {
		if fp := p.Fingerprint(); fp != "" {
			set[fp] = true
		}
	}
	return set
}
