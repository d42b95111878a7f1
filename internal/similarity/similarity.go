// Package similarity scores caption text for near-duplicate detection.
package similarity

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Captions returns a normalized similarity score in [0,1] between two
// captions. Captions are lowercased and whitespace-collapsed first, so
// formatting differences alone never produce a duplicate verdict.
func Captions(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)

	if a == "" || b == "" {
		if a == b {
			return 1
		}
		return 0
	}

	return strutil.Similarity(a, b, metrics.NewSorensenDice())
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
