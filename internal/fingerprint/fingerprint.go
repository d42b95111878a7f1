// Package fingerprint computes content-derived identifiers for media
// payloads, used to detect duplicates regardless of source URL or id.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"github.com/corona10/goimagehash"
)

// Hasher computes fingerprints from raw payload bytes.
type Hasher struct{}

// NewHasher creates a Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Compute returns a perceptual difference hash for image payloads so that
// re-encoded copies of the same frame still collide. Non-image payloads
// fall back to an exact content hash.
func (h *Hasher) Compute(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty payload")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		sum := sha256.Sum256(data)
		return "sha256:" + hex.EncodeToString(sum[:]), nil
	}

	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", fmt.Errorf("compute difference hash: %w", err)
	}

	return hash.ToString(), nil
}
