// Package sha256 fingerprints page content. The engine records the digest of
// the raw body as Result.ContentHash and the worker reuses it to name blob
// artifacts, so repeat crawls of an unchanged page produce the same key.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/crawlkit/crawlkit/internal/crawler"
)

// Hasher produces lowercase hex SHA-256 digests of page bodies.
type Hasher struct{}

var _ crawler.Hasher = (*Hasher)(nil)

// New returns a Hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash digests data. A nil or empty body yields the well-known empty-input
// digest rather than an error, so cache keys stay stable for blank pages.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
