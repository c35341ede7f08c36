// Package checksum computes content digests for source files and built sites.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/starford/quire/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Site returns a digest over every page path and content, independent of the
// order pages are given in. Two builds with equal digests are byte-identical.
func Site(pages []models.Page) string {
	sorted := make([]models.Page, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	for _, p := range sorted {
		h.Write([]byte(p.Path))
		h.Write([]byte{0})
		h.Write([]byte(Sum(p.Content)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
