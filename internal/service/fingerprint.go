package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/propelgov/propelai/internal/domain"
)

// DocumentSetFingerprint computes a deterministic checksum over a document
// set's identities, content checksums, and selection-relevant metadata.
// Any add, remove, re-upload, or metadata change under a cache key changes
// the fingerprint; iteration order does not.
func DocumentSetFingerprint(docs []*domain.Document) string {
	sorted := make([]*domain.Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha256.New()
	for _, d := range sorted {
		fmt.Fprintf(h, "%s|%s|%d|%s|%s|%s\n",
			d.ID, d.SHA256, d.UpdatedAt.UTC().UnixNano(), d.Status, d.Category, d.Name)
	}
	return hex.EncodeToString(h.Sum(nil))
}
