// Package resource discovers indexable documents on disk and parses
// their frontmatter metadata.
package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Resource is one indexable document.
type Resource struct {
	// ID identifies the resource across reindex runs. The scanner uses
	// the slash-separated path relative to the scan root.
	ID          string
	Path        string
	Content     string
	ContentHash string
	Metadata    map[string]any
	SizeBytes   int64
	ModifiedAt  time.Time
}

// HashContent returns the hex SHA-256 of content. Matching hashes let
// the indexer skip resources that have not changed.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
