// Package vectorstore orchestrates indexing and querying: chunking
// resources, embedding their content, persisting chunks with typed
// metadata, and ranking stored chunks against query vectors.
package vectorstore

import (
	"fmt"

	"github.com/jdutton/skillsearch/internal/schema"
)

// QueryRequest describes one search.
type QueryRequest struct {
	Query  string
	Limit  int
	Filter schema.Filter
}

// QueryStats summarizes the match population behind one response.
type QueryStats struct {
	// TotalMatches counts every chunk admitted by the filter and
	// scored, before the result list was cut to the limit.
	TotalMatches int `json:"total_matches"`
}

// QueryResponse is the outcome of one search: ranked chunks plus stats
// about the matches.
type QueryResponse struct {
	Results []QueryResult `json:"results"`
	Stats   QueryStats    `json:"stats"`
}

// QueryResult is one ranked chunk.
type QueryResult struct {
	ChunkID         string
	ResourceID      string
	Title           string
	Content         string
	Score           float32
	Metadata        map[string]any
	ChunkIndex      int
	TotalChunks     int
	PreviousChunkID string
	NextChunkID     string
}

// ResourceError records an indexing failure for a single resource.
// Other resources in the same run are unaffected.
type ResourceError struct {
	ResourceID string
	Err        error
}

func (e ResourceError) Error() string {
	return fmt.Sprintf("resource %s: %v", e.ResourceID, e.Err)
}

// IndexResult summarizes one indexing run.
type IndexResult struct {
	ResourcesIndexed int
	ResourcesSkipped int
	ChunksCreated    int
	Errors           []ResourceError
}

// Stats describes the state of the index.
type Stats struct {
	ResourceCount  int64
	ChunkCount     int64
	SizeBytes      int64
	EmbeddingModel string
}
