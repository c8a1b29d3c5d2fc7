package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jdutton/skillsearch/internal/config"
	"github.com/jdutton/skillsearch/internal/embedding"
	"github.com/jdutton/skillsearch/internal/logging"
	"github.com/jdutton/skillsearch/internal/resource"
	"github.com/jdutton/skillsearch/internal/schema"
	"github.com/jdutton/skillsearch/internal/store"
	"github.com/jdutton/skillsearch/internal/textindex"
)

// Provider ties together the chunk store, the embedding service and the
// optional keyword index behind the indexing and query operations.
type Provider struct {
	cfg      *config.Config
	schema   schema.Schema
	db       *store.DB
	chunks   *store.ChunkStore
	embedder *embedding.Service
	keyword  *textindex.Index
	kwDir    string
}

// New creates a provider with the configured embedding backend.
func New(cfg *config.Config, s schema.Schema) (*Provider, error) {
	embedder, err := embedding.NewService(&cfg.Embedding)
	if err != nil {
		return nil, err
	}
	return NewWithEmbedder(cfg, s, embedder)
}

// NewWithEmbedder creates a provider around an existing embedding
// service. Tests use this to substitute a deterministic embedder.
func NewWithEmbedder(cfg *config.Config, s schema.Schema, embedder *embedding.Service) (*Provider, error) {
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	chunks, err := store.NewChunkStore(db, s)
	if err != nil {
		db.Close()
		return nil, err
	}

	p := &Provider{
		cfg:      cfg,
		schema:   s,
		db:       db,
		chunks:   chunks,
		embedder: embedder,
		kwDir:    filepath.Join(filepath.Dir(cfg.Database.Path), "textindex"),
	}

	if cfg.Search.EnableKeyword {
		keyword, err := textindex.Open(p.kwDir)
		if err != nil {
			db.Close()
			return nil, err
		}
		p.keyword = keyword
	}

	return p, nil
}

// IndexResources chunks, embeds and stores the given resources. A
// resource whose content hash matches the stored hash is skipped, so
// re-running over an unchanged tree is cheap and idempotent. Failures
// are collected per resource; one bad resource never aborts the run.
// progress, when non-nil, is called after each resource.
func (p *Provider) IndexResources(ctx context.Context, resources []resource.Resource, progress func(done, total int)) (*IndexResult, error) {
	result := &IndexResult{}

	hashes, err := p.chunks.ResourceHashes()
	if err != nil {
		return nil, err
	}

	for i, res := range resources {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if hashes[res.ID] == res.ContentHash {
			result.ResourcesSkipped++
			logging.LogDebug("Resource unchanged, skipping", map[string]interface{}{
				"resource_id": res.ID,
			})
		} else if created, err := p.indexResource(ctx, res); err != nil {
			result.Errors = append(result.Errors, ResourceError{ResourceID: res.ID, Err: err})
			logging.LogError("Failed to index resource", map[string]interface{}{
				"resource_id": res.ID,
				"error":       err.Error(),
			})
		} else {
			result.ResourcesIndexed++
			result.ChunksCreated += created
		}

		if progress != nil {
			progress(i+1, len(resources))
		}
	}

	logging.LogInfo("Indexing run complete", map[string]interface{}{
		"indexed": result.ResourcesIndexed,
		"skipped": result.ResourcesSkipped,
		"chunks":  result.ChunksCreated,
		"errors":  len(result.Errors),
	})

	return result, nil
}

// indexResource embeds one resource and atomically swaps its chunks.
func (p *Provider) indexResource(ctx context.Context, res resource.Resource) (int, error) {
	sections := ChunkMarkdown(res.Content, p.cfg.Indexer.MaxChunkChars, p.cfg.Indexer.ChunkOverlap)

	texts := make([]string, len(sections))
	for i, section := range sections {
		texts[i] = section.Content
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding failed: %w", err)
	}
	if len(vectors) != len(sections) {
		return 0, fmt.Errorf("expected %d vectors, got %d", len(sections), len(vectors))
	}

	now := time.Now().UTC()
	rows := make([]store.Chunk, len(sections))
	for i, section := range sections {
		rows[i] = store.Chunk{
			ChunkID:             uuid.NewString(),
			ResourceID:          res.ID,
			ChunkIndex:          i,
			TotalChunks:         len(sections),
			Title:               section.Title,
			Content:             section.Content,
			ContentHash:         resource.HashContent(section.Content),
			ResourceContentHash: res.ContentHash,
			TokenCount:          EstimateTokens(section.Content),
			Vector:              vectors[i],
			EmbeddingModel:      p.embedder.Model(),
			EmbeddedAt:          now,
			Metadata:            res.Metadata,
		}
	}
	for i := range rows {
		if i > 0 {
			rows[i].PreviousChunkID = rows[i-1].ChunkID
		}
		if i < len(rows)-1 {
			rows[i].NextChunkID = rows[i+1].ChunkID
		}
	}

	if err := p.chunks.ReplaceResourceChunks(res.ID, rows); err != nil {
		return 0, err
	}

	if p.keyword != nil {
		if err := p.keyword.DeleteResource(res.ID); err != nil {
			return 0, err
		}
		for _, row := range rows {
			doc := textindex.ChunkDoc{
				ResourceID: row.ResourceID,
				Title:      row.Title,
				Content:    row.Content,
			}
			if err := p.keyword.IndexChunk(row.ChunkID, doc); err != nil {
				return 0, fmt.Errorf("keyword index failed: %w", err)
			}
		}
	}

	return len(rows), nil
}

// Query embeds the query text and returns the best-matching chunks.
// Filters compile to a predicate that is pushed into the store, so
// non-matching chunks never enter the ranking. When the keyword index
// is enabled, lexical scores are blended into the vector scores for
// chunks already admitted by the filter.
func (p *Provider) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query text is empty")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = p.cfg.Search.DefaultLimit
	}
	if limit <= 0 {
		limit = 10
	}

	predicate, err := schema.BuildWhereClause(req.Filter, p.schema)
	if err != nil {
		return nil, err
	}

	queryVector, err := p.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates := limit
	if p.keyword != nil {
		candidates = limit * 3
	}
	scored, totalMatches, err := p.chunks.SearchSimilar(queryVector, candidates, predicate)
	if err != nil {
		return nil, err
	}

	if p.keyword != nil && len(scored) > 0 {
		scored, err = p.blendKeywordScores(req.Query, scored)
		if err != nil {
			return nil, err
		}
	}
	if len(scored) > limit {
		scored = scored[:limit]
	}

	results := make([]QueryResult, len(scored))
	for i, sc := range scored {
		results[i] = QueryResult{
			ChunkID:         sc.ChunkID,
			ResourceID:      sc.ResourceID,
			Title:           sc.Title,
			Content:         sc.Content,
			Score:           sc.Score,
			Metadata:        sc.Metadata,
			ChunkIndex:      sc.ChunkIndex,
			TotalChunks:     sc.TotalChunks,
			PreviousChunkID: sc.PreviousChunkID,
			NextChunkID:     sc.NextChunkID,
		}
	}

	logging.LogDebug("Query executed", map[string]interface{}{
		"limit":   limit,
		"matches": totalMatches,
		"results": len(results),
	})

	return &QueryResponse{
		Results: results,
		Stats:   QueryStats{TotalMatches: totalMatches},
	}, nil
}

// blendKeywordScores mixes bleve relevance into the vector scores.
// Keyword hits only boost chunks already admitted by the metadata
// filter; they never introduce new candidates past it.
func (p *Provider) blendKeywordScores(query string, scored []store.ScoredChunk) ([]store.ScoredChunk, error) {
	hits, err := p.keyword.Search(query, len(scored)*2)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return scored, nil
	}

	maxScore := hits[0].Score
	for _, hit := range hits {
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}
	lexical := make(map[string]float32, len(hits))
	for _, hit := range hits {
		if maxScore > 0 {
			lexical[hit.ChunkID] = float32(hit.Score / maxScore)
		}
	}

	vw := p.cfg.Search.VectorWeight
	kw := p.cfg.Search.KeywordWeight
	if vw <= 0 && kw <= 0 {
		vw, kw = 0.7, 0.3
	}

	for i := range scored {
		scored[i].Score = vw*scored[i].Score + kw*lexical[scored[i].ChunkID]
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored, nil
}

// Chunk fetches one chunk by id, for expanding a result with its
// neighbors.
func (p *Provider) Chunk(chunkID string) (*QueryResult, error) {
	c, err := p.chunks.GetChunk(chunkID)
	if err != nil {
		return nil, err
	}
	return &QueryResult{
		ChunkID:         c.ChunkID,
		ResourceID:      c.ResourceID,
		Title:           c.Title,
		Content:         c.Content,
		Metadata:        c.Metadata,
		ChunkIndex:      c.ChunkIndex,
		TotalChunks:     c.TotalChunks,
		PreviousChunkID: c.PreviousChunkID,
		NextChunkID:     c.NextChunkID,
	}, nil
}

// DeleteResource removes a resource's chunks from the store and the
// keyword index.
func (p *Provider) DeleteResource(resourceID string) error {
	if err := p.chunks.DeleteResource(resourceID); err != nil {
		return err
	}
	if p.keyword != nil {
		return p.keyword.DeleteResource(resourceID)
	}
	return nil
}

// Stats reports the current index state.
func (p *Provider) Stats() (*Stats, error) {
	dbStats, err := p.db.Stats()
	if err != nil {
		return nil, err
	}
	return &Stats{
		ResourceCount:  dbStats.ResourceCount,
		ChunkCount:     dbStats.ChunkCount,
		SizeBytes:      dbStats.SizeBytes,
		EmbeddingModel: p.embedder.Model(),
	}, nil
}

// Clear drops all indexed data, keeping the schema in place.
func (p *Provider) Clear() error {
	if err := p.db.Clear(); err != nil {
		return err
	}
	if p.keyword != nil {
		if err := p.keyword.Close(); err != nil {
			return err
		}
		if err := os.RemoveAll(p.kwDir); err != nil {
			return fmt.Errorf("failed to reset keyword index: %w", err)
		}
		keyword, err := textindex.Open(p.kwDir)
		if err != nil {
			return err
		}
		p.keyword = keyword
	}
	return nil
}

// Close releases the database, keyword index and embedding backend.
func (p *Provider) Close() error {
	var firstErr error
	if p.keyword != nil {
		if err := p.keyword.Close(); err != nil {
			firstErr = err
		}
	}
	if err := p.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
