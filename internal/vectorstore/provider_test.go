package vectorstore

import (
	"context"
	"hash/fnv"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jdutton/skillsearch/internal/config"
	"github.com/jdutton/skillsearch/internal/embedding"
	"github.com/jdutton/skillsearch/internal/resource"
	"github.com/jdutton/skillsearch/internal/schema"
)

const fakeDim = 16

// fakeEmbedder produces deterministic bag-of-words vectors so texts
// sharing words rank close together.
type fakeEmbedder struct {
	batchCalls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, fakeDim)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(word))
			vec[h.Sum32()%fakeDim]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= scale
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Name() string    { return "fake" }
func (f *fakeEmbedder) Model() string   { return "fake-model" }
func (f *fakeEmbedder) Dimensions() int { return fakeDim }
func (f *fakeEmbedder) Close() error    { return nil }

func testProviderSchema() schema.Schema {
	return schema.Schema{
		{Name: "domain", Type: schema.String()},
		{Name: "tags", Type: schema.StringArray()},
		{Name: "author", Type: schema.Optional(schema.String())},
	}
}

func newTestProvider(t *testing.T, enableKeyword bool) *Provider {
	t.Helper()
	cfg := &config.Config{
		Embedding: config.EmbeddingConfig{BatchSize: 8},
		Database:  config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "data", "test.db")},
		Indexer:   config.IndexerConfig{MaxChunkChars: 1500, ChunkOverlap: 100},
		Search: config.SearchConfig{
			DefaultLimit:  10,
			VectorWeight:  0.7,
			KeywordWeight: 0.3,
			EnableKeyword: enableKeyword,
		},
	}

	svc := embedding.NewServiceWithProvider(&cfg.Embedding, &fakeEmbedder{})
	p, err := NewWithEmbedder(cfg, testProviderSchema(), svc)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func testResource(id, content string, meta map[string]any) resource.Resource {
	return resource.Resource{
		ID:          id,
		Content:     content,
		ContentHash: resource.HashContent(content),
		Metadata:    meta,
	}
}

func securityResource() resource.Resource {
	return testResource("security.md", `# Threat modeling

identify attack surfaces and trust boundaries

## Mitigations

validate inputs and limit blast radius`, map[string]any{
		"domain": "security",
		"tags":   []string{"threat", "modeling"},
	})
}

func opsResource() resource.Resource {
	return testResource("ops.md", `# Deployments

rolling updates with canary analysis`, map[string]any{
		"domain": "ops",
		"tags":   []string{"deploy"},
	})
}

func TestIndexAndQuery(t *testing.T) {
	p := newTestProvider(t, false)
	ctx := context.Background()

	result, err := p.IndexResources(ctx, []resource.Resource{securityResource(), opsResource()}, nil)
	if err != nil {
		t.Fatalf("indexing failed: %v", err)
	}
	if result.ResourcesIndexed != 2 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.ChunksCreated != 3 {
		t.Errorf("chunks created = %d, want 3", result.ChunksCreated)
	}

	resp, err := p.Query(ctx, QueryRequest{Query: "attack surfaces", Limit: 2})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	hits := resp.Results
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if resp.Stats.TotalMatches != 3 {
		t.Errorf("total matches = %d, want 3", resp.Stats.TotalMatches)
	}
	if hits[0].ResourceID != "security.md" {
		t.Errorf("best hit from %s, want security.md", hits[0].ResourceID)
	}
	if hits[0].Metadata["domain"] != "security" {
		t.Errorf("metadata domain = %v, want security", hits[0].Metadata["domain"])
	}
	if hits[0].Title == "" {
		t.Error("hit missing section title")
	}
}

func TestIndexIsIdempotent(t *testing.T) {
	p := newTestProvider(t, false)
	ctx := context.Background()
	resources := []resource.Resource{securityResource(), opsResource()}

	if _, err := p.IndexResources(ctx, resources, nil); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	second, err := p.IndexResources(ctx, resources, nil)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.ResourcesIndexed != 0 || second.ChunksCreated != 0 {
		t.Errorf("unchanged resources were reindexed: %+v", second)
	}
	if second.ResourcesSkipped != 2 {
		t.Errorf("skipped = %d, want 2", second.ResourcesSkipped)
	}

	stats, err := p.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.ChunkCount != 3 || stats.ResourceCount != 2 {
		t.Errorf("stats = %+v, want 3 chunks over 2 resources", stats)
	}
}

func TestReindexChangedResource(t *testing.T) {
	p := newTestProvider(t, false)
	ctx := context.Background()

	if _, err := p.IndexResources(ctx, []resource.Resource{opsResource()}, nil); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	changed := testResource("ops.md", "# Deployments\n\nblue green strategy", map[string]any{
		"domain": "ops",
		"tags":   []string{"deploy"},
	})
	result, err := p.IndexResources(ctx, []resource.Resource{changed}, nil)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if result.ResourcesIndexed != 1 {
		t.Fatalf("changed resource not reindexed: %+v", result)
	}

	stats, err := p.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.ChunkCount != 1 {
		t.Errorf("chunk count = %d after replace, want 1", stats.ChunkCount)
	}

	resp, err := p.Query(ctx, QueryRequest{Query: "blue green strategy", Limit: 1})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	hits := resp.Results
	if len(hits) != 1 || !strings.Contains(hits[0].Content, "blue green") {
		t.Fatalf("new content not searchable: %+v", hits)
	}
}

func TestQueryWithMetadataFilter(t *testing.T) {
	p := newTestProvider(t, false)
	ctx := context.Background()

	if _, err := p.IndexResources(ctx, []resource.Resource{securityResource(), opsResource()}, nil); err != nil {
		t.Fatalf("indexing failed: %v", err)
	}

	resp, err := p.Query(ctx, QueryRequest{
		Query:  "updates",
		Limit:  10,
		Filter: schema.Filter{Fields: map[string]any{"domain": "ops"}},
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	hits := resp.Results
	if len(hits) != 1 || hits[0].ResourceID != "ops.md" {
		t.Fatalf("filter not applied: %+v", hits)
	}

	// Empty resource-id list admits nothing.
	resp, err = p.Query(ctx, QueryRequest{
		Query:  "updates",
		Filter: schema.Filter{ResourceIDs: []string{}},
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(resp.Results) != 0 || resp.Stats.TotalMatches != 0 {
		t.Fatalf("expected no matches, got %+v", resp)
	}

	// Unknown filter field is rejected before reaching storage.
	if _, err := p.Query(ctx, QueryRequest{
		Query:  "updates",
		Filter: schema.Filter{Fields: map[string]any{"rogue": "x"}},
	}); err == nil {
		t.Fatal("expected error for unknown filter field")
	}
}

func TestQueryReportsTotalMatches(t *testing.T) {
	p := newTestProvider(t, false)
	ctx := context.Background()

	if _, err := p.IndexResources(ctx, []resource.Resource{securityResource(), opsResource()}, nil); err != nil {
		t.Fatalf("indexing failed: %v", err)
	}

	// The limit caps the result list, not the reported match count.
	resp, err := p.Query(ctx, QueryRequest{Query: "attack surfaces", Limit: 1})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(resp.Results))
	}
	if resp.Stats.TotalMatches != 3 {
		t.Errorf("total matches = %d, want 3", resp.Stats.TotalMatches)
	}

	// A filter shrinks the match population itself.
	resp, err = p.Query(ctx, QueryRequest{
		Query:  "attack surfaces",
		Limit:  1,
		Filter: schema.Filter{Fields: map[string]any{"domain": "security"}},
	})
	if err != nil {
		t.Fatalf("filtered query failed: %v", err)
	}
	if resp.Stats.TotalMatches != 2 {
		t.Errorf("filtered total matches = %d, want 2", resp.Stats.TotalMatches)
	}
}

func TestIndexCollectsPerResourceErrors(t *testing.T) {
	p := newTestProvider(t, false)
	ctx := context.Background()

	bad := testResource("bad.md", "# Bad\n\ncontent", map[string]any{
		"domain":     "x",
		"tags":       []string{},
		"undeclared": "boom",
	})
	result, err := p.IndexResources(ctx, []resource.Resource{bad, opsResource()}, nil)
	if err != nil {
		t.Fatalf("indexing failed: %v", err)
	}
	if result.ResourcesIndexed != 1 {
		t.Errorf("indexed = %d, want 1", result.ResourcesIndexed)
	}
	if len(result.Errors) != 1 || result.Errors[0].ResourceID != "bad.md" {
		t.Fatalf("expected one error for bad.md, got %+v", result.Errors)
	}
}

func TestChunkNeighborNavigation(t *testing.T) {
	p := newTestProvider(t, false)
	ctx := context.Background()

	if _, err := p.IndexResources(ctx, []resource.Resource{securityResource()}, nil); err != nil {
		t.Fatalf("indexing failed: %v", err)
	}

	resp, err := p.Query(ctx, QueryRequest{Query: "trust boundaries", Limit: 1})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	hits := resp.Results
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}

	hit := hits[0]
	if hit.TotalChunks != 2 {
		t.Fatalf("total chunks = %d, want 2", hit.TotalChunks)
	}
	var neighborID string
	if hit.NextChunkID != "" {
		neighborID = hit.NextChunkID
	} else {
		neighborID = hit.PreviousChunkID
	}
	if neighborID == "" {
		t.Fatal("hit has no neighbor links")
	}

	neighbor, err := p.Chunk(neighborID)
	if err != nil {
		t.Fatalf("failed to fetch neighbor: %v", err)
	}
	if neighbor.ResourceID != "security.md" {
		t.Errorf("neighbor from %s, want security.md", neighbor.ResourceID)
	}
}

func TestHybridKeywordBlend(t *testing.T) {
	p := newTestProvider(t, true)
	ctx := context.Background()

	if _, err := p.IndexResources(ctx, []resource.Resource{securityResource(), opsResource()}, nil); err != nil {
		t.Fatalf("indexing failed: %v", err)
	}

	resp, err := p.Query(ctx, QueryRequest{Query: "canary", Limit: 2})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	hits := resp.Results
	if len(hits) == 0 {
		t.Fatal("no hits")
	}
	if hits[0].ResourceID != "ops.md" {
		t.Errorf("best hybrid hit from %s, want ops.md", hits[0].ResourceID)
	}
}

func TestClear(t *testing.T) {
	p := newTestProvider(t, false)
	ctx := context.Background()

	if _, err := p.IndexResources(ctx, []resource.Resource{securityResource()}, nil); err != nil {
		t.Fatalf("indexing failed: %v", err)
	}
	if err := p.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	stats, err := p.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.ChunkCount != 0 {
		t.Errorf("chunk count = %d after clear, want 0", stats.ChunkCount)
	}

	// A cleared index reindexes everything from scratch.
	result, err := p.IndexResources(ctx, []resource.Resource{securityResource()}, nil)
	if err != nil {
		t.Fatalf("reindex failed: %v", err)
	}
	if result.ResourcesIndexed != 1 {
		t.Errorf("indexed = %d after clear, want 1", result.ResourcesIndexed)
	}
}

func TestQueryEmptyText(t *testing.T) {
	p := newTestProvider(t, false)
	if _, err := p.Query(context.Background(), QueryRequest{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}
