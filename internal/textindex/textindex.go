// Package textindex maintains the optional keyword index used to blend
// lexical matches into vector search results.
package textindex

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// ChunkDoc is the document shape stored in the keyword index.
type ChunkDoc struct {
	ResourceID string `json:"resource_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

// Hit is a keyword match with its bleve relevance score.
type Hit struct {
	ChunkID    string
	ResourceID string
	Score      float64
}

// Index wraps a bleve index keyed by chunk id.
type Index struct {
	index bleve.Index
}

// Open opens the keyword index at dir, creating it if absent.
func Open(dir string) (*Index, error) {
	index, err := bleve.Open(dir)
	if err == bleve.ErrorIndexPathDoesNotExist {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("create text index dir: %w", mkErr)
		}
		index, err = bleve.New(dir, buildIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// IndexChunk adds or replaces one chunk document.
func (ix *Index) IndexChunk(chunkID string, doc ChunkDoc) error {
	return ix.index.Index(chunkID, doc)
}

// DeleteResource removes every chunk document belonging to a resource.
func (ix *Index) DeleteResource(resourceID string) error {
	query := bleve.NewTermQuery(resourceID)
	query.SetField("resource_id")

	req := bleve.NewSearchRequestOptions(query, 1000, 0, false)
	for {
		res, err := ix.index.Search(req)
		if err != nil {
			return fmt.Errorf("find resource chunks: %w", err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := ix.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := ix.index.Batch(batch); err != nil {
			return fmt.Errorf("delete resource chunks: %w", err)
		}
	}
}

// Search runs a keyword query over chunk content and titles, title
// matches boosted.
func (ix *Index) Search(query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}

	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")
	contentQuery.SetBoost(1.0)
	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2.0)
	disjunction := bleve.NewDisjunctionQuery(contentQuery, titleQuery)

	req := bleve.NewSearchRequestOptions(disjunction, topK, 0, false)
	req.Fields = []string{"resource_id"}

	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		resourceID, _ := hit.Fields["resource_id"].(string)
		hits = append(hits, Hit{
			ChunkID:    hit.ID,
			ResourceID: resourceID,
			Score:      hit.Score,
		})
	}
	return hits, nil
}

// Close closes the underlying index.
func (ix *Index) Close() error {
	return ix.index.Close()
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "content"

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.Index = true
	docMapping.AddFieldMappingsAt("content", contentField)

	titleField := bleve.NewTextFieldMapping()
	titleField.Store = true
	titleField.Index = true
	docMapping.AddFieldMappingsAt("title", titleField)

	resourceField := bleve.NewTextFieldMapping()
	resourceField.Store = true
	resourceField.Index = true
	resourceField.Analyzer = "keyword"
	docMapping.AddFieldMappingsAt("resource_id", resourceField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
