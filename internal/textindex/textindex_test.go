package textindex

import (
	"path/filepath"
	"testing"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "text"))
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestIndexAndSearch(t *testing.T) {
	ix := openTestIndex(t)

	docs := map[string]ChunkDoc{
		"c1": {ResourceID: "r1", Title: "Threat modeling", Content: "identify attack surfaces early"},
		"c2": {ResourceID: "r1", Title: "Deployment", Content: "rolling updates and canaries"},
		"c3": {ResourceID: "r2", Title: "Attack trees", Content: "structured threat analysis"},
	}
	for id, doc := range docs {
		if err := ix.IndexChunk(id, doc); err != nil {
			t.Fatalf("failed to index %s: %v", id, err)
		}
	}

	hits, err := ix.Search("threat", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	for _, hit := range hits {
		if hit.ChunkID != "c1" && hit.ChunkID != "c3" {
			t.Errorf("unexpected hit %s", hit.ChunkID)
		}
		if hit.ResourceID == "" {
			t.Errorf("hit %s missing resource id", hit.ChunkID)
		}
	}
}

func TestDeleteResource(t *testing.T) {
	ix := openTestIndex(t)

	if err := ix.IndexChunk("c1", ChunkDoc{ResourceID: "r1", Content: "alpha beta"}); err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if err := ix.IndexChunk("c2", ChunkDoc{ResourceID: "r2", Content: "alpha gamma"}); err != nil {
		t.Fatalf("index failed: %v", err)
	}

	if err := ix.DeleteResource("r1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	hits, err := ix.Search("alpha", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "c2" {
		t.Fatalf("expected only c2 to survive, got %v", hits)
	}
}

func TestOpenReopens(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "text")

	ix, err := Open(dir)
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	if err := ix.IndexChunk("c1", ChunkDoc{ResourceID: "r1", Content: "persistent"}); err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	ix, err = Open(dir)
	if err != nil {
		t.Fatalf("failed to reopen index: %v", err)
	}
	defer ix.Close()

	hits, err := ix.Search("persistent", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits after reopen, want 1", len(hits))
	}
}
