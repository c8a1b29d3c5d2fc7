package embedding

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/jdutton/skillsearch/internal/config"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{0, 1, 0},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 1, 1},
			b:        []float32{-1, -1, -1},
			expected: -1.0,
		},
		{
			name:     "zero vector",
			a:        []float32{0, 0, 0},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Similarity(tt.a, tt.b)
			diff := result - tt.expected
			if diff < 0 {
				diff = -diff
			}
			if diff > 0.001 {
				t.Errorf("Similarity() = %v, want %v (diff: %v)", result, tt.expected, diff)
			}
		})
	}
}

func TestL2Distance(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "different vectors",
			a:        []float32{0, 0, 0},
			b:        []float32{3, 4, 0},
			expected: 5.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := L2Distance(tt.a, tt.b)
			diff := result - tt.expected
			if diff < 0 {
				diff = -diff
			}
			if diff > 0.001 {
				t.Errorf("L2Distance() = %v, want %v (diff: %v)", result, tt.expected, diff)
			}
		})
	}
}

func TestSimilarityPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for dimension mismatch")
		}
	}()

	Similarity([]float32{1, 2}, []float32{1, 2, 3})
}

// countingProvider records batch sizes it was asked to embed.
type countingProvider struct {
	calls   atomic.Int64
	batches [][]string
}

func (f *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *countingProvider) Name() string    { return "fake" }
func (f *countingProvider) Model() string   { return "fake-model" }
func (f *countingProvider) Dimensions() int { return 3 }
func (f *countingProvider) Close() error    { return nil }

func TestServiceEmbedBatchSplitting(t *testing.T) {
	fake := &countingProvider{}
	svc := NewServiceWithProvider(&config.EmbeddingConfig{BatchSize: 2}, fake)

	texts := []string{"a", "b", "c", "d", "e"}
	vectors, err := svc.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}

	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(texts))
	}
	if got := fake.calls.Load(); got != 3 {
		t.Errorf("provider called %d times, want 3", got)
	}
	if len(fake.batches[0]) != 2 || len(fake.batches[2]) != 1 {
		t.Errorf("unexpected batch sizes: %v", fake.batches)
	}
}

func TestServiceEmbedBatchEmpty(t *testing.T) {
	fake := &countingProvider{}
	svc := NewServiceWithProvider(&config.EmbeddingConfig{BatchSize: 2}, fake)

	vectors, err := svc.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("got %d vectors, want 0", len(vectors))
	}
	if got := fake.calls.Load(); got != 0 {
		t.Errorf("provider called %d times for empty input, want 0", got)
	}
}
