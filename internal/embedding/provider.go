// Package embedding generates vector embeddings for text, either through
// a local ONNX inference pipeline or a remote HTTP API.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/jdutton/skillsearch/internal/config"
)

// Provider is the interface for embedding implementations
type Provider interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch generates embeddings for multiple texts in one call
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name identifies the provider implementation ("local", "openai")
	Name() string
	// Model returns the embedding model identifier
	Model() string
	// Dimensions returns the length of every produced vector
	Dimensions() int
	// Close releases provider resources
	Close() error
}

// Service wraps a Provider and splits large inputs into batches
type Service struct {
	cfg      *config.EmbeddingConfig
	provider Provider
}

// NewService creates a new embedding service for the configured provider
func NewService(cfg *config.EmbeddingConfig) (*Service, error) {
	var provider Provider
	var err error

	switch cfg.Provider {
	case "local":
		provider = NewLocalProvider(cfg)
	case "openai":
		provider, err = NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	return &Service{cfg: cfg, provider: provider}, nil
}

// NewServiceWithProvider wraps an existing provider, mainly for tests
func NewServiceWithProvider(cfg *config.EmbeddingConfig, provider Provider) *Service {
	return &Service{cfg: cfg, provider: provider}
}

// Embed generates an embedding for a single text
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.provider.Embed(ctx, text)
}

// EmbedBatch generates embeddings for multiple texts, splitting the input
// into provider-sized batches. An empty input returns an empty result
// without touching the provider.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := s.provider.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", start, end, err)
		}
		if len(embeddings) != end-start {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(embeddings))
		}
		results = append(results, embeddings...)
	}

	return results, nil
}

// Name returns the underlying provider name
func (s *Service) Name() string {
	return s.provider.Name()
}

// Model returns the embedding model identifier
func (s *Service) Model() string {
	return s.provider.Model()
}

// Dimensions returns the dimension of the embeddings
func (s *Service) Dimensions() int {
	return s.provider.Dimensions()
}

// Close releases the underlying provider
func (s *Service) Close() error {
	return s.provider.Close()
}

// Similarity computes cosine similarity between two vectors
func Similarity(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vector dimension mismatch: %d vs %d", len(a), len(b)))
	}

	var dotProduct float32
	var normA float32
	var normB float32

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// L2Distance computes L2 (Euclidean) distance between two vectors
func L2Distance(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vector dimension mismatch: %d vs %d", len(a), len(b)))
	}

	var sum float32
	for i := 0; i < len(a); i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}

	return float32(math.Sqrt(float64(sum)))
}
