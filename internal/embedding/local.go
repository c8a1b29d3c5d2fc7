package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/jdutton/skillsearch/internal/config"
	"github.com/jdutton/skillsearch/internal/tokenizer"
)

// LocalProvider embeds text with a local tokenizer + ONNX model pipeline:
// WordPiece tokenization, transformer inference, mask-weighted mean
// pooling and L2 normalization. Model assets are fetched lazily into the
// configured cache directory on first use.
type LocalProvider struct {
	cfg *config.EmbeddingConfig

	mu       sync.Mutex
	loaded   bool
	fatalErr error
	tok      *tokenizer.Tokenizer
	sess     session

	// Overridable in tests to avoid network and native runtime.
	ensureFiles func(ctx context.Context, cacheDir, model string) (string, string, error)
	loadVocab   func(path string) (*tokenizer.Tokenizer, error)
	newSession  func(modelPath string, dim int) (session, error)
}

// NewLocalProvider creates a local provider. No files are touched until
// the first embedding call.
func NewLocalProvider(cfg *config.EmbeddingConfig) *LocalProvider {
	return &LocalProvider{
		cfg:         cfg,
		ensureFiles: ensureModelFiles,
		loadVocab:   tokenizer.Load,
		newSession: func(modelPath string, dim int) (session, error) {
			if err := initRuntime(cfg.OnnxLibrary); err != nil {
				return nil, err
			}
			return newOnnxSession(modelPath, dim)
		},
	}
}

// ensureLoaded performs the one-time model load. The mutex makes
// concurrent first calls share the in-flight load instead of duplicating
// downloads. A missing runtime is fatal and cached; a failed download
// propagates but leaves the provider retryable.
func (p *LocalProvider) ensureLoaded(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return nil
	}
	if p.fatalErr != nil {
		return p.fatalErr
	}

	modelPath, vocabPath, err := p.ensureFiles(ctx, p.cfg.CacheDir, p.cfg.Model)
	if err != nil {
		return fmt.Errorf("fetch model assets: %w", err)
	}

	tok, err := p.loadVocab(vocabPath)
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}

	sess, err := p.newSession(modelPath, p.cfg.Dimensions)
	if err != nil {
		if IsRuntimeError(err) {
			p.fatalErr = err
		}
		return err
	}

	p.tok = tok
	p.sess = sess
	p.loaded = true
	return nil
}

// Embed generates an embedding for a single text
func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates one unit-length vector per input text. An empty
// input returns an empty result without loading or invoking the model.
func (p *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := p.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	batch := p.tok.TokenizeBatch(texts, p.cfg.MaxSequenceLength)

	hidden, err := p.sess.run(batch.IDs, batch.Masks, batch.SeqLen)
	if err != nil {
		return nil, err
	}

	dim := p.cfg.Dimensions
	if want := len(texts) * batch.SeqLen * dim; len(hidden) != want {
		return nil, fmt.Errorf("model output size %d does not match batch %dx%dx%d", len(hidden), len(texts), batch.SeqLen, dim)
	}

	pooled := MeanPool(hidden, batch.Masks, len(texts), batch.SeqLen, dim)
	for i := range pooled {
		pooled[i] = L2Normalize(pooled[i])
	}
	return pooled, nil
}

// Name identifies the provider implementation
func (p *LocalProvider) Name() string {
	return "local"
}

// Model returns the embedding model identifier
func (p *LocalProvider) Model() string {
	return p.cfg.Model
}

// Dimensions returns the length of every produced vector
func (p *LocalProvider) Dimensions() int {
	return p.cfg.Dimensions
}

// Close releases the inference session
func (p *LocalProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess == nil {
		return nil
	}
	err := p.sess.destroy()
	p.sess = nil
	p.loaded = false
	return err
}
