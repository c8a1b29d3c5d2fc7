package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
	Indexer   IndexerConfig   `yaml:"indexer,omitempty"`
	Search    SearchConfig    `yaml:"search,omitempty"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "local" | "openai"

	// Model name. For the local provider this is a Hugging Face model id
	// whose ONNX export and vocabulary are fetched into the cache dir.
	Model string `yaml:"model"`

	// Local provider specific
	CacheDir          string `yaml:"cache_dir,omitempty"`    // model/vocab cache, default ~/.skillsearch/models
	OnnxLibrary       string `yaml:"onnx_library,omitempty"` // path to the onnxruntime shared library
	MaxSequenceLength int    `yaml:"max_sequence_length,omitempty"`

	// Remote provider specific
	APIKey   string `yaml:"api_key,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"` // OpenAI-compatible embeddings endpoint

	// Embedding parameters
	Dimensions int `yaml:"dimensions"` // output vector length
	BatchSize  int `yaml:"batch_size"` // texts per inference/API call
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Path to SQLite database file
	// If empty, uses ~/.skillsearch/data/skillsearch.db
	Path string `yaml:"path,omitempty"`
}

// IndexerConfig holds indexer-specific configuration
type IndexerConfig struct {
	MaxChunkChars int      `yaml:"max_chunk_chars,omitempty"` // Maximum characters per chunk
	ChunkOverlap  int      `yaml:"chunk_overlap,omitempty"`   // Overlap when splitting oversized sections
	Exclude       []string `yaml:"exclude,omitempty"`         // Exclude glob patterns

	// Metadata declares the typed frontmatter fields carried on every
	// chunk. Order matters: filters combine in declared order.
	Metadata []MetadataField `yaml:"metadata,omitempty"`
}

// MetadataField declares one metadata field and its type expression,
// e.g. "string", "number", "array<string>", "optional<date>".
type MetadataField struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// SearchConfig holds search-specific configuration
type SearchConfig struct {
	DefaultLimit  int     `yaml:"default_limit,omitempty"`  // Default number of results
	VectorWeight  float32 `yaml:"vector_weight,omitempty"`  // Vector search weight (0-1)
	KeywordWeight float32 `yaml:"keyword_weight,omitempty"` // Keyword search weight (0-1)
	EnableKeyword bool    `yaml:"enable_keyword,omitempty"` // Maintain the bleve keyword index
}

// Load loads configuration from the default config file
// Default location: ~/.skillsearch/config/skillsearch.yaml
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".skillsearch", "config", "skillsearch.yaml")
	return LoadFromFile(configPath)
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			homeDir, _ := os.UserHomeDir()
			defaultPath := filepath.Join(homeDir, ".skillsearch", "config", "skillsearch.yaml")
			return nil, &ConfigNotFoundError{
				RequestedPath: path,
				DefaultPath:   defaultPath,
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied, suitable
// for running without a config file.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigNotFoundError is returned when config file is not found
type ConfigNotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Create the config file at the default location\n"+
		"  2. Specify a custom path with -config flag\n"+
		"  3. Run 'skillsearch init' to create a config template",
		e.RequestedPath, e.DefaultPath)
}

// IsConfigNotFound checks if error is config not found
func IsConfigNotFound(err error) bool {
	_, ok := err.(*ConfigNotFoundError)
	return ok
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() error {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "local"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.MaxSequenceLength == 0 {
		c.Embedding.MaxSequenceLength = 256
	}
	if c.Embedding.CacheDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Embedding.CacheDir = filepath.Join(homeDir, ".skillsearch", "models")
	} else {
		c.Embedding.CacheDir = expandPath(c.Embedding.CacheDir)
	}
	if c.Embedding.OnnxLibrary != "" {
		c.Embedding.OnnxLibrary = expandPath(c.Embedding.OnnxLibrary)
	}
	if c.Embedding.Endpoint == "" {
		c.Embedding.Endpoint = "https://api.openai.com/v1/embeddings"
	}

	if c.Database.Path != "" {
		c.Database.Path = expandPath(c.Database.Path)
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Database.Path = filepath.Join(homeDir, ".skillsearch", "data", "skillsearch.db")
	}

	if c.Indexer.MaxChunkChars == 0 {
		c.Indexer.MaxChunkChars = 1500
	}
	if c.Indexer.ChunkOverlap == 0 {
		c.Indexer.ChunkOverlap = 200
	}

	if c.Search.DefaultLimit == 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.VectorWeight == 0 && c.Search.KeywordWeight == 0 {
		c.Search.VectorWeight = 1.0
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "local":
		if c.Embedding.Model == "" {
			return fmt.Errorf("local provider requires model")
		}
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("openai provider requires api_key")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}

	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got: %d", c.Embedding.Dimensions)
	}

	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 256 {
		return fmt.Errorf("batch_size must be between 1 and 256, got: %d", c.Embedding.BatchSize)
	}

	if c.Search.VectorWeight < 0 || c.Search.KeywordWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}

	return nil
}

// Save saves the configuration to the default location
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".skillsearch", "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "skillsearch.yaml")
	return c.SaveToFile(configPath)
}

// SaveToFile saves the configuration to a specific file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

const defaultConfigTemplate = `# skillsearch configuration
#
# Copy and edit this file for your environment.
# Default location: $HOME/.skillsearch/config/skillsearch.yaml

embedding:
  # Provider: "local" (ONNX runtime) or "openai"
  provider: local

  # Local configuration
  model: sentence-transformers/all-MiniLM-L6-v2
  dimensions: 384
  batch_size: 32
  max_sequence_length: 256
  # cache_dir: ~/.skillsearch/models
  # onnx_library: /usr/local/lib/libonnxruntime.so

  # OpenAI configuration (alternative)
  # provider: openai
  # model: text-embedding-3-small
  # api_key: your-openai-api-key
  # dimensions: 1536
  # batch_size: 100

database:
  # path: ~/.skillsearch/data/skillsearch.db

indexer:
  max_chunk_chars: 1500
  chunk_overlap: 200
  # exclude:
  #   - "**/node_modules/**"

  # Typed frontmatter fields stored with every chunk and usable in
  # search filters. Types: string, number, boolean, date, array<string>,
  # object, optional<T>.
  # metadata:
  #   - name: domain
  #     type: string
  #   - name: tags
  #     type: array<string>
  #   - name: author
  #     type: optional<string>

search:
  default_limit: 10
  vector_weight: 1.0
  keyword_weight: 0.0
  enable_keyword: false
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
