package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DataDirName is the per-workspace directory holding the database.
const DataDirName = ".docqa"

// Config holds all configuration for the docqa tool.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking" toml:"chunking"`
	Retrieve   RetrieveConfig   `yaml:"retrieve" toml:"retrieve"`
	Embedding  EmbeddingConfig  `yaml:"embedding" toml:"embedding"`
	Generation GenerationConfig `yaml:"generation" toml:"generation"`
	Storage    StorageConfig    `yaml:"storage" toml:"storage"`
	Cache      CacheConfig      `yaml:"cache" toml:"cache"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// ChunkingConfig holds chunking configuration.
type ChunkingConfig struct {
	MaxTokens int `yaml:"max_tokens" toml:"max_tokens"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK int     `yaml:"top_k" toml:"top_k"`
	K1   float64 `yaml:"k1" toml:"k1"`
	B    float64 `yaml:"b" toml:"b"`
	RRFK int     `yaml:"rrf_k" toml:"rrf_k"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider" toml:"provider"` // "openai", "ollama", "huggingface", "mock"
	Model             string  `yaml:"model" toml:"model"`
	BaseURL           string  `yaml:"base_url" toml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env" toml:"api_key_env"`
	Dimension         int     `yaml:"dimension" toml:"dimension"`
	Concurrency       int     `yaml:"concurrency" toml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"` // 0 = unlimited
	TimeoutSecs       int     `yaml:"timeout_secs" toml:"timeout_secs"`
}

// GenerationConfig holds answer generation configuration.
type GenerationConfig struct {
	Provider    string  `yaml:"provider" toml:"provider"` // "openai", "none"
	Model       string  `yaml:"model" toml:"model"`
	BaseURL     string  `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env" toml:"api_key_env"`
	Temperature float64 `yaml:"temperature" toml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" toml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs" toml:"timeout_secs"`
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // "bolt", "sqlite", "memory"
}

// CacheConfig controls the question embedding cache.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled" toml:"enabled"`
	MaxEntries int  `yaml:"max_entries" toml:"max_entries"`
	TTLSecs    int  `yaml:"ttl_secs" toml:"ttl_secs"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			MaxTokens: 500,
		},
		Retrieve: RetrieveConfig{
			TopK: 5,
			K1:   1.5,
			B:    0.75,
			RRFK: 60,
		},
		Embedding: EmbeddingConfig{
			Provider:    "huggingface",
			Model:       "sentence-transformers/all-MiniLM-L6-v2",
			APIKeyEnv:   "HUGGINGFACE_API_KEY",
			Dimension:   384,
			Concurrency: 4,
			TimeoutSecs: 30,
		},
		Generation: GenerationConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.1,
			MaxTokens:   500,
			TimeoutSecs: 60,
		},
		Storage: StorageConfig{
			Backend: "bolt",
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 100,
			TTLSecs:    300,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML or TOML file, chosen by extension.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDir looks for docqa.yaml, docqa.toml and .docqa/config.yaml in
// that order.
func LoadFromDir(dir string) (*Config, error) {
	candidates := []string{
		filepath.Join(dir, "docqa.yaml"),
		filepath.Join(dir, "docqa.toml"),
		filepath.Join(dir, DataDirName, "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return DefaultConfig(), nil
}

// Save writes the configuration as YAML, or TOML for a .toml path.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every setting the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Chunking.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("chunking.max_tokens must be positive, got %d", c.Chunking.MaxTokens))
	}
	if c.Retrieve.TopK < 1 {
		errs = append(errs, fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK))
	}
	if c.Retrieve.K1 <= 0 {
		errs = append(errs, fmt.Errorf("retrieve.k1 must be positive, got %g", c.Retrieve.K1))
	}
	if c.Retrieve.B < 0 || c.Retrieve.B > 1 {
		errs = append(errs, fmt.Errorf("retrieve.b must be within [0, 1], got %g", c.Retrieve.B))
	}
	if c.Embedding.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("embedding.concurrency must be positive, got %d", c.Embedding.Concurrency))
	}
	switch c.Embedding.Provider {
	case "openai", "ollama", "huggingface", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	switch c.Generation.Provider {
	case "openai", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown generation provider %q", c.Generation.Provider))
	}
	switch c.Storage.Backend {
	case "bolt", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	return errors.Join(errs...)
}

// EmbeddingTimeout returns the per-call embedding deadline.
func (c *Config) EmbeddingTimeout() time.Duration {
	return secs(c.Embedding.TimeoutSecs, 30)
}

// GenerationTimeout returns the per-call generation deadline.
func (c *Config) GenerationTimeout() time.Duration {
	return secs(c.Generation.TimeoutSecs, 60)
}

// CacheTTL returns how long cached question embeddings stay valid.
func (c *Config) CacheTTL() time.Duration {
	return secs(c.Cache.TTLSecs, 300)
}

func secs(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

// DBPath returns the path to the database for the given backend.
func DBPath(dir, backend string) string {
	name := "docqa.db"
	if backend == "sqlite" {
		name = "docqa.sqlite"
	}
	return filepath.Join(dir, DataDirName, name)
}

// EnsureDataDir ensures the .docqa directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, DataDirName), 0755)
}
