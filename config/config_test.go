package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chunking.MaxTokens != 500 {
		t.Errorf("expected MaxTokens=500, got %d", cfg.Chunking.MaxTokens)
	}
	if cfg.Retrieve.K1 != 1.5 {
		t.Errorf("expected K1=1.5, got %f", cfg.Retrieve.K1)
	}
	if cfg.Retrieve.B != 0.75 {
		t.Errorf("expected B=0.75, got %f", cfg.Retrieve.B)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.RRFK != 60 {
		t.Errorf("expected RRFK=60, got %d", cfg.Retrieve.RRFK)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docqa.yaml")

	content := `
chunking:
  max_tokens: 256
retrieve:
  top_k: 10
embedding:
  provider: mock
  timeout_secs: 5
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Chunking.MaxTokens != 256 {
		t.Errorf("expected MaxTokens=256, got %d", cfg.Chunking.MaxTokens)
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("expected provider mock, got %s", cfg.Embedding.Provider)
	}
	if cfg.EmbeddingTimeout() != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.EmbeddingTimeout())
	}
	// Unset keys keep their defaults.
	if cfg.Retrieve.K1 != 1.5 {
		t.Errorf("expected default K1, got %f", cfg.Retrieve.K1)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docqa.toml")

	content := `
[retrieve]
top_k = 3
rrf_k = 30

[storage]
backend = "sqlite"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieve.TopK != 3 || cfg.Retrieve.RRFK != 30 {
		t.Errorf("unexpected retrieve config: %+v", cfg.Retrieve)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %s", cfg.Storage.Backend)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docqa.yaml")

	content := `
retrieve:
  top_k: 0
storage:
  backend: mongo
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "top_k") || !strings.Contains(err.Error(), "mongo") {
		t.Errorf("error should name every invalid field: %v", err)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docqa.yaml")

	content := `
chunking:
  max_tokens: 800
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Chunking.MaxTokens != 800 {
		t.Errorf("expected MaxTokens=800, got %d", cfg.Chunking.MaxTokens)
	}
}

func TestLoadFromDir_DataDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	content := "logging:\n  level: debug\n"
	if err := os.WriteFile(filepath.Join(tmpDir, DataDirName, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromDir_NoConfig(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieve.TopK != DefaultConfig().Retrieve.TopK {
		t.Errorf("expected defaults, got %+v", cfg.Retrieve)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"docqa.yaml", "docqa.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := DefaultConfig()
			cfg.Retrieve.TopK = 7

			if err := cfg.Save(path); err != nil {
				t.Fatalf("save: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if loaded.Retrieve.TopK != 7 {
				t.Errorf("expected TopK=7, got %d", loaded.Retrieve.TopK)
			}
		})
	}
}

func TestDBPath(t *testing.T) {
	if got := DBPath("/tmp/x", "bolt"); got != filepath.Join("/tmp/x", ".docqa", "docqa.db") {
		t.Errorf("unexpected bolt path %s", got)
	}
	if got := DBPath("/tmp/x", "sqlite"); !strings.HasSuffix(got, "docqa.sqlite") {
		t.Errorf("unexpected sqlite path %s", got)
	}
}
