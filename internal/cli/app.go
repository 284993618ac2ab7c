package cli

import (
	"fmt"
	"os"

	"docqa/config"
	"docqa/internal/adapter/analyzer"
	"docqa/internal/adapter/cache"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/llm"
	"docqa/internal/adapter/memstore"
	"docqa/internal/adapter/retriever"
	"docqa/internal/adapter/store"
	"docqa/internal/adapter/store/sqlite"
	"docqa/internal/logger"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

// App holds the repository and use cases wired from one configuration.
type App struct {
	Repo     port.Repository
	Process  *usecase.ProcessUseCase
	Retrieve *usecase.RetrieveUseCase
	Answer   *usecase.AnswerUseCase
}

// Close releases the repository.
func (a *App) Close() error {
	return a.Repo.Close()
}

// openRepository opens the configured backend under dir/.docqa. For bolt
// it also applies schema migrations and warns when documents were stored
// with other chunking or embedding settings.
func openRepository(c *config.Config, dir string) (port.Repository, error) {
	if c.Storage.Backend == "memory" {
		logger.Warn("memory storage selected: nothing is kept after this command exits")
		return memstore.NewMemoryStore(), nil
	}

	if err := config.EnsureDataDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", config.DataDirName, err)
	}
	path := config.DBPath(dir, c.Storage.Backend)

	if c.Storage.Backend == "sqlite" {
		repo, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return repo, nil
	}

	repo, err := store.NewBoltRepository(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	result, err := repo.CheckMigration(c)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to check migration: %w", err)
	}
	if result.ConfigChanged {
		logger.Warn("%s; documents processed earlier keep their old chunks and vectors", result.Reason)
	}
	if result.NeedsMigration || result.ConfigChanged {
		logger.Debug("migrating store: %s", result.Reason)
		if err := repo.Migrate(c); err != nil {
			repo.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return repo, nil
}

// newEmbedder builds the configured embedding provider behind the rate
// limiter.
func newEmbedder(c *config.Config) (port.Embedder, error) {
	var (
		e   port.Embedder
		err error
	)

	ec := c.Embedding
	switch ec.Provider {
	case "openai":
		e, err = embedding.NewOpenAICompatibleEmbedder(ec.APIKeyEnv, ec.Model, ec.BaseURL, ec.Dimension)
	case "ollama":
		e = embedding.NewOllamaEmbedder(ec.Model, ec.BaseURL)
	case "huggingface":
		e, err = embedding.NewHuggingFaceEmbedder(ec.APIKeyEnv, ec.Model, ec.BaseURL)
	case "mock":
		e = embedding.NewMockEmbedder(ec.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", ec.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	logger.Debug("embedding with %s (%s, %d dims)", e.ModelName(), ec.Provider, e.Dimension())
	return embedding.NewRateLimited(e, ec.RequestsPerSecond), nil
}

// newGenerator builds the configured generation provider. A provider that
// cannot be created is replaced by llm.Unavailable so questions still get
// extractive answers.
func newGenerator(c *config.Config) port.LLM {
	gc := c.Generation
	if gc.Provider == "none" {
		return llm.Unavailable{}
	}

	g, err := llm.NewOpenAIGenerator(llm.Options{
		APIKeyEnv:   gc.APIKeyEnv,
		BaseURL:     gc.BaseURL,
		Model:       gc.Model,
		Temperature: gc.Temperature,
		MaxTokens:   gc.MaxTokens,
	})
	if err != nil {
		logger.Warn("generation disabled: %v", err)
		return llm.Unavailable{}
	}
	return g
}

func openApp() (*App, error) {
	return NewApp(GetConfig(), GetRootDir())
}

// NewApp wires the repository under dir, the providers and the use cases
// from c.
func NewApp(c *config.Config, dir string) (*App, error) {
	embedder, err := newEmbedder(c)
	if err != nil {
		return nil, err
	}

	repo, err := openRepository(c, dir)
	if err != nil {
		return nil, err
	}

	questionEmbedder := embedder
	if c.Cache.Enabled {
		questionEmbedder = cache.NewCachedEmbedder(embedder, cache.NewEmbeddingCache(c.Cache.MaxEntries, c.CacheTTL()))
	}

	chk := chunker.NewHierarchicalChunker(c.Chunking.MaxTokens, analyzer.NewTokenizer())
	hybrid := retriever.NewHybridRetriever(retriever.HybridConfig{
		K1:   c.Retrieve.K1,
		B:    c.Retrieve.B,
		RRFK: c.Retrieve.RRFK,
	})

	retrieve := usecase.NewRetrieveUseCase(repo, questionEmbedder, hybrid, c.EmbeddingTimeout())
	return &App{
		Repo: repo,
		Process: usecase.NewProcessUseCase(repo, chk, embedder, usecase.ProcessOptions{
			Concurrency:  c.Embedding.Concurrency,
			EmbedTimeout: c.EmbeddingTimeout(),
		}),
		Retrieve: retrieve,
		Answer:   usecase.NewAnswerUseCase(repo, retrieve, newGenerator(c), c.GenerationTimeout()),
	}, nil
}

// requireWorkspace fails early when no database has been created yet.
func requireWorkspace() error {
	c := GetConfig()
	if c.Storage.Backend == "memory" {
		return nil
	}
	if _, err := os.Stat(config.DBPath(GetRootDir(), c.Storage.Backend)); os.IsNotExist(err) {
		return fmt.Errorf("no documents found. Run 'docqa process' first")
	}
	return nil
}
