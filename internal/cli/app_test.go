package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/config"
	"docqa/internal/adapter/llm"
	"docqa/internal/prompt"
	"docqa/internal/usecase"
)

func offlineConfig(backend string) *config.Config {
	c := config.DefaultConfig()
	c.Embedding.Provider = "mock"
	c.Embedding.Dimension = 384
	c.Generation.Provider = "none"
	c.Storage.Backend = backend
	return c
}

func TestNewAppOfflinePipeline(t *testing.T) {
	for _, backend := range []string{"bolt", "sqlite", "memory"} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			a, err := NewApp(offlineConfig(backend), dir)
			require.NoError(t, err)
			defer a.Close()

			ctx := context.Background()
			_, err = a.Process.Process(ctx, usecase.ProcessRequest{
				DocumentID: "cats",
				Text:       "# Intro\nCats are mammals. Dogs are mammals too.\n# Diet\nCats eat meat.",
				Filename:   "cats.md",
			})
			require.NoError(t, err)

			res, err := a.Answer.Answer(ctx, usecase.AnswerRequest{DocumentID: "cats", Question: "What do cats eat?", TopK: 1})
			require.NoError(t, err)
			assert.True(t, res.Fallback, "generation provider none answers extractively")
			assert.True(t, strings.HasPrefix(res.Answer, prompt.ExtractiveLabel))
			assert.Equal(t, []string{"1"}, res.Citations)
			assert.Equal(t, "Diet", res.Retrieved[0].Chunk.Metadata.SectionTitle)

			if backend != "memory" {
				assert.FileExists(t, config.DBPath(dir, backend))
			}
		})
	}
}

func TestNewAppRejectsUnknownProvider(t *testing.T) {
	c := offlineConfig("memory")
	c.Embedding.Provider = "word2vec"
	_, err := NewApp(c, t.TempDir())
	assert.Error(t, err)
}

func TestNewGeneratorWithoutKey(t *testing.T) {
	c := config.DefaultConfig()
	c.Generation.APIKeyEnv = "DOCQA_TEST_MISSING_KEY"
	t.Setenv("DOCQA_TEST_MISSING_KEY", "")

	assert.IsType(t, llm.Unavailable{}, newGenerator(c))
}

func TestBoltReopenKeepsDocuments(t *testing.T) {
	dir := t.TempDir()
	c := offlineConfig("bolt")

	a, err := NewApp(c, dir)
	require.NoError(t, err)
	_, err = a.Process.Process(context.Background(), usecase.ProcessRequest{DocumentID: "d1", Text: "One sentence here."})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	c.Chunking.MaxTokens = 100
	repo, err := openRepository(c, dir)
	require.NoError(t, err)
	defer repo.Close()

	docs, err := repo.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "d1", docs[0].ID)
	assert.Equal(t, filepath.Join(dir, config.DataDirName, "docqa.db"), config.DBPath(dir, "bolt"))
}

func TestChunkPreview(t *testing.T) {
	short := "Cats eat meat."
	assert.Equal(t, short, chunkPreview(short))

	long := strings.Repeat("word ", 100)
	p := chunkPreview(long)
	assert.True(t, strings.HasSuffix(p, "..."))
	assert.LessOrEqual(t, len([]rune(p)), previewChars+3)
}
