// Package storetest checks that a port.Repository implementation honours
// the document state machine and the atomic completion contract.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// Run exercises repo implementations created by newRepo. Each subtest gets
// a fresh repository.
func Run(t *testing.T, newRepo func(t *testing.T) port.Repository) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newRepo(t)) })
	t.Run("Transitions", func(t *testing.T) { testTransitions(t, newRepo(t)) })
	t.Run("ConcurrentClaim", func(t *testing.T) { testConcurrentClaim(t, newRepo(t)) })
	t.Run("Complete", func(t *testing.T) { testComplete(t, newRepo(t)) })
	t.Run("Queries", func(t *testing.T) { testQueries(t, newRepo(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newRepo(t)) })
}

func newDoc(id string) domain.Document {
	return domain.Document{
		ID:       id,
		Filename: id + ".txt",
		Content:  "Intro:\nHello world.",
		Status:   domain.StatusPending,
	}
}

// Chunks builds n chunks for docID with small embeddings; chunk 1 has none.
func Chunks(docID string, n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:             fmt.Sprintf("%s-c%d", docID, i),
			DocumentID:     docID,
			Index:          i,
			Text:           fmt.Sprintf("chunk %d text.", i),
			EmbeddingModel: "mock",
			Metadata: domain.ChunkMetadata{
				SectionTitle: "Intro",
				SectionLevel: 1,
				ChunkType:    domain.ChunkTypeText,
				TokenCount:   3,
			},
		}
		if i != 1 {
			chunks[i].Embedding = []float32{float32(i), 0.5, -1}
		}
	}
	return chunks
}

func testCreateAndGet(t *testing.T, repo port.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateDocument(ctx, newDoc("d1")))

	got, err := repo.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1.txt", got.Filename)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	err = repo.CreateDocument(ctx, newDoc("d1"))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = repo.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.CreateDocument(ctx, newDoc("d2")))
	docs, err := repo.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func testTransitions(t *testing.T, repo port.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateDocument(ctx, newDoc("d1")))

	err := repo.TransitionStatus(ctx, "d1", domain.StatusProcessing, domain.StatusCompleted, "")
	assert.ErrorIs(t, err, domain.ErrConflict, "from must match stored status")

	require.NoError(t, repo.TransitionStatus(ctx, "d1", domain.StatusPending, domain.StatusProcessing, ""))
	require.NoError(t, repo.TransitionStatus(ctx, "d1", domain.StatusProcessing, domain.StatusFailed, "embedding provider down"))

	got, err := repo.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "embedding provider down", got.Error)

	err = repo.TransitionStatus(ctx, "d1", domain.StatusFailed, domain.StatusProcessing, "")
	assert.ErrorIs(t, err, domain.ErrConflict, "failed is terminal")

	err = repo.TransitionStatus(ctx, "missing", domain.StatusPending, domain.StatusProcessing, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testConcurrentClaim(t *testing.T, repo port.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateDocument(ctx, newDoc("d1")))

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.TransitionStatus(ctx, "d1", domain.StatusPending, domain.StatusProcessing, "")
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins, "exactly one caller may claim the document")
}

func testComplete(t *testing.T, repo port.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateDocument(ctx, newDoc("d1")))

	err := repo.CompleteDocument(ctx, "d1", Chunks("d1", 2))
	assert.ErrorIs(t, err, domain.ErrConflict, "pending document cannot complete")

	require.NoError(t, repo.TransitionStatus(ctx, "d1", domain.StatusPending, domain.StatusProcessing, ""))

	err = repo.CompleteDocument(ctx, "d1", Chunks("other", 2))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	got, err := repo.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status, "failed completion must not change status")
	chunks, err := repo.GetChunksByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, chunks, "failed completion must not leave chunks")

	want := Chunks("d1", 3)
	require.NoError(t, repo.CompleteDocument(ctx, "d1", []domain.Chunk{want[2], want[0], want[1]}))

	got, err = repo.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 3, got.ChunkCount)

	chunks, err = repo.GetChunksByDocument(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, got.ChunkCount)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "chunks ordered by index")
		assert.Equal(t, want[i].Text, c.Text)
		assert.Equal(t, want[i].Metadata, c.Metadata)
		assert.Equal(t, want[i].Embedding, c.Embedding)
		assert.Equal(t, "mock", c.EmbeddingModel)
	}
	assert.Nil(t, chunks[1].Embedding, "missing embedding stays missing")

	err = repo.CompleteDocument(ctx, "d1", want)
	assert.ErrorIs(t, err, domain.ErrConflict, "completed is terminal")
}

func testQueries(t *testing.T, repo port.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateDocument(ctx, newDoc("d1")))

	err := repo.PutQuery(ctx, domain.Query{ID: "q0", DocumentID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		q := domain.Query{
			ID:           fmt.Sprintf("q%d", i+1),
			DocumentID:   "d1",
			Question:     fmt.Sprintf("question %d?", i),
			Answer:       "Leaves [SOURCE 1].",
			PromptMode:   domain.PromptAdvanced,
			Citations:    []string{"1"},
			Faithfulness: 1,
			Retrieved: []domain.RetrievedSummary{
				{ChunkID: "c", ChunkIndex: 0, SectionTitle: "Diet", Score: 0.03, Rank: 1},
			},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.PutQuery(ctx, q))
	}

	got, err := repo.GetQuery(ctx, "q2")
	require.NoError(t, err)
	assert.Equal(t, "question 1?", got.Question)
	assert.Equal(t, []string{"1"}, got.Citations)
	assert.Equal(t, "Diet", got.Retrieved[0].SectionTitle)
	assert.True(t, got.CreatedAt.Equal(base.Add(time.Minute)))

	list, err := repo.ListQueries(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "q1", list[0].ID)
	assert.Equal(t, "q3", list[2].ID)

	_, err = repo.GetQuery(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testDelete(t *testing.T, repo port.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.CreateDocument(ctx, newDoc("d1")))
	require.NoError(t, repo.TransitionStatus(ctx, "d1", domain.StatusPending, domain.StatusProcessing, ""))
	require.NoError(t, repo.CompleteDocument(ctx, "d1", Chunks("d1", 2)))
	require.NoError(t, repo.PutQuery(ctx, domain.Query{ID: "q1", DocumentID: "d1", CreatedAt: time.Now()}))

	require.NoError(t, repo.DeleteDocument(ctx, "d1"))

	_, err := repo.GetDocument(ctx, "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	chunks, err := repo.GetChunksByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
	_, err = repo.GetQuery(ctx, "q1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, repo.DeleteDocument(ctx, "d1"), domain.ErrNotFound)
}
