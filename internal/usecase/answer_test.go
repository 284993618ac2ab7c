package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/prompt"
)

func TestAnswerEndToEnd(t *testing.T) {
	h := newHarness()
	h.mustProcess("cats", catsDoc)
	ctx := context.Background()

	res, err := h.answer.Answer(ctx, AnswerRequest{DocumentID: "cats", Question: "What do cats eat?", TopK: 1})
	require.NoError(t, err)

	require.Len(t, res.Retrieved, 1)
	assert.Equal(t, "Diet", res.Retrieved[0].Chunk.Metadata.SectionTitle)
	assert.Equal(t, 1, res.Retrieved[0].Rank)
	assert.Equal(t, "Cats eat meat [SOURCE 1].", res.Answer)
	assert.Equal(t, []string{"1"}, res.Citations)
	assert.Empty(t, res.Dangling)
	assert.Equal(t, 1.0, res.Faithfulness)
	assert.Equal(t, domain.PromptAdvanced, res.PromptMode)
	assert.False(t, res.Fallback)

	require.Len(t, h.llm.prompts, 1)
	assert.Contains(t, h.llm.prompts[0], "| Diet]:\nCats eat meat.")
	assert.Contains(t, h.llm.prompts[0], prompt.InsufficientPhrase)

	q, err := h.repo.GetQuery(ctx, res.QueryID)
	require.NoError(t, err)
	assert.Equal(t, "What do cats eat?", q.Question)
	assert.Equal(t, res.Answer, q.Answer)
	assert.Equal(t, "Diet", q.Retrieved[0].SectionTitle)
	assert.Equal(t, 1.0, q.Faithfulness)
}

func TestAnswerBasicMode(t *testing.T) {
	h := newHarness()
	h.mustProcess("cats", catsDoc)

	res, err := h.answer.Answer(context.Background(), AnswerRequest{
		DocumentID: "cats", Question: "What do cats eat?", PromptMode: "basic", TopK: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PromptBasic, res.PromptMode)
	assert.Len(t, res.Retrieved, 2)
	assert.True(t, strings.HasPrefix(h.llm.prompts[0], "Context:"))
}

func TestAnswerRejectsInvalidInputBeforeProviders(t *testing.T) {
	h := newHarness()
	h.mustProcess("cats", catsDoc)
	before := h.embedder.calls.Load()
	ctx := context.Background()

	tests := []struct {
		name string
		req  AnswerRequest
		want error
	}{
		{"no document", AnswerRequest{Question: "q?", TopK: 1}, domain.ErrInvalidInput},
		{"empty question", AnswerRequest{DocumentID: "cats", Question: "   ", TopK: 1}, domain.ErrInvalidInput},
		{"bad mode", AnswerRequest{DocumentID: "cats", Question: "q?", PromptMode: "fancy", TopK: 1}, domain.ErrInvalidInput},
		{"zero top k", AnswerRequest{DocumentID: "cats", Question: "q?", TopK: 0}, domain.ErrFusion},
		{"unknown document", AnswerRequest{DocumentID: "dogs", Question: "q?", TopK: 1}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.answer.Answer(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, before, h.embedder.calls.Load(), "no provider call for rejected requests")
	assert.Empty(t, h.llm.prompts)
}

func TestAnswerDocumentNotReady(t *testing.T) {
	h := newHarness()
	h.embedder.fail.Store(true)
	_, err := h.process.Process(context.Background(), ProcessRequest{DocumentID: "cats", Text: catsDoc})
	require.Error(t, err)

	_, err = h.answer.Answer(context.Background(), AnswerRequest{DocumentID: "cats", Question: "What do cats eat?", TopK: 1})
	assert.ErrorIs(t, err, domain.ErrNotReady)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnswerQuestionEmbeddingFailsFast(t *testing.T) {
	h := newHarness()
	h.mustProcess("cats", catsDoc)
	h.embedder.fail.Store(true)
	ctx := context.Background()

	_, err := h.answer.Answer(ctx, AnswerRequest{DocumentID: "cats", Question: "What do cats eat?", TopK: 1})
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Empty(t, h.llm.prompts, "generation must not run without a question embedding")

	queries, err := h.repo.ListQueries(ctx, "cats")
	require.NoError(t, err)
	assert.Empty(t, queries)
}

func TestAnswerGenerationFallback(t *testing.T) {
	h := newHarness()
	h.mustProcess("cats", catsDoc)
	h.llm.err = errors.New("503 service unavailable")
	ctx := context.Background()

	res, err := h.answer.Answer(ctx, AnswerRequest{DocumentID: "cats", Question: "What do cats eat?", TopK: 1})
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.True(t, strings.HasPrefix(res.Answer, prompt.ExtractiveLabel))
	assert.Contains(t, res.Answer, "Cats eat meat [SOURCE 1].")
	assert.Equal(t, []string{"1"}, res.Citations)
	assert.Equal(t, 1.0, res.Faithfulness)

	q, err := h.repo.GetQuery(ctx, res.QueryID)
	require.NoError(t, err)
	assert.True(t, q.Fallback)
}

func TestAnswerFallbackCitesEverySentence(t *testing.T) {
	h := newHarness()
	h.mustProcess("pets", "Cats are mammals. Dogs are mammals too. Both live with people.")
	h.llm.err = errors.New("503 service unavailable")

	for _, mode := range []string{"advanced", "basic"} {
		t.Run(mode, func(t *testing.T) {
			res, err := h.answer.Answer(context.Background(), AnswerRequest{
				DocumentID: "pets", Question: "Are cats mammals?", PromptMode: mode, TopK: 1,
			})
			require.NoError(t, err)
			assert.True(t, res.Fallback)
			assert.Contains(t, res.Answer, "Dogs are mammals too [SOURCE 1].")
			assert.Equal(t, 1.0, res.Faithfulness)
		})
	}
}

func TestAnswerCancelledDuringGeneration(t *testing.T) {
	h := newHarness()
	h.mustProcess("cats", catsDoc)

	ctx, cancel := context.WithCancel(context.Background())
	h.llm.onCall = cancel
	h.llm.err = context.Canceled

	_, err := h.answer.Answer(ctx, AnswerRequest{DocumentID: "cats", Question: "What do cats eat?", TopK: 1})
	assert.ErrorIs(t, err, context.Canceled)

	queries, err := h.repo.ListQueries(context.Background(), "cats")
	require.NoError(t, err)
	assert.Empty(t, queries, "abandoned requests persist nothing")
}

func TestAnswerCancelledAfterGeneration(t *testing.T) {
	h := newHarness()
	h.mustProcess("cats", catsDoc)

	ctx, cancel := context.WithCancel(context.Background())
	h.llm.onCall = cancel

	_, err := h.answer.Answer(ctx, AnswerRequest{DocumentID: "cats", Question: "What do cats eat?", TopK: 1})
	assert.ErrorIs(t, err, context.Canceled)

	queries, err := h.repo.ListQueries(context.Background(), "cats")
	require.NoError(t, err)
	assert.Empty(t, queries)
}

func TestAnswerDanglingCitations(t *testing.T) {
	h := newHarness()
	h.mustProcess("cats", catsDoc)
	h.llm.answer = "Cats eat meat [SOURCE 1]. Dogs are mentioned too [SOURCE 4]."

	res, err := h.answer.Answer(context.Background(), AnswerRequest{DocumentID: "cats", Question: "What do cats eat?", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "4"}, res.Citations)
	assert.Equal(t, []string{"4"}, res.Dangling)
	assert.Equal(t, 1.0, res.Faithfulness)
}

func TestCompareRankings(t *testing.T) {
	h := newHarness()
	h.mustProcess("cats", catsDoc)

	cmp, err := h.retrieve.Compare(context.Background(), "cats", "What do cats eat?", 2)
	require.NoError(t, err)

	assert.Equal(t, 2, cmp.Chunks)
	require.Len(t, cmp.BM25, 2)
	require.Len(t, cmp.Vector, 2)
	require.Len(t, cmp.Fused, 2)
	assert.Equal(t, "Diet", cmp.BM25[0].Chunk.Metadata.SectionTitle)
	assert.Equal(t, "Diet", cmp.Vector[0].Chunk.Metadata.SectionTitle)
	assert.Equal(t, "Diet", cmp.Fused[0].Chunk.Metadata.SectionTitle)
}
