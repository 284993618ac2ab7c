package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docqa/internal/adapter/retriever"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

// RetrieveUseCase ranks the chunks of a completed document for a question.
type RetrieveUseCase struct {
	repo      port.Repository
	embedder  port.Embedder
	retriever *retriever.HybridRetriever
	timeout   time.Duration
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(repo port.Repository, embedder port.Embedder, r *retriever.HybridRetriever, embedTimeout time.Duration) *RetrieveUseCase {
	if embedTimeout <= 0 {
		embedTimeout = DefaultEmbedTimeout
	}
	return &RetrieveUseCase{
		repo:      repo,
		embedder:  embedder,
		retriever: r,
		timeout:   embedTimeout,
	}
}

// candidates holds everything scoring needs for one question.
type candidates struct {
	chunks         []domain.Chunk
	queryEmbedding []float32
}

// Retrieve returns the top K chunks of the document for question.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, documentID, question string, topK int) ([]domain.RetrievedChunk, error) {
	c, err := u.prepare(ctx, documentID, question, topK)
	if err != nil {
		return nil, err
	}
	return u.retriever.Retrieve(ctx, c.chunks, question, c.queryEmbedding, topK)
}

// Comparison holds the lexical, vector and fused rankings for one question.
type Comparison struct {
	BM25   []domain.RetrievedChunk
	Vector []domain.RetrievedChunk
	Fused  []domain.RetrievedChunk
	// Chunks is the number of candidates scored.
	Chunks int
}

// Compare ranks the document with each scorer alone and with fusion.
func (u *RetrieveUseCase) Compare(ctx context.Context, documentID, question string, topK int) (*Comparison, error) {
	c, err := u.prepare(ctx, documentID, question, topK)
	if err != nil {
		return nil, err
	}

	bm25, vector, err := u.retriever.Scores(ctx, c.chunks, question, c.queryEmbedding)
	if err != nil {
		return nil, err
	}
	fused, err := retriever.Fuse(bm25, vector, c.chunks, topK, u.retriever.RRFK())
	if err != nil {
		return nil, err
	}

	return &Comparison{
		BM25:   retriever.Ranked(bm25, c.chunks, topK),
		Vector: retriever.Ranked(vector, c.chunks, topK),
		Fused:  fused,
		Chunks: len(c.chunks),
	}, nil
}

// prepare validates the request, loads the document's chunks and embeds
// the question. Input errors are reported before any provider call.
func (u *RetrieveUseCase) prepare(ctx context.Context, documentID, question string, topK int) (*candidates, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", domain.ErrFusion, topK)
	}

	doc, err := u.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("%w: document %s is %s", domain.ErrNotReady, documentID, doc.Status)
	}

	chunks, err := u.repo.GetChunksByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document %s has no chunks", domain.ErrNotReady, documentID)
	}

	vec, err := u.embedQuestion(ctx, question)
	if err != nil {
		return nil, err
	}
	return &candidates{chunks: chunks, queryEmbedding: vec}, nil
}

func (u *RetrieveUseCase) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	start := time.Now()
	vec, err := u.embedder.Embed(ectx, question)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, domain.ErrProvider) {
			err = fmt.Errorf("%w: %w", domain.ErrProvider, err)
		}
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embed question: %w: empty vector", domain.ErrProvider)
	}
	logger.Debug("embedded question in %s", time.Since(start).Round(time.Millisecond))
	return vec, nil
}
