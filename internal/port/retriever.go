package port

import (
	"context"

	"docqa/internal/domain"
)

// Retriever ranks a document's chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, chunks []domain.Chunk, question string, queryEmbedding []float32, topK int) ([]domain.RetrievedChunk, error)
}
