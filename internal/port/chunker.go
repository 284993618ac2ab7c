package port

import "docqa/internal/domain"

// Chunker splits raw document text into ordered draft chunks. Drafts carry
// text, index and metadata; IDs and embeddings are assigned by the caller.
type Chunker interface {
	Chunk(text, titleHint string) []domain.Chunk
}
