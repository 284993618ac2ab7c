package port

import (
	"context"

	"docqa/internal/domain"
)

// Repository persists documents, their chunks and the queries asked
// against them.
type Repository interface {
	// CreateDocument stores a new document. It returns domain.ErrAlreadyExists
	// when the ID is taken.
	CreateDocument(ctx context.Context, doc domain.Document) error

	GetDocument(ctx context.Context, id string) (domain.Document, error)

	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes the document with its chunks and queries.
	DeleteDocument(ctx context.Context, id string) error

	// TransitionStatus moves a document from one status to another only if
	// its current status equals from. Exactly one concurrent caller wins;
	// the others get domain.ErrConflict. errMsg is recorded on failure.
	TransitionStatus(ctx context.Context, id string, from, to domain.Status, errMsg string) error

	// CompleteDocument stores the chunks, sets chunk_count and moves the
	// document from processing to completed in one atomic step. Chunks
	// previously stored for the document are replaced.
	CompleteDocument(ctx context.Context, id string, chunks []domain.Chunk) error

	// GetChunksByDocument returns the document's chunks ordered by index.
	GetChunksByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)

	PutQuery(ctx context.Context, q domain.Query) error

	GetQuery(ctx context.Context, id string) (domain.Query, error)

	// ListQueries returns the document's queries, oldest first.
	ListQueries(ctx context.Context, documentID string) ([]domain.Query, error)

	Close() error
}
