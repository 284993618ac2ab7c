package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docqa/internal/adapter/store"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// MemoryStore is an in-process port.Repository. It backs tests and the
// "memory" storage backend; nothing survives the process.
type MemoryStore struct {
	mu         sync.RWMutex
	docs       map[string]domain.Document
	docChunks  map[string][]domain.Chunk
	queries    map[string]domain.Query
	docQueries map[string][]string
	now        func() time.Time
}

var _ port.Repository = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory repository.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:       make(map[string]domain.Document),
		docChunks:  make(map[string][]domain.Chunk),
		queries:    make(map[string]domain.Query),
		docQueries: make(map[string][]string),
		now:        time.Now,
	}
}

func (s *MemoryStore) CreateDocument(ctx context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return fmt.Errorf("document %s: %w", doc.ID, domain.ErrAlreadyExists)
	}
	now := s.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	store.SortDocuments(docs)
	return docs, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	for _, qid := range s.docQueries[id] {
		delete(s.queries, qid)
	}
	delete(s.docQueries, id)
	delete(s.docChunks, id)
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) TransitionStatus(ctx context.Context, id string, from, to domain.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err := store.CheckTransition(doc, from, to); err != nil {
		return err
	}
	doc.Status = to
	if to == domain.StatusFailed {
		doc.Error = errMsg
	}
	doc.UpdatedAt = s.now().UTC()
	s.docs[id] = doc
	return nil
}

func (s *MemoryStore) CompleteDocument(ctx context.Context, id string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err := store.CheckTransition(doc, domain.StatusProcessing, domain.StatusCompleted); err != nil {
		return err
	}

	stored := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		if c.DocumentID != id {
			return fmt.Errorf("%w: chunk %s belongs to document %s", domain.ErrInvalidInput, c.ID, c.DocumentID)
		}
		if c.Embedding != nil {
			c.Embedding = append([]float32(nil), c.Embedding...)
		}
		stored[i] = c
	}
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].Index < stored[j].Index })

	s.docChunks[id] = stored
	doc.Status = domain.StatusCompleted
	doc.ChunkCount = len(stored)
	doc.Error = ""
	doc.UpdatedAt = s.now().UTC()
	s.docs[id] = doc
	return nil
}

func (s *MemoryStore) GetChunksByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.docChunks[documentID]
	if len(stored) == 0 {
		return nil, nil
	}
	out := make([]domain.Chunk, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) PutQuery(ctx context.Context, q domain.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[q.DocumentID]; !ok {
		return fmt.Errorf("document %s: %w", q.DocumentID, domain.ErrNotFound)
	}
	if _, exists := s.queries[q.ID]; !exists {
		s.docQueries[q.DocumentID] = append(s.docQueries[q.DocumentID], q.ID)
	}
	s.queries[q.ID] = q
	return nil
}

func (s *MemoryStore) GetQuery(ctx context.Context, id string) (domain.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queries[id]
	if !ok {
		return domain.Query{}, fmt.Errorf("query %s: %w", id, domain.ErrNotFound)
	}
	return q, nil
}

func (s *MemoryStore) ListQueries(ctx context.Context, documentID string) ([]domain.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.docQueries[documentID]
	out := make([]domain.Query, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.queries[id])
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
