package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"docqa/internal/domain"
	"docqa/internal/port"
)

var (
	bucketDocs       = []byte("docs")
	bucketChunks     = []byte("chunks")
	bucketVectors    = []byte("vectors")
	bucketDocChunks  = []byte("doc_chunks")
	bucketQueries    = []byte("queries")
	bucketDocQueries = []byte("doc_queries")
	bucketMeta       = []byte("meta")
)

var allBuckets = [][]byte{
	bucketDocs, bucketChunks, bucketVectors, bucketDocChunks,
	bucketQueries, bucketDocQueries, bucketMeta,
}

// BoltRepository is the bbolt implementation of port.Repository. Every
// write is a single bbolt transaction, so a document never becomes
// completed without its chunks.
type BoltRepository struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ port.Repository = (*BoltRepository)(nil)

// NewBoltRepository opens or creates the bbolt database at path.
func NewBoltRepository(path string) (*BoltRepository, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltRepository{db: db, now: time.Now}, nil
}

func (s *BoltRepository) Close() error {
	return s.db.Close()
}

// chunkRecord is a chunk without its vector; vectors live in their own
// bucket in binary form.
type chunkRecord struct {
	ID             string               `json:"id"`
	DocumentID     string               `json:"document_id"`
	Index          int                  `json:"chunk_index"`
	Text           string               `json:"text"`
	EmbeddingModel string               `json:"embedding_model,omitempty"`
	Metadata       domain.ChunkMetadata `json:"metadata"`
}

func (s *BoltRepository) CreateDocument(ctx context.Context, doc domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocs)
		if docs.Get([]byte(doc.ID)) != nil {
			return fmt.Errorf("document %s: %w", doc.ID, domain.ErrAlreadyExists)
		}
		now := s.now().UTC()
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		doc.UpdatedAt = now
		return putJSON(docs, doc.ID, doc)
	})
}

func (s *BoltRepository) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		doc, err = getDocument(tx, id)
		return err
	})
	return doc, err
}

func getDocument(tx *bbolt.Tx, id string) (domain.Document, error) {
	var doc domain.Document
	data := tx.Bucket(bucketDocs).Get([]byte(id))
	if data == nil {
		return doc, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode document %s: %w", id, err)
	}
	return doc, nil
}

func (s *BoltRepository) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var doc domain.Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decode document %s: %w", k, err)
			}
			docs = append(docs, doc)
			return nil
		})
	})
	SortDocuments(docs)
	return docs, err
}

func (s *BoltRepository) DeleteDocument(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := getDocument(tx, id); err != nil {
			return err
		}
		if err := deleteChunks(tx, id); err != nil {
			return err
		}

		queryIDs, err := getIDs(tx.Bucket(bucketDocQueries), id)
		if err != nil {
			return err
		}
		queries := tx.Bucket(bucketQueries)
		for _, qid := range queryIDs {
			if err := queries.Delete([]byte(qid)); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketDocQueries).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketDocs).Delete([]byte(id))
	})
}

func (s *BoltRepository) TransitionStatus(ctx context.Context, id string, from, to domain.Status, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		doc, err := getDocument(tx, id)
		if err != nil {
			return err
		}
		if err := CheckTransition(doc, from, to); err != nil {
			return err
		}
		doc.Status = to
		if to == domain.StatusFailed {
			doc.Error = errMsg
		}
		doc.UpdatedAt = s.now().UTC()
		return putJSON(tx.Bucket(bucketDocs), id, doc)
	})
}

func (s *BoltRepository) CompleteDocument(ctx context.Context, id string, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		doc, err := getDocument(tx, id)
		if err != nil {
			return err
		}
		if err := CheckTransition(doc, domain.StatusProcessing, domain.StatusCompleted); err != nil {
			return err
		}
		if err := deleteChunks(tx, id); err != nil {
			return err
		}

		chunkBucket := tx.Bucket(bucketChunks)
		vectors := tx.Bucket(bucketVectors)
		ids := make([]string, len(chunks))
		for i, c := range chunks {
			if c.DocumentID != id {
				return fmt.Errorf("%w: chunk %s belongs to document %s", domain.ErrInvalidInput, c.ID, c.DocumentID)
			}
			rec := chunkRecord{
				ID:             c.ID,
				DocumentID:     c.DocumentID,
				Index:          c.Index,
				Text:           c.Text,
				EmbeddingModel: c.EmbeddingModel,
				Metadata:       c.Metadata,
			}
			if err := putJSON(chunkBucket, c.ID, rec); err != nil {
				return err
			}
			if c.Embedding != nil {
				if err := vectors.Put([]byte(c.ID), EncodeVector(c.Embedding)); err != nil {
					return err
				}
			}
			ids[i] = c.ID
		}
		if err := putJSON(tx.Bucket(bucketDocChunks), id, ids); err != nil {
			return err
		}

		doc.Status = domain.StatusCompleted
		doc.ChunkCount = len(chunks)
		doc.Error = ""
		doc.UpdatedAt = s.now().UTC()
		return putJSON(tx.Bucket(bucketDocs), id, doc)
	})
}

func (s *BoltRepository) GetChunksByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		ids, err := getIDs(tx.Bucket(bucketDocChunks), documentID)
		if err != nil {
			return err
		}
		chunkBucket := tx.Bucket(bucketChunks)
		vectors := tx.Bucket(bucketVectors)
		for _, cid := range ids {
			data := chunkBucket.Get([]byte(cid))
			if data == nil {
				continue
			}
			var rec chunkRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("decode chunk %s: %w", cid, err)
			}
			chunk := domain.Chunk{
				ID:             rec.ID,
				DocumentID:     rec.DocumentID,
				Index:          rec.Index,
				Text:           rec.Text,
				EmbeddingModel: rec.EmbeddingModel,
				Metadata:       rec.Metadata,
			}
			if raw := vectors.Get([]byte(cid)); raw != nil {
				chunk.Embedding, err = DecodeVector(raw)
				if err != nil {
					return fmt.Errorf("decode vector %s: %w", cid, err)
				}
			}
			chunks = append(chunks, chunk)
		}
		return nil
	})
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, err
}

func (s *BoltRepository) PutQuery(ctx context.Context, q domain.Query) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := getDocument(tx, q.DocumentID); err != nil {
			return err
		}
		queries := tx.Bucket(bucketQueries)
		isNew := queries.Get([]byte(q.ID)) == nil
		if err := putJSON(queries, q.ID, q); err != nil {
			return err
		}
		if !isNew {
			return nil
		}

		docQueries := tx.Bucket(bucketDocQueries)
		ids, err := getIDs(docQueries, q.DocumentID)
		if err != nil {
			return err
		}
		return putJSON(docQueries, q.DocumentID, append(ids, q.ID))
	})
}

func (s *BoltRepository) GetQuery(ctx context.Context, id string) (domain.Query, error) {
	var q domain.Query
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketQueries).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("query %s: %w", id, domain.ErrNotFound)
		}
		return json.Unmarshal(data, &q)
	})
	return q, err
}

func (s *BoltRepository) ListQueries(ctx context.Context, documentID string) ([]domain.Query, error) {
	var out []domain.Query
	err := s.db.View(func(tx *bbolt.Tx) error {
		ids, err := getIDs(tx.Bucket(bucketDocQueries), documentID)
		if err != nil {
			return err
		}
		queries := tx.Bucket(bucketQueries)
		for _, qid := range ids {
			data := queries.Get([]byte(qid))
			if data == nil {
				continue
			}
			var q domain.Query
			if err := json.Unmarshal(data, &q); err != nil {
				return fmt.Errorf("decode query %s: %w", qid, err)
			}
			out = append(out, q)
		}
		return nil
	})
	return out, err
}

// Clear removes every document, chunk and query while keeping schema info.
func (s *BoltRepository) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if string(name) == string(bucketMeta) {
				continue
			}
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func deleteChunks(tx *bbolt.Tx, docID string) error {
	docChunks := tx.Bucket(bucketDocChunks)
	ids, err := getIDs(docChunks, docID)
	if err != nil {
		return err
	}
	chunkBucket := tx.Bucket(bucketChunks)
	vectors := tx.Bucket(bucketVectors)
	for _, cid := range ids {
		if err := chunkBucket.Delete([]byte(cid)); err != nil {
			return err
		}
		if err := vectors.Delete([]byte(cid)); err != nil {
			return err
		}
	}
	return docChunks.Delete([]byte(docID))
}

func getIDs(b *bbolt.Bucket, key string) ([]string, error) {
	data := b.Get([]byte(key))
	if data == nil {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode id list %s: %w", key, err)
	}
	return ids, nil
}

func putJSON(b *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}
