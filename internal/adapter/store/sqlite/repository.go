// Package sqlite stores documents, chunks and queries in a single SQLite
// file through the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"docqa/internal/adapter/store"
	"docqa/internal/adapter/store/sqlite/migrations"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

var _ port.Repository = (*Repository)(nil)

// Open opens or creates the database at path and applies pending
// migrations.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serialises writers; status compare-and-set relies on it.
	db.SetMaxOpenConns(1)

	r := &Repository{db: db, now: time.Now}
	if err := r.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return r, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(fsys embed.FS) error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := r.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := r.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration.
func (r *Repository) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := r.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	return v, err
}

// ==================== Documents ====================

const documentColumns = "id, filename, content, status, chunk_count, error, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var (
		doc                  domain.Document
		status               string
		createdAt, updatedAt string
	)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.Content, &status, &doc.ChunkCount, &doc.Error, &createdAt, &updatedAt); err != nil {
		return doc, err
	}
	doc.Status = domain.Status(status)
	doc.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	doc.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return doc, nil
}

func (r *Repository) CreateDocument(ctx context.Context, doc domain.Document) error {
	now := r.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.Status == "" {
		doc.Status = domain.StatusPending
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO documents ("+documentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		doc.ID, doc.Filename, doc.Content, string(doc.Status), doc.ChunkCount, doc.Error,
		doc.CreatedAt.UTC().Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("document %s: %w", doc.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	return getDocument(ctx, r.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDocument(ctx context.Context, q querier, id string) (domain.Document, error) {
	doc, err := scanDocument(q.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return doc, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return doc, fmt.Errorf("reading document: %w", err)
	}
	return doc, nil
}

func (r *Repository) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+documentColumns+" FROM documents")
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	store.SortDocuments(docs)
	return docs, nil
}

func (r *Repository) DeleteDocument(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *Repository) TransitionStatus(ctx context.Context, id string, from, to domain.Status, errMsg string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		doc, err := getDocument(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := store.CheckTransition(doc, from, to); err != nil {
			return err
		}
		if to != domain.StatusFailed {
			errMsg = doc.Error
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE documents SET status = ?, error = ?, updated_at = ? WHERE id = ? AND status = ?",
			string(to), errMsg, r.now().UTC().Format(timeLayout), id, string(from))
		if err != nil {
			return fmt.Errorf("updating status: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("%w: document %s changed concurrently", domain.ErrConflict, id)
		}
		return nil
	})
}

func (r *Repository) CompleteDocument(ctx context.Context, id string, chunks []domain.Chunk) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		doc, err := getDocument(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := store.CheckTransition(doc, domain.StatusProcessing, domain.StatusCompleted); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
			return fmt.Errorf("clearing chunks: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
			(id, document_id, chunk_index, text, embedding, embedding_model, section_title, section_level, chunk_type, token_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing chunk insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range chunks {
			if c.DocumentID != id {
				return fmt.Errorf("%w: chunk %s belongs to document %s", domain.ErrInvalidInput, c.ID, c.DocumentID)
			}
			var blob []byte
			if c.Embedding != nil {
				blob = store.EncodeVector(c.Embedding)
			}
			_, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Index, c.Text, blob, c.EmbeddingModel,
				c.Metadata.SectionTitle, c.Metadata.SectionLevel, c.Metadata.ChunkType, c.Metadata.TokenCount)
			if err != nil {
				return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
			}
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET status = ?, chunk_count = ?, error = '', updated_at = ? WHERE id = ?",
			string(domain.StatusCompleted), len(chunks), r.now().UTC().Format(timeLayout), id)
		if err != nil {
			return fmt.Errorf("completing document: %w", err)
		}
		return nil
	})
}

// ==================== Chunks ====================

func (r *Repository) GetChunksByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, document_id, chunk_index, text, embedding, embedding_model,
		section_title, section_level, chunk_type, token_count
		FROM chunks WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var (
			c    domain.Chunk
			blob []byte
		)
		err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &blob, &c.EmbeddingModel,
			&c.Metadata.SectionTitle, &c.Metadata.SectionLevel, &c.Metadata.ChunkType, &c.Metadata.TokenCount)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if blob != nil {
			if c.Embedding, err = store.DecodeVector(blob); err != nil {
				return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ==================== Queries ====================

const queryColumns = "id, document_id, question, answer, prompt_type, retrieved_chunks, citations, faithfulness_score, fallback, created_at"

func (r *Repository) PutQuery(ctx context.Context, q domain.Query) error {
	retrieved, err := json.Marshal(nonNil(q.Retrieved))
	if err != nil {
		return err
	}
	citations, err := json.Marshal(nonNil(q.Citations))
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getDocument(ctx, tx, q.DocumentID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO queries (`+queryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET answer = excluded.answer, retrieved_chunks = excluded.retrieved_chunks,
			citations = excluded.citations, faithfulness_score = excluded.faithfulness_score, fallback = excluded.fallback`,
			q.ID, q.DocumentID, q.Question, q.Answer, string(q.PromptMode), string(retrieved), string(citations),
			q.Faithfulness, q.Fallback, q.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("inserting query: %w", err)
		}
		return nil
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func scanQuery(row rowScanner) (domain.Query, error) {
	var (
		q                    domain.Query
		mode                 string
		retrieved, citations string
		createdAt            string
	)
	if err := row.Scan(&q.ID, &q.DocumentID, &q.Question, &q.Answer, &mode, &retrieved, &citations,
		&q.Faithfulness, &q.Fallback, &createdAt); err != nil {
		return q, err
	}
	q.PromptMode = domain.PromptMode(mode)
	if err := json.Unmarshal([]byte(retrieved), &q.Retrieved); err != nil {
		return q, fmt.Errorf("decoding retrieved chunks: %w", err)
	}
	if err := json.Unmarshal([]byte(citations), &q.Citations); err != nil {
		return q, fmt.Errorf("decoding citations: %w", err)
	}
	q.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return q, nil
}

func (r *Repository) GetQuery(ctx context.Context, id string) (domain.Query, error) {
	q, err := scanQuery(r.db.QueryRowContext(ctx, "SELECT "+queryColumns+" FROM queries WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return q, fmt.Errorf("query %s: %w", id, domain.ErrNotFound)
	}
	return q, err
}

func (r *Repository) ListQueries(ctx context.Context, documentID string) ([]domain.Query, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+queryColumns+" FROM queries WHERE document_id = ? ORDER BY created_at, rowid", documentID)
	if err != nil {
		return nil, fmt.Errorf("listing queries: %w", err)
	}
	defer rows.Close()

	var out []domain.Query
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
