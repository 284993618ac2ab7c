package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"docqa/internal/adapter/chunker"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

const (
	DefaultConcurrency  = 4
	DefaultEmbedTimeout = 30 * time.Second
)

// ProgressFunc reports how many chunks have been embedded so far.
type ProgressFunc func(done, total int)

// ProcessUseCase chunks a document, embeds every chunk and stores the
// result, driving the document through pending, processing and completed.
type ProcessUseCase struct {
	repo        port.Repository
	chunker     port.Chunker
	embedder    port.Embedder
	concurrency int
	timeout     time.Duration
	locks       *keyedLock
}

// ProcessOptions tunes embedding fan-out. Zero values select defaults.
type ProcessOptions struct {
	Concurrency  int
	EmbedTimeout time.Duration
}

// NewProcessUseCase creates a new process use case.
func NewProcessUseCase(repo port.Repository, chk port.Chunker, embedder port.Embedder, opts ProcessOptions) *ProcessUseCase {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = DefaultEmbedTimeout
	}
	return &ProcessUseCase{
		repo:        repo,
		chunker:     chk,
		embedder:    embedder,
		concurrency: opts.Concurrency,
		timeout:     opts.EmbedTimeout,
		locks:       newKeyedLock(),
	}
}

type ProcessRequest struct {
	DocumentID string
	Text       string
	Filename   string
	// Progress is called after each chunk is embedded. It may be nil.
	Progress ProgressFunc
}

type ProcessResult struct {
	DocumentID string
	ChunkCount int
	Duration   time.Duration
}

// Process runs chunking, embedding and persistence for one document. A
// document that does not exist yet is created as pending. Only pending
// documents can be processed; completed and failed are terminal. Any
// failure after the document is claimed marks it failed.
func (u *ProcessUseCase) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	start := time.Now()

	if strings.TrimSpace(req.DocumentID) == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: document text is empty", domain.ErrInvalidInput)
	}

	if !u.locks.TryLock(req.DocumentID) {
		return nil, fmt.Errorf("%w: document %s is already being processed", domain.ErrConflict, req.DocumentID)
	}
	defer u.locks.Unlock(req.DocumentID)

	if err := u.ensureDocument(ctx, req); err != nil {
		return nil, err
	}
	if err := u.repo.TransitionStatus(ctx, req.DocumentID, domain.StatusPending, domain.StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("claim document: %w", err)
	}

	count, err := u.run(ctx, req)
	if err != nil {
		u.fail(ctx, req.DocumentID, err)
		return nil, err
	}

	logger.Info("processed document %s: %d chunks in %s", req.DocumentID, count, time.Since(start).Round(time.Millisecond))
	return &ProcessResult{
		DocumentID: req.DocumentID,
		ChunkCount: count,
		Duration:   time.Since(start),
	}, nil
}

func (u *ProcessUseCase) ensureDocument(ctx context.Context, req ProcessRequest) error {
	_, err := u.repo.GetDocument(ctx, req.DocumentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	err = u.repo.CreateDocument(ctx, domain.Document{
		ID:       req.DocumentID,
		Filename: req.Filename,
		Content:  req.Text,
		Status:   domain.StatusPending,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil
	}
	return err
}

func (u *ProcessUseCase) run(ctx context.Context, req ProcessRequest) (int, error) {
	chunks := u.chunker.Chunk(req.Text, titleHint(req.Filename))
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: document has no content to chunk", domain.ErrInvalidInput)
	}
	chunker.Assign(req.DocumentID, chunks)
	logger.Debug("document %s: %d chunks", req.DocumentID, len(chunks))

	if err := u.embedAll(ctx, chunks, req.Progress); err != nil {
		return 0, err
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := u.repo.CompleteDocument(ctx, req.DocumentID, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(chunks), nil
}

// embedAll embeds chunks concurrently. Each result is written to its own
// slot so chunk order never depends on completion order.
func (u *ProcessUseCase) embedAll(ctx context.Context, chunks []domain.Chunk, progress ProgressFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	model := u.embedder.ModelName()
	var done atomic.Int32

	for i := range chunks {
		g.Go(func() error {
			ectx, cancel := context.WithTimeout(gctx, u.timeout)
			defer cancel()

			vec, err := u.embedder.Embed(ectx, chunks[i].Text)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, domain.ErrProvider) {
					err = fmt.Errorf("%w: %w", domain.ErrProvider, err)
				}
				return fmt.Errorf("embed chunk %d: %w", chunks[i].Index, err)
			}
			if len(vec) == 0 {
				return fmt.Errorf("embed chunk %d: %w: empty vector", chunks[i].Index, domain.ErrProvider)
			}

			chunks[i].Embedding = vec
			chunks[i].EmbeddingModel = model
			if progress != nil {
				progress(int(done.Add(1)), len(chunks))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	dim := len(chunks[0].Embedding)
	for _, c := range chunks[1:] {
		if len(c.Embedding) != dim {
			return fmt.Errorf("%w: chunk %d has dimension %d, want %d", domain.ErrProvider, c.Index, len(c.Embedding), dim)
		}
	}
	return nil
}

// fail records the failure even when ctx is already cancelled.
func (u *ProcessUseCase) fail(ctx context.Context, id string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := u.repo.TransitionStatus(ctx, id, domain.StatusProcessing, domain.StatusFailed, cause.Error()); err != nil {
		logger.Error("mark document %s failed: %v", id, err)
		return
	}
	logger.Warn("document %s failed: %v", id, cause)
}

func titleHint(filename string) string {
	if filename == "" {
		return ""
	}
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
