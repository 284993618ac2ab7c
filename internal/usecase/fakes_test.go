package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/memstore"
	"docqa/internal/adapter/retriever"
	"docqa/internal/port"
)

const catsDoc = "# Intro\nCats are mammals. Dogs are mammals too.\n# Diet\nCats eat meat."

// controlledEmbedder wraps the mock embedder with failure, delay and call
// counting hooks.
type controlledEmbedder struct {
	inner *embedding.MockEmbedder
	fail  atomic.Bool
	calls atomic.Int32
	delay func(text string) time.Duration
	gate  chan struct{}
}

func newControlledEmbedder() *controlledEmbedder {
	return &controlledEmbedder{inner: embedding.NewMockEmbedder(384)}
}

func (e *controlledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.delay != nil {
		time.Sleep(e.delay(text))
	}
	if e.fail.Load() {
		return nil, errors.New("quota exceeded")
	}
	return e.inner.Embed(ctx, text)
}

func (e *controlledEmbedder) Dimension() int    { return e.inner.Dimension() }
func (e *controlledEmbedder) ModelName() string { return e.inner.ModelName() }

// scriptedLLM returns a fixed answer or error and records the prompts.
type scriptedLLM struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
	onCall  func()
}

func (l *scriptedLLM) Generate(ctx context.Context, p string) (string, error) {
	return l.GenerateWithSystem(ctx, "", p)
}

func (l *scriptedLLM) GenerateWithSystem(ctx context.Context, system, user string) (string, error) {
	l.mu.Lock()
	l.prompts = append(l.prompts, user)
	l.mu.Unlock()
	if l.onCall != nil {
		l.onCall()
	}
	if l.err != nil {
		return "", l.err
	}
	return l.answer, nil
}

func (l *scriptedLLM) ModelName() string { return "scripted" }

type harness struct {
	repo     *memstore.MemoryStore
	embedder *controlledEmbedder
	llm      *scriptedLLM
	process  *ProcessUseCase
	retrieve *RetrieveUseCase
	answer   *AnswerUseCase
}

func newHarness() *harness {
	h := &harness{
		repo:     memstore.NewMemoryStore(),
		embedder: newControlledEmbedder(),
		llm:      &scriptedLLM{answer: "Cats eat meat [SOURCE 1]."},
	}
	var emb port.Embedder = h.embedder
	h.process = NewProcessUseCase(h.repo, chunker.NewHierarchicalChunker(500, nil), emb, ProcessOptions{Concurrency: 3})
	h.retrieve = NewRetrieveUseCase(h.repo, emb, retriever.NewHybridRetriever(retriever.HybridConfig{}), time.Second)
	h.answer = NewAnswerUseCase(h.repo, h.retrieve, h.llm, time.Second)
	return h
}

func (h *harness) mustProcess(id, text string) {
	if _, err := h.process.Process(context.Background(), ProcessRequest{DocumentID: id, Text: text, Filename: id + ".md"}); err != nil {
		panic(err)
	}
}
