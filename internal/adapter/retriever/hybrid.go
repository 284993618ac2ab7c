package retriever

import (
	"context"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// HybridRetriever ranks chunks by fusing BM25 and vector scores with RRF.
type HybridRetriever struct {
	bm25   *BM25Scorer
	vector *VectorScorer
	rrfK   int
}

// HybridConfig tunes the scorers. Zero values select the defaults.
type HybridConfig struct {
	K1   float64
	B    float64
	RRFK int
}

var _ port.Retriever = (*HybridRetriever)(nil)

// NewHybridRetriever creates a new hybrid retriever. Zero or out of range
// parameters take their defaults.
func NewHybridRetriever(cfg HybridConfig) *HybridRetriever {
	if cfg.K1 <= 0 {
		cfg.K1 = DefaultK1
	}
	if cfg.B <= 0 || cfg.B > 1 {
		cfg.B = DefaultB
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = DefaultRRFK
	}
	return &HybridRetriever{
		bm25:   NewBM25Scorer(nil, cfg.K1, cfg.B),
		vector: NewVectorScorer(),
		rrfK:   cfg.RRFK,
	}
}

// Scores computes the BM25 and vector score lists concurrently.
func (r *HybridRetriever) Scores(ctx context.Context, chunks []domain.Chunk, question string, queryEmbedding []float32) (bm25, vector []float64, err error) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		bm25 = r.bm25.Score(chunks, question)
	}()
	go func() {
		defer wg.Done()
		vector = r.vector.Score(chunks, queryEmbedding)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return bm25, vector, nil
}

// RRFK returns the rank constant used for fusion.
func (r *HybridRetriever) RRFK() int {
	return r.rrfK
}

// Retrieve scores chunks with BM25 and vector similarity, fuses the two
// rankings with RRF and returns the topK best chunks ranked from 1.
func (r *HybridRetriever) Retrieve(ctx context.Context, chunks []domain.Chunk, question string, queryEmbedding []float32, topK int) ([]domain.RetrievedChunk, error) {
	bm25, vector, err := r.Scores(ctx, chunks, question, queryEmbedding)
	if err != nil {
		return nil, err
	}
	return Fuse(bm25, vector, chunks, topK, r.rrfK)
}
