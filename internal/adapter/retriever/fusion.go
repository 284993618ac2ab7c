package retriever

import (
	"fmt"
	"sort"

	"docqa/internal/domain"
)

// DefaultRRFK is the rank constant of reciprocal rank fusion.
const DefaultRRFK = 60

// Fuse combines two score lists over the same chunks with reciprocal rank
// fusion and returns the top K chunks with 1-based ranks. Each list is
// ranked descending with ties kept in input order; a chunk's fused score is
// 1/(k+r1+1) + 1/(k+r2+1) for its 0-based ranks r1 and r2.
func Fuse(bm25, vector []float64, chunks []domain.Chunk, topK, k int) ([]domain.RetrievedChunk, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", domain.ErrFusion, topK)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to rank", domain.ErrFusion)
	}
	if len(bm25) != len(chunks) || len(vector) != len(chunks) {
		return nil, fmt.Errorf("%w: score lengths %d and %d do not match %d chunks",
			domain.ErrFusion, len(bm25), len(vector), len(chunks))
	}
	if k < 0 {
		k = DefaultRRFK
	}

	fused := make([]float64, len(chunks))
	for rank, idx := range rankOrder(bm25) {
		fused[idx] += 1.0 / float64(k+rank+1)
	}
	for rank, idx := range rankOrder(vector) {
		fused[idx] += 1.0 / float64(k+rank+1)
	}

	order := rankOrder(fused)
	if topK > len(order) {
		topK = len(order)
	}

	results := make([]domain.RetrievedChunk, topK)
	for i := 0; i < topK; i++ {
		idx := order[i]
		results[i] = domain.RetrievedChunk{
			Chunk: chunks[idx],
			Score: fused[idx],
			Rank:  i + 1,
		}
	}
	return results, nil
}

// rankOrder returns chunk indices sorted by descending score. Equal scores
// keep their input order.
func rankOrder(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order
}

// Ranked turns raw scores into a top K ranking without fusion. It backs
// the single-scorer columns of the bench command.
func Ranked(scores []float64, chunks []domain.Chunk, topK int) []domain.RetrievedChunk {
	order := rankOrder(scores)
	if topK > len(order) || topK < 1 {
		topK = len(order)
	}
	results := make([]domain.RetrievedChunk, topK)
	for i := 0; i < topK; i++ {
		idx := order[i]
		results[i] = domain.RetrievedChunk{Chunk: chunks[idx], Score: scores[idx], Rank: i + 1}
	}
	return results
}
