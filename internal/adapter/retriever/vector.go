package retriever

import (
	"math"

	"docqa/internal/domain"
)

// VectorScorer scores chunks by cosine similarity between their stored
// embedding and the query embedding.
type VectorScorer struct{}

// NewVectorScorer creates a cosine similarity scorer.
func NewVectorScorer() *VectorScorer {
	return &VectorScorer{}
}

// Score returns one similarity per chunk, in input order. A chunk whose
// embedding is missing, malformed or of a different dimension scores 0.
func (s *VectorScorer) Score(chunks []domain.Chunk, queryEmbedding []float32) []float64 {
	scores := make([]float64, len(chunks))
	if !usableVector(queryEmbedding) {
		return scores
	}
	for i, chunk := range chunks {
		if len(chunk.Embedding) != len(queryEmbedding) || !usableVector(chunk.Embedding) {
			continue
		}
		scores[i] = CosineSimilarity(queryEmbedding, chunk.Embedding)
	}
	return scores
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return sim
}

func usableVector(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
