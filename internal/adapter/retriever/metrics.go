package retriever

import "docqa/internal/domain"

// Overlap returns the fraction of chunk IDs in a that also appear in b.
// An empty a yields 0.
func Overlap(a, b []domain.RetrievedChunk) float64 {
	if len(a) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(b))
	for _, r := range b {
		seen[r.Chunk.ID] = true
	}
	hits := 0
	for _, r := range a {
		if seen[r.Chunk.ID] {
			hits++
		}
	}
	return float64(hits) / float64(len(a))
}

// ReciprocalRank returns 1/rank of the first chunk with the given ID, or 0
// when it is absent.
func ReciprocalRank(ranking []domain.RetrievedChunk, chunkID string) float64 {
	for i, r := range ranking {
		if r.Chunk.ID == chunkID {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}
