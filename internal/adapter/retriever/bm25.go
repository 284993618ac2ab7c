package retriever

import (
	"math"

	"docqa/internal/adapter/analyzer"
	"docqa/internal/domain"
)

// BM25 defaults: k1 controls term frequency saturation and b the length
// normalization.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// BM25Scorer scores chunks against a query by term statistics computed
// over the candidate set itself. Document frequencies are recomputed on
// every call; the candidate set is a single document's chunks.
type BM25Scorer struct {
	tokenizer *analyzer.Tokenizer
	k1        float64
	b         float64
}

// NewBM25Scorer creates a BM25 scorer with the given parameters.
func NewBM25Scorer(tokenizer *analyzer.Tokenizer, k1, b float64) *BM25Scorer {
	if tokenizer == nil {
		tokenizer = analyzer.NewTokenizer()
	}
	return &BM25Scorer{
		tokenizer: tokenizer,
		k1:        k1,
		b:         b,
	}
}

// Score returns one BM25 score per chunk, in input order. Query terms that
// occur nowhere in the candidate set contribute nothing.
func (s *BM25Scorer) Score(chunks []domain.Chunk, query string) []float64 {
	scores := make([]float64, len(chunks))
	if len(chunks) == 0 {
		return scores
	}

	queryTerms := s.tokenizer.Tokenize(query)
	if len(queryTerms) == 0 {
		return scores
	}

	termFreqs := make([]map[string]int, len(chunks))
	docLens := make([]float64, len(chunks))
	df := make(map[string]int)
	totalLen := 0.0

	for i, chunk := range chunks {
		tokens := s.tokenizer.Tokenize(chunk.Text)
		tf := make(map[string]int, len(tokens))
		for _, token := range tokens {
			tf[token]++
		}
		for term := range tf {
			df[term]++
		}
		termFreqs[i] = tf
		docLens[i] = float64(len(tokens))
		totalLen += docLens[i]
	}

	N := float64(len(chunks))
	avgDl := totalLen / N

	for i := range chunks {
		score := 0.0
		for _, term := range queryTerms {
			tf := float64(termFreqs[i][term])
			if tf == 0 {
				continue
			}
			n := float64(df[term])
			idf := math.Log((N-n+0.5)/(n+0.5) + 1)

			norm := 1.0
			if avgDl > 0 {
				norm = docLens[i] / avgDl
			}
			score += idf * (tf * (s.k1 + 1)) / (tf + s.k1*(1-s.b+s.b*norm))
		}
		scores[i] = score
	}

	return scores
}
