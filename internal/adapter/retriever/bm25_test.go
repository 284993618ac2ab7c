package retriever

import (
	"testing"

	"docqa/internal/domain"
)

func textChunks(texts ...string) []domain.Chunk {
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{ID: string(rune('a' + i)), Index: i, Text: text}
	}
	return chunks
}

func TestBM25ScoresMatchingChunkHigher(t *testing.T) {
	scorer := NewBM25Scorer(nil, DefaultK1, DefaultB)
	chunks := textChunks(
		"Hello world. This is a test.",
		"The diet consists of leaves.",
	)

	scores := scorer.Score(chunks, "what is the diet")
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	if scores[1] <= scores[0] {
		t.Errorf("diet chunk should outscore intro: %v", scores)
	}
}

func TestBM25EmptyInputs(t *testing.T) {
	scorer := NewBM25Scorer(nil, DefaultK1, DefaultB)

	if got := scorer.Score(nil, "anything"); len(got) != 0 {
		t.Errorf("empty chunk set should give empty result, got %v", got)
	}

	scores := scorer.Score(textChunks("alpha beta"), "")
	if scores[0] != 0 {
		t.Errorf("empty query should score 0, got %v", scores[0])
	}
}

func TestBM25AbsentTermContributesNothing(t *testing.T) {
	scorer := NewBM25Scorer(nil, DefaultK1, DefaultB)
	chunks := textChunks("alpha beta gamma", "delta epsilon")

	base := scorer.Score(chunks, "alpha")
	withMissing := scorer.Score(chunks, "alpha zeta")
	for i := range base {
		if base[i] != withMissing[i] {
			t.Errorf("chunk %d: absent term changed score %v -> %v", i, base[i], withMissing[i])
		}
	}
}

func TestBM25MonotonicInTermFrequency(t *testing.T) {
	scorer := NewBM25Scorer(nil, DefaultK1, DefaultB)

	// Same length, one more occurrence of the query term.
	chunks := textChunks(
		"apple pear plum fig",
		"apple apple plum fig",
		"kiwi lime plum fig",
	)
	scores := scorer.Score(chunks, "apple")
	if scores[1] < scores[0] {
		t.Errorf("higher tf should not lower the score: %v", scores)
	}
}

func TestBM25DuplicateQueryTermsCount(t *testing.T) {
	scorer := NewBM25Scorer(nil, DefaultK1, DefaultB)
	chunks := textChunks("apple pear", "kiwi lime")

	once := scorer.Score(chunks, "apple")
	twice := scorer.Score(chunks, "apple apple")
	if twice[0] <= once[0] {
		t.Errorf("repeated query term should add weight: once=%v twice=%v", once[0], twice[0])
	}
}

func TestBM25CaseInsensitive(t *testing.T) {
	scorer := NewBM25Scorer(nil, DefaultK1, DefaultB)
	chunks := textChunks("Photosynthesis converts light", "other text here")

	scores := scorer.Score(chunks, "PHOTOSYNTHESIS")
	if scores[0] <= 0 {
		t.Errorf("expected positive score for case-folded match, got %v", scores[0])
	}
}
