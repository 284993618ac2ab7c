package retriever

import (
	"errors"
	"math"
	"testing"

	"docqa/internal/domain"
)

func TestFuseErrors(t *testing.T) {
	chunks := textChunks("a", "b")

	cases := []struct {
		name   string
		bm25   []float64
		vector []float64
		chunks []domain.Chunk
		topK   int
	}{
		{"zero_topk", []float64{1, 2}, []float64{1, 2}, chunks, 0},
		{"no_chunks", nil, nil, nil, 3},
		{"length_mismatch", []float64{1}, []float64{1, 2}, chunks, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Fuse(tc.bm25, tc.vector, tc.chunks, tc.topK, DefaultRRFK)
			if !errors.Is(err, domain.ErrFusion) {
				t.Errorf("expected ErrFusion, got %v", err)
			}
		})
	}
}

func TestFuseAgreeingRankings(t *testing.T) {
	chunks := textChunks("intro", "diet")

	results, err := Fuse([]float64{0.1, 2.0}, []float64{0.2, 0.9}, chunks, 2, DefaultRRFK)
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	if results[0].Chunk.ID != "b" || results[0].Rank != 1 {
		t.Errorf("expected chunk b first, got %+v", results[0])
	}
	want := 2.0 / 61.0
	if math.Abs(results[0].Score-want) > 1e-12 {
		t.Errorf("fused score = %v, want %v", results[0].Score, want)
	}
	if results[1].Rank != 2 {
		t.Errorf("second rank = %d", results[1].Rank)
	}
}

func TestFuseTopKLargerThanChunks(t *testing.T) {
	chunks := textChunks("a", "b", "c")

	results, err := Fuse([]float64{3, 2, 1}, []float64{1, 2, 3}, chunks, 10, DefaultRRFK)
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Rank != i+1 {
			t.Errorf("result %d has rank %d", i, r.Rank)
		}
	}
}

func TestFuseStableOnTies(t *testing.T) {
	chunks := textChunks("a", "b", "c", "d")
	zeros := make([]float64, len(chunks))

	for run := 0; run < 5; run++ {
		results, err := Fuse(zeros, zeros, chunks, 4, DefaultRRFK)
		if err != nil {
			t.Fatalf("Fuse: %v", err)
		}
		for i, r := range results {
			if r.Chunk.Index != i {
				t.Fatalf("run %d: tie order broken at %d: got chunk %d", run, i, r.Chunk.Index)
			}
		}
	}
}

func TestFuseSymmetric(t *testing.T) {
	chunks := textChunks("a", "b", "c", "d")
	x := []float64{0.5, 0.1, 0.9, 0.3}
	y := []float64{0.2, 0.8, 0.4, 0.6}

	xy, err := Fuse(x, y, chunks, 4, DefaultRRFK)
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	yx, err := Fuse(y, x, chunks, 4, DefaultRRFK)
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}

	for i := range xy {
		if xy[i].Chunk.ID != yx[i].Chunk.ID || xy[i].Score != yx[i].Score {
			t.Errorf("position %d differs: %+v vs %+v", i, xy[i], yx[i])
		}
	}
}

func TestRankedAndMetrics(t *testing.T) {
	chunks := textChunks("a", "b", "c")

	top := Ranked([]float64{0.1, 0.7, 0.4}, chunks, 2)
	if len(top) != 2 || top[0].Chunk.ID != "b" || top[1].Chunk.ID != "c" {
		t.Fatalf("unexpected ranking: %+v", top)
	}

	if rr := ReciprocalRank(top, "c"); rr != 0.5 {
		t.Errorf("reciprocal rank = %v, want 0.5", rr)
	}
	if rr := ReciprocalRank(top, "a"); rr != 0 {
		t.Errorf("absent chunk reciprocal rank = %v, want 0", rr)
	}

	all := Ranked([]float64{0.1, 0.7, 0.4}, chunks, 0)
	if ov := Overlap(top, all); ov != 1 {
		t.Errorf("overlap = %v, want 1", ov)
	}
	if ov := Overlap(nil, all); ov != 0 {
		t.Errorf("overlap of empty ranking = %v, want 0", ov)
	}
}
