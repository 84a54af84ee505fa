package retrieval

import "testing"

func TestMMRBoundAndDistinct(t *testing.T) {
	query := []float32{1, 0, 0}
	docs := [][]float32{
		{1, 0, 0}, {1, 0, 0}, {0.9, 0.1, 0}, {0, 1, 0}, {0, 0, 1}, {0.5, 0.5, 0}, {0.2, 0.2, 0.9},
	}
	for _, k := range []int{0, 1, 3, 5, 7, 20} {
		got := MMR(query, docs, 0.7, k)
		want := min(k, len(docs))
		if len(got) != want {
			t.Errorf("topK=%d: got %d indices, want %d", k, len(got), want)
		}
		seen := make(map[int]bool)
		for _, i := range got {
			if seen[i] {
				t.Errorf("topK=%d: duplicate index %d in %v", k, i, got)
			}
			seen[i] = true
		}
	}
}

func TestMMRPrefersDiversity(t *testing.T) {
	query := []float32{1, 0}
	docs := [][]float32{
		{1, 0},       // exact match
		{0.99, 0.01}, // near duplicate of the first
		{0.7, 0.7},   // less relevant but different
	}
	got := MMR(query, docs, 0.3, 2)
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("MMR = %v, want [0 2]", got)
	}

	// With lambda 1 selection is pure relevance.
	got = MMR(query, docs, 1, 2)
	if got[0] != 0 || got[1] != 1 {
		t.Errorf("relevance-only MMR = %v, want [0 1]", got)
	}
}

func TestMMREmpty(t *testing.T) {
	if got := MMR([]float32{1}, nil, 0.7, 5); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
