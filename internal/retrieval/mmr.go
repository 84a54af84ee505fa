package retrieval

import "math"

// MMR selects up to topK document indices using maximal marginal relevance:
// each step picks the document maximising
//
//	lambda*sim(query, d) - (1-lambda)*max(sim(d, s) for s in selected)
//
// Indices are distinct and returned in selection order.
func MMR(query []float32, docs [][]float32, lambda float64, topK int) []int {
	n := len(docs)
	if topK > n {
		topK = n
	}
	if topK <= 0 {
		return nil
	}

	relevance := make([]float64, n)
	for i, d := range docs {
		relevance[i] = cosine(query, d)
	}
	// redundancy[i] tracks the max similarity of doc i to the selected set.
	redundancy := make([]float64, n)
	taken := make([]bool, n)
	selected := make([]int, 0, topK)

	for len(selected) < topK {
		best, bestScore := -1, math.Inf(-1)
		for i := range docs {
			if taken[i] {
				continue
			}
			score := relevance[i]
			if len(selected) > 0 {
				score = lambda*relevance[i] - (1-lambda)*redundancy[i]
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		taken[best] = true
		selected = append(selected, best)

		for i := range docs {
			if taken[i] {
				continue
			}
			if s := cosine(docs[i], docs[best]); len(selected) == 1 || s > redundancy[i] {
				redundancy[i] = s
			}
		}
	}
	return selected
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
