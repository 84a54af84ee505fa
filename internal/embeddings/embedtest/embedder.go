// Package embedtest provides a deterministic embeddings.Embedder for tests.
package embedtest

import (
	"context"
	"math"
	"sync"
)

// Embedder returns normalized character-histogram vectors, so texts sharing
// characters land close together. Vectors overrides the embedding of
// specific texts. When Err is set every call fails with it.
type Embedder struct {
	Dims    int
	Vectors map[string][]float32
	Err     error

	mu    sync.Mutex
	calls int
}

// New creates an embedder with the given dimensions.
func New(dims int) *Embedder {
	return &Embedder{Dims: dims, Vectors: make(map[string][]float32)}
}

func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.Vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = e.Vector(t)
	}
	return out, nil
}

func (e *Embedder) Dimensions() int { return e.Dims }
func (e *Embedder) Name() string    { return "embedtest" }

// Calls returns how many Embed calls were made.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Vector computes the deterministic vector of text.
func (e *Embedder) Vector(text string) []float32 {
	vec := make([]float32, e.Dims)
	for i, ch := range text {
		vec[(int(ch)+i)%e.Dims] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}
