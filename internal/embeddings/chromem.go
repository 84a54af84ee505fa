package embeddings

import (
	"context"
	"errors"

	chromem "github.com/philippgille/chromem-go"
)

// ErrNoVector is returned when an embedder answers a single text with no
// usable vector.
var ErrNoVector = errors.New("embedder returned no vector")

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, ErrNoVector
	}
	return vecs[0], nil
}

// ToChromemFunc adapts e to the one-text-per-call function chromem uses
// when a document or query arrives without a precomputed embedding.
func ToChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return EmbedOne(ctx, e, text)
	}
}
