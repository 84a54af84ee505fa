package vectordb

import "context"

// Index stores and searches documents in named collections. Each company
// owns a text and an image collection.
type Index interface {
	// AddDocuments adds or updates documents in a collection, creating it
	// if needed.
	AddDocuments(ctx context.Context, collection string, docs []Document) error

	// QueryEmbedding returns up to limit documents nearest to the given
	// vector. where restricts results to documents whose metadata matches
	// every pair. An unknown or empty collection yields no results.
	QueryEmbedding(ctx context.Context, collection string, embedding []float32, limit int, where map[string]string) ([]SearchResult, error)

	// Delete removes the documents of a collection matching where.
	Delete(ctx context.Context, collection string, where map[string]string) error

	// Count returns the number of documents in a collection.
	Count(collection string) int

	// Persist saves the index to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the index from the given directory.
	Load(ctx context.Context, dir string) error
}
