package vectordb

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/auto-reply/internal/embeddings"
)

const indexFile = "chromem.gob.gz"

// ChromemIndex implements Index using chromem-go.
type ChromemIndex struct {
	mu        sync.Mutex
	db        *chromem.DB
	embedFunc chromem.EmbeddingFunc
}

// NewChromemIndex creates a new in-memory index. The embedder is used for
// documents added without a precomputed embedding.
func NewChromemIndex(embedder embeddings.Embedder) *ChromemIndex {
	return &ChromemIndex{
		db:        chromem.NewDB(),
		embedFunc: embeddings.ToChromemFunc(embedder),
	}
}

func (s *ChromemIndex) collection(name string, create bool) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if col := s.db.GetCollection(name, s.embedFunc); col != nil || !create {
		return col, nil
	}
	col, err := s.db.GetOrCreateCollection(name, nil, s.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	return col, nil
}

func (s *ChromemIndex) AddDocuments(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	col, err := s.collection(collection, true)
	if err != nil {
		return err
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  maps.Clone(doc.Metadata),
			Embedding: doc.Embedding,
		}
	}
	if err := col.AddDocuments(ctx, chromDocs, 1); err != nil {
		return fmt.Errorf("add documents to %s: %w", collection, err)
	}
	return nil
}

func (s *ChromemIndex) QueryEmbedding(ctx context.Context, collection string, embedding []float32, limit int, where map[string]string) ([]SearchResult, error) {
	col, err := s.collection(collection, false)
	if err != nil || col == nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	// chromem-go requires nResults <= number of documents.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}
	if len(where) == 0 {
		where = nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query %s: %w", collection, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			Document: Document{
				ID:        r.ID,
				Content:   r.Content,
				Metadata:  r.Metadata,
				Embedding: r.Embedding,
			},
			Similarity: r.Similarity,
		}
	}
	return out, nil
}

func (s *ChromemIndex) Delete(ctx context.Context, collection string, where map[string]string) error {
	col, err := s.collection(collection, false)
	if err != nil || col == nil {
		return err
	}
	if len(where) == 0 {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.db.DeleteCollection(collection)
	}
	return col.Delete(ctx, where, nil)
}

func (s *ChromemIndex) Count(collection string) int {
	col, _ := s.collection(collection, false)
	if col == nil {
		return 0
	}
	return col.Count()
}

func (s *ChromemIndex) Persist(_ context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.ExportToFile(filepath.Join(dir, indexFile), true, ""); err != nil {
		return fmt.Errorf("export index: %w", err)
	}
	return nil
}

// Load imports a persisted index. A missing file leaves the index empty.
func (s *ChromemIndex) Load(_ context.Context, dir string) error {
	path := filepath.Join(dir, indexFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.ImportFromFile(path, ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}
	return nil
}
