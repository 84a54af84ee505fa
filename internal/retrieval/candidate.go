package retrieval

import "github.com/ziadkadry99/auto-reply/internal/vectordb"

// Candidate is a retrieved catalog item.
type Candidate struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	PrimaryKey string            `json:"primary_key,omitempty"`
	Features   map[string]string `json:"features,omitempty"`
	// Embedding is only needed for ranking and is not cached.
	Embedding []float32 `json:"-"`
}

func candidateFrom(r vectordb.SearchResult) Candidate {
	return Candidate{
		ID:         r.Document.ID,
		Content:    r.Document.Content,
		Metadata:   r.Document.Metadata,
		PrimaryKey: r.Document.PrimaryKey(),
		Features:   ParseFeatures(r.Document.Content),
		Embedding:  r.Document.Embedding,
	}
}
