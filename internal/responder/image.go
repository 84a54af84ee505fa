package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/embeddings"
	"github.com/ziadkadry99/auto-reply/internal/llm"
	"github.com/ziadkadry99/auto-reply/internal/vectordb"
)

// Metadata keys of image documents.
const (
	MetaMatchField = "match_field"
	MetaMatchValue = "match_value"
)

// ImageMatch is a catalog image similar to one sent by the customer.
type ImageMatch struct {
	ID         string
	Field      string
	Value      string
	FullPath   string
	Similarity float32
}

// ImageSearcher finds catalog images similar to an inbound image.
type ImageSearcher struct {
	embedder   embeddings.ImageEmbedder
	index      vectordb.Index
	k          int
	matchField string
}

// NewImageSearcher creates a searcher returning up to k matches. matchField
// is assumed for images indexed without one.
func NewImageSearcher(embedder embeddings.ImageEmbedder, index vectordb.Index, k int, matchField string) *ImageSearcher {
	if k <= 0 {
		k = 2
	}
	return &ImageSearcher{embedder: embedder, index: index, k: k, matchField: matchField}
}

// Search returns the closest catalog images of the company.
func (s *ImageSearcher) Search(ctx context.Context, companyID string, image []byte) ([]ImageMatch, error) {
	vec, err := s.embedder.EmbedImage(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("embedding image: %w", err)
	}
	hits, err := s.index.QueryEmbedding(ctx, vectordb.ImageCollection(companyID), vec, s.k, nil)
	if err != nil {
		return nil, fmt.Errorf("searching images: %w", err)
	}
	out := make([]ImageMatch, 0, len(hits))
	for _, h := range hits {
		field := h.Document.Metadata[MetaMatchField]
		if field == "" {
			field = s.matchField
		}
		out = append(out, ImageMatch{
			ID:         h.Document.ID,
			Field:      field,
			Value:      h.Document.Metadata[MetaMatchValue],
			FullPath:   h.Document.Metadata[vectordb.MetaFullPath],
			Similarity: h.Similarity,
		})
	}
	return out, nil
}

// generateWithImages grounds the reply on the catalog items behind the
// matched images. No tools are offered.
func (g *Generator) generateWithImages(ctx context.Context, req Request, log *logrus.Entry) (*Reply, error) {
	var info []string
	var sets []attachments.Set

	for _, m := range req.ImageMatches {
		if g.lookup == nil || m.Value == "" {
			continue
		}
		items, err := g.lookup.Lookup(ctx, req.CompanyID, m.Field, m.Value)
		if err != nil {
			log.WithError(err).WithField("match", m.Value).Warn("looking up matched item")
			continue
		}
		if len(items) == 0 {
			continue
		}
		item := attachments.Set{Images: []string{m.FullPath}}
		if g.files != nil {
			linked, err := g.files.Lookup(ctx, req.CompanyID, []string{m.Value})
			if err != nil {
				log.WithError(err).WithField("match", m.Value).Warn("looking up linked documents")
			} else {
				item.Documents = linked.Documents
			}
		}
		sets = append(sets, item)
		for _, it := range items {
			info = append(info, it.Content)
		}
	}

	query := req.Query
	if len(info) > 0 {
		query += "\n\nSimilar Products Info:\n- " + strings.Join(info, "\n- ")
	}
	messages := buildMessages(req.SystemPrompt, req.History, req.Query)
	messages[len(messages)-1].Content = query

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Model:       g.opts.Model,
		Messages:    messages,
		Temperature: g.opts.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generating image reply: %w", err)
	}
	return &Reply{Text: resp.Content, Attachments: attachments.Union(sets...)}, nil
}
