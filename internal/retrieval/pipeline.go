// Package retrieval finds catalog items for a customer query, diversifies
// them and detects when a narrowing question should be asked first.
package retrieval

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/embeddings"
	"github.com/ziadkadry99/auto-reply/internal/logging"
	"github.com/ziadkadry99/auto-reply/internal/metrics"
	"github.com/ziadkadry99/auto-reply/internal/vectordb"
)

// LinkedFiles resolves the images and documents linked to catalog items.
type LinkedFiles interface {
	Lookup(ctx context.Context, companyID string, productIDs []string) (attachments.Set, error)
}

// Options tune the pipeline.
type Options struct {
	FetchLimit       int
	TopK             int
	Lambda           float64
	ClarifyThreshold int
}

// DefaultOptions mirror the config defaults.
func DefaultOptions() Options {
	return Options{FetchLimit: 100, TopK: 5, Lambda: 0.7, ClarifyThreshold: 3}
}

// Request is one retrieval call.
type Request struct {
	Query          string
	CompanyID      string
	ConversationID string
	// NewSearch discards the conversation's cached candidates.
	NewSearch bool
	// Filter restricts the vector search to matching metadata.
	Filter map[string]string
}

// Result is the outcome of a retrieval call.
type Result struct {
	Candidates []Candidate
	// ClarifyingFeatures is non-nil when the candidates differ on more
	// keys than the clarify threshold.
	ClarifyingFeatures map[string][]string
	Attachments        attachments.Set
}

// Pipeline runs embed -> search -> MMR -> feature analysis.
type Pipeline struct {
	embedder embeddings.Embedder
	index    vectordb.Index
	sessions SessionStore
	files    LinkedFiles
	ranker   *FeatureRanker
	opts     Options
	metrics  metrics.Metrics
}

// NewPipeline wires the pipeline. files and ranker may be nil; without a
// ranker the raw differing features are returned.
func NewPipeline(embedder embeddings.Embedder, index vectordb.Index, sessions SessionStore, files LinkedFiles, ranker *FeatureRanker, opts Options, m metrics.Metrics) *Pipeline {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Pipeline{
		embedder: embedder,
		index:    index,
		sessions: sessions,
		files:    files,
		ranker:   ranker,
		opts:     opts,
		metrics:  m,
	}
}

// Retrieve returns the candidate set for the conversation, searching the
// index when asked to or when nothing is cached yet. Embedding and index
// errors are returned without touching the cache.
func (p *Pipeline) Retrieve(ctx context.Context, req Request) (*Result, error) {
	log := logging.WithConversation(req.CompanyID, req.ConversationID).WithField("component", "retrieval")

	var candidates []Candidate
	cached := false
	if !req.NewSearch {
		var err error
		candidates, cached, err = p.sessions.Get(ctx, req.ConversationID)
		if err != nil {
			log.WithError(err).Warn("reading retrieval session, searching again")
			cached = false
		}
	}

	if !cached {
		var err error
		candidates, err = p.search(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := p.sessions.Set(ctx, req.ConversationID, candidates); err != nil {
			log.WithError(err).Warn("caching retrieval session")
		}
	}

	result := &Result{Candidates: candidates}
	if len(candidates) == 0 {
		return result, nil
	}

	result.ClarifyingFeatures = p.clarify(ctx, log, req.Query, candidates)
	if result.ClarifyingFeatures != nil {
		p.metrics.IncClarification()
	}
	result.Attachments = p.linked(ctx, log, req.CompanyID, candidates)
	return result, nil
}

func (p *Pipeline) search(ctx context.Context, req Request) ([]Candidate, error) {
	query, err := embeddings.EmbedOne(ctx, p.embedder, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := p.index.QueryEmbedding(ctx, vectordb.TextCollection(req.CompanyID), query, p.opts.FetchLimit, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	if len(hits) == 0 {
		return []Candidate{}, nil
	}

	docs := make([][]float32, len(hits))
	for i, h := range hits {
		docs[i] = h.Document.Embedding
	}
	selected := MMR(query, docs, p.opts.Lambda, p.opts.TopK)

	candidates := make([]Candidate, 0, len(selected))
	for _, i := range selected {
		candidates = append(candidates, candidateFrom(hits[i]))
	}
	return candidates, nil
}

func (p *Pipeline) clarify(ctx context.Context, log *logrus.Entry, query string, candidates []Candidate) map[string][]string {
	maps := make([]map[string]string, len(candidates))
	for i, c := range candidates {
		maps[i] = c.Features
		if maps[i] == nil {
			maps[i] = ParseFeatures(c.Content)
		}
	}
	diff := DifferingFeatures(maps)
	if len(diff) <= p.opts.ClarifyThreshold {
		return nil
	}

	if p.ranker != nil {
		ranked, err := p.ranker.Rank(ctx, query, diff)
		if err == nil {
			return ranked
		}
		log.WithError(err).Warn("ranking clarifying features, using raw differences")
	}
	return truncateFeatures(diff, maxClarifyingKeys)
}

func (p *Pipeline) linked(ctx context.Context, log *logrus.Entry, companyID string, candidates []Candidate) attachments.Set {
	if p.files == nil {
		return attachments.Set{}
	}
	seenText := make(map[string]bool)
	var keys []string
	for _, c := range candidates {
		if c.PrimaryKey == "" || seenText[c.Content] {
			continue
		}
		seenText[c.Content] = true
		keys = append(keys, c.PrimaryKey)
	}
	set, err := p.files.Lookup(ctx, companyID, keys)
	if err != nil {
		log.WithError(err).Warn("looking up linked files")
		return attachments.Set{}
	}
	return set
}

// Lookup returns catalog items whose metadata field equals value, used to
// ground image matches. The query text only orders the matches.
func (p *Pipeline) Lookup(ctx context.Context, companyID, field, value string) ([]Candidate, error) {
	vec, err := embeddings.EmbedOne(ctx, p.embedder, field+": "+value)
	if err != nil {
		return nil, fmt.Errorf("embedding lookup key: %w", err)
	}
	hits, err := p.index.QueryEmbedding(ctx, vectordb.TextCollection(companyID), vec, p.opts.FetchLimit, map[string]string{field: value})
	if err != nil {
		return nil, fmt.Errorf("looking up %s=%s: %w", field, value, err)
	}
	out := make([]Candidate, len(hits))
	for i, h := range hits {
		out[i] = candidateFrom(h)
	}
	return out, nil
}
