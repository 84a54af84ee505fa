package retrieval

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// SessionStore caches the candidate set selected for each conversation so a
// clarification dialogue keeps working on the same pool. A cached empty set
// is a valid entry, distinct from a missing one.
type SessionStore interface {
	// Get returns the cached set and whether an entry exists.
	Get(ctx context.Context, conversationID string) ([]Candidate, bool, error)
	Set(ctx context.Context, conversationID string, candidates []Candidate) error
	Invalidate(ctx context.Context, conversationID string) error
}

// MemorySessionStore keeps sessions in process memory until invalidated.
// The underlying cache is safe for concurrent use; entries are copied in
// and out so callers never share a slice.
type MemorySessionStore struct {
	cache *cache.Cache
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{cache: cache.New(cache.NoExpiration, 0)}
}

func (s *MemorySessionStore) Get(_ context.Context, conversationID string) ([]Candidate, bool, error) {
	v, ok := s.cache.Get(conversationID)
	if !ok {
		return nil, false, nil
	}
	cached := v.([]Candidate)
	return append([]Candidate(nil), cached...), true, nil
}

func (s *MemorySessionStore) Set(_ context.Context, conversationID string, candidates []Candidate) error {
	s.cache.Set(conversationID, append([]Candidate{}, candidates...), cache.NoExpiration)
	return nil
}

func (s *MemorySessionStore) Invalidate(_ context.Context, conversationID string) error {
	s.cache.Delete(conversationID)
	return nil
}
