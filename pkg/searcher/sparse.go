package searcher

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/clausecheck/internal/search"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

// SparseSearcher serves lexical lookups from one BM25 index per field.
// Fields without an index return no hits.
type SparseSearcher struct {
	indices map[store.Field]store.BM25Index
	guard   *guard
}

var _ search.SparseLookup = (*SparseSearcher)(nil)

// NewSparseSearcher creates a sparse searcher over per-field indices.
func NewSparseSearcher(indices map[store.Field]store.BM25Index, opts ...Option) (*SparseSearcher, error) {
	live := make(map[store.Field]store.BM25Index, len(indices))
	for f, idx := range indices {
		if idx != nil {
			live[f] = idx
		}
	}
	if len(live) == 0 {
		return nil, ErrNilBM25Store
	}
	return &SparseSearcher{indices: live, guard: newGuard(opts)}, nil
}

// Sparse implements search.SparseLookup. Scores are the backend's BM25
// scores, higher is better.
func (s *SparseSearcher) Sparse(ctx context.Context, field store.Field, query string, k int) ([]search.Hit, error) {
	idx, ok := s.indices[field]
	if !ok || k <= 0 {
		return []search.Hit{}, nil
	}

	results, err := guarded(ctx, s.guard, func() ([]*store.BM25Result, error) {
		return idx.Search(ctx, query, k)
	})
	if err != nil {
		return nil, fmt.Errorf("BM25 search failed: %w", err)
	}

	hits := make([]search.Hit, len(results))
	for i, r := range results {
		hits[i] = search.Hit{UnitID: r.DocID, Score: r.Score}
	}
	return hits, nil
}
