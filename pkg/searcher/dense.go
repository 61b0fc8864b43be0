package searcher

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/clausecheck/internal/embed"
	"github.com/Aman-CERP/clausecheck/internal/search"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

// DenseSearcher embeds the query and searches one vector store per field.
// Distances are reported as similarity 1/(1+distance).
type DenseSearcher struct {
	embedder embed.Embedder
	stores   map[store.Field]store.VectorStore
	guard    *guard
}

var _ search.DenseLookup = (*DenseSearcher)(nil)

// NewDenseSearcher creates a dense searcher. The embedder must be the one
// the vector stores were built with.
func NewDenseSearcher(embedder embed.Embedder, stores map[store.Field]store.VectorStore, opts ...Option) (*DenseSearcher, error) {
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	live := make(map[store.Field]store.VectorStore, len(stores))
	for f, vs := range stores {
		if vs != nil {
			live[f] = vs
		}
	}
	if len(live) == 0 {
		return nil, ErrNilVectorStore
	}
	return &DenseSearcher{embedder: embedder, stores: live, guard: newGuard(opts)}, nil
}

// Dense implements search.DenseLookup.
func (s *DenseSearcher) Dense(ctx context.Context, field store.Field, query string, k int) ([]search.Hit, error) {
	vs, ok := s.stores[field]
	if !ok || k <= 0 {
		return []search.Hit{}, nil
	}

	results, err := guarded(ctx, s.guard, func() ([]*store.VectorResult, error) {
		// Every sub-item of an article repeats the title query; a
		// CachedEmbedder makes the repeat free.
		embedding, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embedding query failed: %w", err)
		}
		return vs.Search(ctx, embedding, k)
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	hits := make([]search.Hit, len(results))
	for i, r := range results {
		hits[i] = search.Hit{UnitID: r.ID, Score: search.SimilarityFromDistance(float64(r.Distance))}
	}
	return hits, nil
}
