// Package searcher adapts the persisted indices to the lookup contracts of
// the matching engine.
//
//   - [SparseSearcher]: per-field BM25 lookups (SQLite FTS5 or Bleve)
//   - [DenseSearcher]: per-field HNSW lookups over query embeddings
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                     search.Fuser                             │
//	│  ┌───────────────────────┐      ┌───────────────────────┐   │
//	│  │    SparseSearcher     │      │     DenseSearcher     │   │
//	│  │ field → BM25Index     │      │ embed.Embedder        │   │
//	│  │                       │      │ field → VectorStore   │   │
//	│  └───────────┬───────────┘      └───────────┬───────────┘   │
//	│              └──── guard: rate limit + circuit breaker ──┘   │
//	└──────────────────────────────────────────────────────────────┘
//
// Each searcher may be wrapped with a circuit breaker, so a dead backend
// fails fast instead of costing a timeout per query, and with a token
// bucket limiter for backends that must not be flooded.
//
// # Usage
//
//	sparse, _ := searcher.NewSparseSearcher(map[store.Field]store.BM25Index{
//	    store.FieldBody:  bodyIndex,
//	    store.FieldTitle: titleIndex,
//	}, searcher.WithCircuitBreaker(cerrors.NewCircuitBreaker("sparse")))
//	dense, _ := searcher.NewDenseSearcher(embedder, vectorStores,
//	    searcher.WithRateLimit(50, 10))
//	matcher, _ := search.NewMatcher(dense, sparse, units, search.DefaultMatchConfig())
//
// # Thread Safety
//
// Both searchers are safe for concurrent use.
package searcher
