package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aman-CERP/clausecheck/internal/search"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

// errNoUserEmbeddings means the user document has nothing to search.
var errNoUserEmbeddings = errors.New("user document has no embeddings")

// userIndex is the per-call vector index over one user document.
type userIndex struct {
	vectors *store.HNSWStore
	units   map[string]*store.Unit
}

// buildUserIndex loads the user units' embeddings into a fresh in-memory
// HNSW graph. Units without an embedding are left out; a document with
// none, or with mixed dimensions, cannot be indexed.
func (r *Reconciler) buildUserIndex(ctx context.Context, units []*store.Unit) (*userIndex, error) {
	if len(units) == 0 {
		return nil, errNoUserEmbeddings
	}

	byID := make(map[string]*store.Unit, len(units))
	ids := make([]string, 0, len(units))
	for _, u := range units {
		if u == nil {
			continue
		}
		byID[u.ID] = u
		ids = append(ids, u.ID)
	}

	embeddings, err := r.user.Embeddings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load user embeddings: %w", err)
	}

	addIDs := make([]string, 0, len(embeddings))
	vecs := make([][]float32, 0, len(embeddings))
	for _, id := range ids {
		vec, ok := embeddings[id]
		if !ok || len(vec) == 0 {
			continue
		}
		addIDs = append(addIDs, id)
		vecs = append(vecs, vec)
	}
	if len(addIDs) == 0 {
		return nil, errNoUserEmbeddings
	}

	vs, err := store.NewHNSWStore(store.VectorStoreConfig{
		Dimensions: len(vecs[0]),
		Metric:     r.cfg.Metric,
		M:          r.cfg.M,
		EfSearch:   r.cfg.EfSearch,
	})
	if err != nil {
		return nil, err
	}
	if err := vs.Add(ctx, addIDs, vecs); err != nil {
		_ = vs.Close()
		return nil, err
	}

	return &userIndex{vectors: vs, units: byID}, nil
}

// search returns the user parents nearest to vec, best first, scored by
// 1/(1+distance).
func (idx *userIndex) search(ctx context.Context, vec []float32, k int) ([]*search.ParentCandidate, error) {
	hits, err := idx.vectors.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}

	scored := make([]*search.ScoredUnit, 0, len(hits))
	for _, h := range hits {
		u, ok := idx.units[h.ID]
		if !ok {
			continue
		}
		sim := search.SimilarityFromDistance(float64(h.Distance))
		scored = append(scored, &search.ScoredUnit{
			Unit:          u,
			DenseScore:    sim,
			CombinedScore: sim,
		})
	}
	return search.AggregateToParents(scored), nil
}

func (idx *userIndex) close() {
	_ = idx.vectors.Close()
}
