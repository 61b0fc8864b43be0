package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

// FieldHits holds one retrieval mode's hits for the body and title fields.
type FieldHits struct {
	Body  []Hit
	Title []Hit
}

// Empty reports whether neither field returned anything.
func (h FieldHits) Empty() bool {
	return len(h.Body) == 0 && len(h.Title) == 0
}

// UnitScore is the fused score of one unit before the unit is resolved.
type UnitScore struct {
	UnitID   string
	Dense    float64 // normalized
	Sparse   float64 // normalized
	Combined float64
}

// FuseScores combines dense and sparse hits into one ranked list.
//
// Per mode, field scores are fused as text_weight*body + title_weight*title
// (a missing field contributes 0) and min-max normalized across the units
// seen. The modes are then combined with the configured weights, or with
// (1,0) / (0,1) when the other mode returned nothing. Results are sorted by
// combined score descending, then unit ID ascending.
func FuseScores(dense, sparse FieldHits, cfg MatchConfig) []UnitScore {
	// Return empty slice, not nil, for consistent API behavior
	if dense.Empty() && sparse.Empty() {
		return []UnitScore{}
	}

	denseNorm := minMaxNormalize(fieldFuse(dense, cfg.TextWeight, cfg.TitleWeight))
	sparseNorm := minMaxNormalize(fieldFuse(sparse, cfg.TextWeight, cfg.TitleWeight))
	wd, ws := EffectiveWeights(len(denseNorm) == 0, len(sparseNorm) == 0, cfg)

	scores := make(map[string]*UnitScore, len(denseNorm)+len(sparseNorm))
	for id, v := range denseNorm {
		getOrCreate(scores, id).Dense = v
	}
	for id, v := range sparseNorm {
		getOrCreate(scores, id).Sparse = v
	}

	results := make([]UnitScore, 0, len(scores))
	for _, s := range scores {
		s.Combined = wd*s.Dense + ws*s.Sparse
		results = append(results, *s)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Combined != results[j].Combined {
			return results[i].Combined > results[j].Combined
		}
		return results[i].UnitID < results[j].UnitID
	})

	return results
}

func getOrCreate(m map[string]*UnitScore, id string) *UnitScore {
	if s, ok := m[id]; ok {
		return s
	}
	s := &UnitScore{UnitID: id}
	m[id] = s
	return s
}

// EffectiveWeights returns the dense and sparse weights for one query.
// When one mode is empty the other gets the full weight, so a failed mode
// does not cap the attainable score.
func EffectiveWeights(denseEmpty, sparseEmpty bool, cfg MatchConfig) (float64, float64) {
	switch {
	case sparseEmpty:
		return 1.0, 0.0
	case denseEmpty:
		return 0.0, 1.0
	default:
		return cfg.DenseWeight, cfg.SparseWeight
	}
}

// fieldFuse merges body and title hits into one score per unit. Duplicate
// hits within a field keep the highest score.
func fieldFuse(h FieldHits, textWeight, titleWeight float64) map[string]float64 {
	body := bestPerUnit(h.Body)
	title := bestPerUnit(h.Title)

	fused := make(map[string]float64, len(body)+len(title))
	for id, s := range body {
		fused[id] += textWeight * s
	}
	for id, s := range title {
		fused[id] += titleWeight * s
	}
	return fused
}

func bestPerUnit(hits []Hit) map[string]float64 {
	best := make(map[string]float64, len(hits))
	for _, h := range hits {
		if cur, ok := best[h.UnitID]; !ok || h.Score > cur {
			best[h.UnitID] = h.Score
		}
	}
	return best
}

// minMaxNormalize scales scores to [0,1]. A set with a single distinct
// value normalizes every member to 1.0.
func minMaxNormalize(scores map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	first := true
	var lo, hi float64
	for _, v := range scores {
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}

	spread := hi - lo
	for id, v := range scores {
		if spread == 0 {
			out[id] = 1.0
			continue
		}
		out[id] = (v - lo) / spread
	}
	return out
}

// SimilarityFromDistance converts a vector distance to a similarity in (0,1].
func SimilarityFromDistance(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1.0 / (1.0 + distance)
}

// Fuser runs the four lookups of one query and fuses their scores.
// It is safe for concurrent use; the lookups it wraps are read-only.
type Fuser struct {
	dense  DenseLookup
	sparse SparseLookup
	units  UnitStore
	cfg    MatchConfig
}

// NewFuser creates a fuser. Either lookup may be nil, in which case that
// mode contributes nothing.
func NewFuser(dense DenseLookup, sparse SparseLookup, units UnitStore, cfg MatchConfig) (*Fuser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if units == nil {
		return nil, cerrors.InternalError("fuser requires a unit store", nil)
	}
	return &Fuser{dense: dense, sparse: sparse, units: units, cfg: cfg}, nil
}

// Config returns the fuser's configuration.
func (f *Fuser) Config() MatchConfig {
	return f.cfg
}

// lookupFunc is the common shape of dense and sparse lookups.
type lookupFunc func(ctx context.Context, field store.Field, query string, k int) ([]Hit, error)

// Fuse runs dense and sparse lookups for both fields concurrently and
// returns the fused ranking. Lookup failures and timeouts are recovered as
// empty sets and reported in Degraded; Fuse itself never fails.
func (f *Fuser) Fuse(ctx context.Context, q Query) *FusionResult {
	var dense, sparse FieldHits
	var mu sync.Mutex
	degraded := []error{}

	var denseFn, sparseFn lookupFunc
	if f.dense != nil {
		denseFn = f.dense.Dense
	}
	if f.sparse != nil {
		sparseFn = f.sparse.Sparse
	}

	calls := []struct {
		mode  string
		fn    lookupFunc
		field store.Field
		query string
		k     int
		dst   *[]Hit
	}{
		{"dense", denseFn, store.FieldBody, q.Body, f.cfg.DenseTopK, &dense.Body},
		{"dense", denseFn, store.FieldTitle, q.Title, f.cfg.DenseTopK, &dense.Title},
		{"sparse", sparseFn, store.FieldBody, q.Body, f.cfg.SparseTopK, &sparse.Body},
		{"sparse", sparseFn, store.FieldTitle, q.Title, f.cfg.SparseTopK, &sparse.Title},
	}

	var g errgroup.Group
	for _, c := range calls {
		if c.fn == nil || c.query == "" || c.k <= 0 {
			continue
		}
		g.Go(func() error {
			hits, err := f.lookup(ctx, c.fn, c.field, c.query, c.k)
			if err != nil {
				lookupErr := cerrors.BackendError(fmt.Sprintf("%s %s lookup failed", c.mode, c.field), err).
					WithDetail("mode", c.mode).
					WithDetail("field", string(c.field))
				slog.Warn("lookup_degraded", cerrors.LogAttrs(lookupErr)...)

				mu.Lock()
				degraded = append(degraded, lookupErr)
				mu.Unlock()
				return nil // degrade, don't fail the query
			}
			*c.dst = hits
			return nil
		})
	}
	_ = g.Wait()

	// Goroutine completion order must not leak into the warnings.
	sort.Slice(degraded, func(i, j int) bool { return degraded[i].Error() < degraded[j].Error() })

	scores := FuseScores(dense, sparse, f.cfg)
	units, err := f.hydrate(ctx, scores)
	if err != nil {
		storeErr := cerrors.New(cerrors.ErrCodeStoreFailed, "failed to resolve fused units", err)
		slog.Warn("fusion_units_unresolved", cerrors.LogAttrs(storeErr)...)
		degraded = append(degraded, storeErr)
		units = []*ScoredUnit{}
	}

	return &FusionResult{Units: units, Degraded: degraded}
}

func (f *Fuser) lookup(ctx context.Context, fn lookupFunc, field store.Field, query string, k int) ([]Hit, error) {
	if f.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.LookupTimeout)
		defer cancel()
	}

	type result struct {
		hits []Hit
		err  error
	}
	done := make(chan result, 1)
	go func() {
		hits, err := fn(ctx, field, query, k)
		done <- result{hits, err}
	}()

	// A backend that ignores its context still cannot hold the query past
	// the deadline.
	select {
	case r := <-done:
		if r.err == nil && len(r.hits) > k {
			r.hits = r.hits[:k]
		}
		return r.hits, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// hydrate resolves fused scores to units, keeping the fused order. Scores
// whose unit is unknown to the store are dropped.
func (f *Fuser) hydrate(ctx context.Context, scores []UnitScore) ([]*ScoredUnit, error) {
	if len(scores) == 0 {
		return []*ScoredUnit{}, nil
	}

	ids := make([]string, len(scores))
	for i, s := range scores {
		ids[i] = s.UnitID
	}
	units, err := f.units.GetUnits(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*store.Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}

	out := make([]*ScoredUnit, 0, len(scores))
	for _, s := range scores {
		u, ok := byID[s.UnitID]
		if !ok {
			slog.Debug("fusion_unit_missing", slog.String("unit_id", s.UnitID))
			continue
		}
		out = append(out, &ScoredUnit{
			Unit:          u,
			DenseScore:    s.Dense,
			SparseScore:   s.Sparse,
			CombinedScore: s.Combined,
		})
	}
	return out, nil
}
