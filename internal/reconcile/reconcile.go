// Package reconcile re-checks reference sections that forward matching left
// unmatched. It searches a temporary vector index over the user document
// with the reference units' stored embeddings and proposes ranked candidate
// sections; deciding whether a section is really missing is left to the
// caller.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/search"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

// Defaults for Config.
const (
	DefaultWorkers        = 4
	DefaultMaxCandidates  = 3
	DefaultPerUnitTopK    = 3
	DefaultSearchTopK     = 50
	DefaultVectorMetric   = "l2"
	DefaultEmbeddingField = store.FieldBody
)

// EmbeddingSource returns precomputed embeddings. Units without an
// embedding are absent from the map.
type EmbeddingSource interface {
	Embeddings(ctx context.Context, unitIDs []string) (map[string][]float32, error)
}

// StoreEmbeddings serves embeddings of one field from a unit store.
type StoreEmbeddings struct {
	Store store.UnitStore
	Field store.Field
}

// Embeddings implements EmbeddingSource.
func (s StoreEmbeddings) Embeddings(ctx context.Context, unitIDs []string) (map[string][]float32, error) {
	field := s.Field
	if field == "" {
		field = DefaultEmbeddingField
	}
	return s.Store.GetEmbeddings(ctx, field, unitIDs)
}

// Config configures a Reconciler.
type Config struct {
	// Workers bounds how many reference parents are searched at once.
	Workers int
	// MaxCandidates caps the user sections proposed per reference parent.
	MaxCandidates int
	// PerUnitTopK caps the user sections kept per reference unit before
	// cross-unit aggregation.
	PerUnitTopK int
	// SearchTopK is the raw hit pool per reference unit.
	SearchTopK int

	// Temporary index settings.
	Metric   string
	M        int
	EfSearch int
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Workers:       DefaultWorkers,
		MaxCandidates: DefaultMaxCandidates,
		PerUnitTopK:   DefaultPerUnitTopK,
		SearchTopK:    DefaultSearchTopK,
		Metric:        DefaultVectorMetric,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	for name, v := range map[string]int{
		"workers":        c.Workers,
		"max_candidates": c.MaxCandidates,
		"per_unit_top_k": c.PerUnitTopK,
		"search_top_k":   c.SearchTopK,
	} {
		if v < 0 {
			return cerrors.New(cerrors.ErrCodeTopKInvalid,
				fmt.Sprintf("reconcile.%s must be non-negative, got %d", name, v), nil)
		}
	}
	return nil
}

// Parent is a section together with its units. Reconcile takes the
// reference sections the forward pass left unmatched.
type Parent struct {
	ParentID string
	Title    string
	Units    []*store.Unit
}

// Match is one proposed user-document section.
type Match struct {
	ParentID string `json:"parent_id"`
	Title    string `json:"title"`

	// Similarity is the average over the reference units that hit this
	// section of their best 1/(1+distance) similarity.
	Similarity float64 `json:"similarity"`
	MaxScore   float64 `json:"max_score"`

	// MatchedUnits are the positions, in OrderIndex order, of the reference
	// units that hit this section.
	MatchedUnits []int `json:"matched_units"`
}

// Candidate is the reconciliation result for one reference parent.
type Candidate struct {
	ParentID string
	Title    string
	State    State

	// Similarity is the best match's similarity, 0 without matches.
	Similarity float64
	Matches    []Match
}

func newCandidate(p Parent) *Candidate {
	return &Candidate{ParentID: p.ParentID, Title: p.Title, State: StatePending, Matches: []Match{}}
}

// Best returns the top match, or false when there is none.
func (c *Candidate) Best() (Match, bool) {
	if len(c.Matches) == 0 {
		return Match{}, false
	}
	return c.Matches[0], true
}

// Reconciler proposes user-document sections for unmatched reference
// parents. It holds no per-run state; each Reconcile call owns its
// temporary index.
type Reconciler struct {
	reference EmbeddingSource
	user      EmbeddingSource
	cfg       Config
}

// New creates a reconciler. reference serves embeddings of the reference
// units used as queries; user serves embeddings of the user document. They
// may be the same source.
func New(reference, user EmbeddingSource, cfg Config) (*Reconciler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.SearchTopK == 0 {
		cfg.SearchTopK = DefaultSearchTopK
	}
	if cfg.Metric == "" {
		cfg.Metric = DefaultVectorMetric
	}
	return &Reconciler{reference: reference, user: user, cfg: cfg}, nil
}

// Reconcile searches the user document for each parent and returns one
// candidate per parent, in input order. Failures to build the temporary
// index degrade every parent to NoCandidates; only a cancelled context is
// returned as an error.
func (r *Reconciler) Reconcile(ctx context.Context, parents []Parent, userUnits []*store.Unit) ([]*Candidate, error) {
	start := time.Now()
	candidates := make([]*Candidate, len(parents))
	for i, p := range parents {
		candidates[i] = newCandidate(p)
	}
	if len(parents) == 0 {
		return candidates, nil
	}

	idx, err := r.buildUserIndex(ctx, userUnits)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		buildErr := cerrors.New(cerrors.ErrCodeIndexBuildFailed, "temporary user index unavailable", err)
		slog.Warn("reconcile_index_unavailable",
			append(cerrors.LogAttrs(buildErr), slog.Int("parents", len(parents)))...)
		for _, c := range candidates {
			c.noCandidates()
		}
		return candidates, nil
	}
	defer idx.close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, p := range parents {
		g.Go(func() error {
			return r.reconcileParent(gctx, idx, p, candidates[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("reconcile_complete",
		slog.Int("parents", len(parents)),
		slog.Int("user_units", len(userUnits)),
		slog.Int("with_candidates", countState(candidates, StateHasCandidates)),
		slog.Duration("duration", time.Since(start)))

	return candidates, nil
}

func (r *Reconciler) reconcileParent(ctx context.Context, idx *userIndex, p Parent, c *Candidate) error {
	if err := c.transition(StateSearching); err != nil {
		return err
	}

	units := make([]*store.Unit, 0, len(p.Units))
	ids := make([]string, 0, len(p.Units))
	for _, u := range p.Units {
		if u != nil {
			units = append(units, u)
			ids = append(ids, u.ID)
		}
	}
	sort.SliceStable(units, func(i, j int) bool { return units[i].OrderIndex < units[j].OrderIndex })

	vectors, err := r.reference.Embeddings(ctx, ids)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("reconcile_reference_embeddings_failed",
			slog.String("parent_id", p.ParentID),
			slog.String("error", err.Error()))
		c.noCandidates()
		return nil
	}

	subResults := make([]*search.SubItemResult, 0, len(units))
	warned := false
	for pos, u := range units {
		vec, ok := vectors[u.ID]
		if !ok {
			continue
		}
		parents, err := idx.search(ctx, vec, r.cfg.SearchTopK)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if warned {
				slog.Debug("reconcile_unit_search_failed",
					slog.String("unit_id", u.ID),
					slog.String("error", err.Error()))
				continue
			}
			// Once per parent; a model mismatch fails every unit the same way.
			warned = true
			slog.Warn("reconcile_unit_search_failed",
				append(cerrors.LogAttrs(searchError(err)),
					slog.String("parent_id", p.ParentID),
					slog.String("unit_id", u.ID))...)
			continue
		}
		if r.cfg.PerUnitTopK > 0 && len(parents) > r.cfg.PerUnitTopK {
			parents = parents[:r.cfg.PerUnitTopK]
		}
		subResults = append(subResults, &search.SubItemResult{
			Index:          pos,
			NormalizedText: u.BodyNormalized,
			Candidates:     parents,
		})
	}

	articles := search.AggregateArticles(search.DirectionReverse, subResults, search.ArticleOptions{
		TopK: r.cfg.MaxCandidates,
	})
	if len(articles) == 0 {
		c.noCandidates()
		return nil
	}

	for _, a := range articles {
		c.Matches = append(c.Matches, Match{
			ParentID:     a.ParentID,
			Title:        a.Title,
			Similarity:   a.AverageScore,
			MaxScore:     a.MaxScore,
			MatchedUnits: a.MatchedSubItems,
		})
	}
	// Similarity order for the caller; vote count already shaped the selection.
	sort.SliceStable(c.Matches, func(i, j int) bool { return c.Matches[i].Similarity > c.Matches[j].Similarity })
	c.Similarity = c.Matches[0].Similarity
	return c.transition(StateHasCandidates)
}

// searchError codes a temporary-index search failure.
func searchError(err error) error {
	var dim store.ErrDimensionMismatch
	if errors.As(err, &dim) {
		return cerrors.New(cerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("reference embeddings have %d dimensions, user embeddings %d", dim.Got, dim.Expected), err)
	}
	return cerrors.New(cerrors.ErrCodeBackendUnavailable, "temporary user index search failed", err)
}

func countState(cs []*Candidate, s State) int {
	n := 0
	for _, c := range cs {
		if c.State == s {
			n++
		}
	}
	return n
}
