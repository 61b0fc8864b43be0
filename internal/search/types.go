// Package search implements the hybrid clause retrieval engine: dense and
// sparse score fusion over the title and body fields, unit-to-parent
// aggregation, and the per-sub-item article matcher with cross-sub-item
// voting.
package search

import (
	"context"

	"github.com/Aman-CERP/clausecheck/internal/store"
)

// Hit is one raw lookup result. For dense lookups Score is a similarity in
// (0,1]; for sparse lookups it is the backend's lexical ranking score.
type Hit struct {
	UnitID string
	Score  float64
}

// DenseLookup runs an embedding-similarity lookup against one field.
type DenseLookup interface {
	Dense(ctx context.Context, field store.Field, query string, k int) ([]Hit, error)
}

// SparseLookup runs a lexical lookup against one field.
type SparseLookup interface {
	Sparse(ctx context.Context, field store.Field, query string, k int) ([]Hit, error)
}

// UnitStore resolves unit IDs to units. Missing IDs are skipped.
type UnitStore interface {
	GetUnits(ctx context.Context, ids []string) ([]*store.Unit, error)
}

// ScoredUnit is a unit scored against one query. DenseScore and SparseScore
// are normalized to [0,1] within the query.
type ScoredUnit struct {
	Unit          *store.Unit
	DenseScore    float64
	SparseScore   float64
	CombinedScore float64
}

// ParentCandidate is the best unit of one parent section for one query.
type ParentCandidate struct {
	ParentID string
	Title    string
	Score    float64
	Unit     *store.Unit
}

// SubItemResult holds the top parents for one sub-item of an article.
type SubItemResult struct {
	Index          int
	NormalizedText string
	Candidates     []*ParentCandidate
}

// ArticleMatch is a parent section voted for by one or more sub-items.
// AverageScore is the mean over the sub-items that matched the parent only.
type ArticleMatch struct {
	ParentID        string    `json:"parent_id"`
	Title           string    `json:"title"`
	Direction       Direction `json:"direction"`
	MatchedSubItems []int     `json:"matched_sub_items"`
	Scores          []float64 `json:"scores"`
	AverageScore    float64   `json:"average_score"`
	MaxScore        float64   `json:"max_score"`
	MinScore        float64   `json:"min_score"`
}

// NumSubItems returns how many sub-items voted for the parent.
func (m *ArticleMatch) NumSubItems() int {
	return len(m.MatchedSubItems)
}

// Query is one fusion query: a body text and the shorter title text.
type Query struct {
	Body  string
	Title string
}

// FusionResult is the ranked output of one fusion query. Degraded lists the
// lookups that failed or timed out and were treated as empty.
type FusionResult struct {
	Units    []*ScoredUnit
	Degraded []error
}

// ArticleQuery is a multi-paragraph article to match: its title and its
// sub-items in document order.
type ArticleQuery struct {
	Title    string
	SubItems []string
}

// ArticleResult is the output of MatchArticle.
type ArticleResult struct {
	Matches  []*ArticleMatch
	SubItems []*SubItemResult

	// Skipped holds indices of sub-items that were empty after enumerator
	// stripping.
	Skipped []int

	// Warnings collects recovered problems: degraded lookups and skipped
	// sub-items.
	Warnings []error
}
