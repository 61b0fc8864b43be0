package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
)

// Matcher matches multi-paragraph articles against one indexed collection.
//
// Each sub-item is queried on its own (sub-item text as body query, article
// title as title query), collapsed to its best parents, and the per-sub-item
// candidates are rolled up with AggregateArticles. A parent echoed by more
// sub-items ranks above one with a single high score.
type Matcher struct {
	fuser *Fuser
	cfg   MatchConfig
}

// NewMatcher creates a matcher. Configuration errors are returned here,
// before any lookup can be issued.
func NewMatcher(dense DenseLookup, sparse SparseLookup, units UnitStore, cfg MatchConfig) (*Matcher, error) {
	fuser, err := NewFuser(dense, sparse, units, cfg)
	if err != nil {
		return nil, err
	}
	return &Matcher{fuser: fuser, cfg: cfg}, nil
}

// Config returns the matcher's configuration.
func (m *Matcher) Config() MatchConfig {
	return m.cfg
}

// MatchArticle ranks candidate parents for an article in the forward
// direction. Zero matches is a valid outcome. The returned error is non-nil
// only for invalid configuration or a cancelled context.
func (m *Matcher) MatchArticle(ctx context.Context, q ArticleQuery) (*ArticleResult, error) {
	if err := m.cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &ArticleResult{
		Matches:  []*ArticleMatch{},
		SubItems: []*SubItemResult{},
		Skipped:  []int{},
		Warnings: []error{},
	}

	type pending struct {
		index int
		text  string
	}
	var queries []pending
	for i, raw := range q.SubItems {
		text := StripEnumerator(raw)
		if text == "" {
			warn := cerrors.New(cerrors.ErrCodeMalformedQuery,
				fmt.Sprintf("sub-item %d is empty after enumerator stripping", i), nil).
				WithDetail("sub_item", fmt.Sprint(i))
			slog.Warn("sub_item_skipped", cerrors.LogAttrs(warn)...)
			result.Skipped = append(result.Skipped, i)
			result.Warnings = append(result.Warnings, warn)
			continue
		}
		queries = append(queries, pending{index: i, text: text})
	}

	// Each goroutine writes only its own slot; ordering is fixed by the
	// aggregation sort, never by completion order.
	subResults := make([]*SubItemResult, len(queries))
	degraded := make([][]error, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	if m.cfg.Parallelism > 0 {
		g.SetLimit(m.cfg.Parallelism)
	}
	for slot, pq := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fused := m.fuser.Fuse(gctx, Query{Body: pq.text, Title: q.Title})
			candidates := AggregateToParents(fused.Units)
			if m.cfg.PerSubItemTopK > 0 && len(candidates) > m.cfg.PerSubItemTopK {
				candidates = candidates[:m.cfg.PerSubItemTopK]
			}
			subResults[slot] = &SubItemResult{
				Index:          pq.index,
				NormalizedText: pq.text,
				Candidates:     candidates,
			}
			degraded[slot] = fused.Degraded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.SubItems = subResults
	for _, d := range degraded {
		result.Warnings = append(result.Warnings, d...)
	}

	result.Matches = AggregateArticles(DirectionForward, subResults, ArticleOptions{
		ScoreThreshold:   m.cfg.ScoreThreshold,
		ThresholdEnabled: m.cfg.ThresholdEnabled,
		TopK:             m.cfg.FinalTopK,
	})

	slog.Debug("article_matched",
		slog.String("title", q.Title),
		slog.Int("sub_items", len(q.SubItems)),
		slog.Int("skipped", len(result.Skipped)),
		slog.Int("matches", len(result.Matches)),
		slog.Duration("duration", time.Since(start)))

	return result, nil
}
