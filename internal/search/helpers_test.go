package search

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/clausecheck/internal/store"
)

// stubLookup serves fixed hits per field, optionally keyed by query text.
type stubLookup struct {
	byField map[store.Field][]Hit
	byQuery map[string][]Hit // body queries only
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (s *stubLookup) hits(ctx context.Context, field store.Field, query string) ([]Hit, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if field == store.FieldBody && s.byQuery != nil {
		return s.byQuery[query], nil
	}
	return s.byField[field], nil
}

func (s *stubLookup) Dense(ctx context.Context, field store.Field, query string, k int) ([]Hit, error) {
	return s.hits(ctx, field, query)
}

func (s *stubLookup) Sparse(ctx context.Context, field store.Field, query string, k int) ([]Hit, error) {
	return s.hits(ctx, field, query)
}

func unit(id, parent string, order int) *store.Unit {
	return &store.Unit{
		ID:             id,
		ParentID:       parent,
		Title:          "Title " + parent,
		BodyNormalized: "body of " + id,
		OrderIndex:     order,
	}
}

func memUnits(units ...*store.Unit) *store.MemoryUnitStore {
	s := store.NewMemoryUnitStore()
	_ = s.SaveUnits(context.Background(), units)
	return s
}

func scored(u *store.Unit, score float64) *ScoredUnit {
	return &ScoredUnit{Unit: u, CombinedScore: score}
}
