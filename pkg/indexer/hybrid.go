package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Aman-CERP/clausecheck/internal/store"
)

// ErrNoIndexers is returned when attempting to create a HybridIndexer without any indexers.
var ErrNoIndexers = errors.New("at least one indexer is required")

// HybridIndexer fans operations out to BM25 and vector indexers, typically
// one of each per field.
type HybridIndexer struct {
	bm25   []Indexer
	vector []Indexer
	mu     sync.RWMutex
	closed bool
}

// HybridOption configures a HybridIndexer.
type HybridOption func(*HybridIndexer)

// WithBM25 adds a BM25 indexer. Nil is ignored.
func WithBM25(idx Indexer) HybridOption {
	return func(h *HybridIndexer) {
		if idx != nil {
			h.bm25 = append(h.bm25, idx)
		}
	}
}

// WithVector adds a vector indexer. Nil is ignored.
func WithVector(idx Indexer) HybridOption {
	return func(h *HybridIndexer) {
		if idx != nil {
			h.vector = append(h.vector, idx)
		}
	}
}

// NewHybridIndexer creates a hybrid indexer from components.
//
// Returns ErrNoIndexers if no indexer is given.
func NewHybridIndexer(opts ...HybridOption) (*HybridIndexer, error) {
	h := &HybridIndexer{}

	for _, opt := range opts {
		opt(h)
	}

	if len(h.bm25) == 0 && len(h.vector) == 0 {
		return nil, ErrNoIndexers
	}

	return h, nil
}

// Index sends units to every BM25 indexer, then every vector indexer.
// It fails fast on the first error.
func (h *HybridIndexer) Index(ctx context.Context, units []*store.Unit) error {
	if len(units) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, idx := range h.bm25 {
		if err := idx.Index(ctx, units); err != nil {
			return fmt.Errorf("hybrid bm25 index: %w", err)
		}
	}

	for _, idx := range h.vector {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := idx.Index(ctx, units); err != nil {
			return fmt.Errorf("hybrid vector index: %w", err)
		}
	}

	return nil
}

// Delete removes units from every indexer. All indexers are attempted even
// if one fails.
func (h *HybridIndexer) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for _, idx := range h.all() {
		if err := idx.Delete(ctx, ids); err != nil {
			errs = append(errs, fmt.Errorf("hybrid delete: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Stats reports the largest document count among the indexers.
func (h *HybridIndexer) Stats() IndexStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var stats IndexStats
	for _, idx := range h.all() {
		stats.DocumentCount = max(stats.DocumentCount, idx.Stats().DocumentCount)
	}

	return stats
}

// Close closes every indexer, joining their errors.
func (h *HybridIndexer) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	h.closed = true

	var errs []error
	for _, idx := range h.all() {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("hybrid close: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (h *HybridIndexer) all() []Indexer {
	return append(append([]Indexer{}, h.bm25...), h.vector...)
}

// Ensure HybridIndexer implements Indexer at compile time.
var _ Indexer = (*HybridIndexer)(nil)
