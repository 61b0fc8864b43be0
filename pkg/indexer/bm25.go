package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Aman-CERP/clausecheck/internal/store"
)

// ErrNilStore is returned when attempting to create a BM25Indexer without a store.
var ErrNilStore = errors.New("BM25 store is required")

// BM25Indexer feeds one unit field into a [store.BM25Index].
type BM25Indexer struct {
	field  store.Field
	store  store.BM25Index
	mu     sync.RWMutex
	closed bool
}

// Option configures a BM25Indexer.
type Option func(*BM25Indexer)

// WithStore sets the BM25 store backend. Required.
func WithStore(s store.BM25Index) Option {
	return func(i *BM25Indexer) {
		i.store = s
	}
}

// NewBM25Indexer creates a BM25 indexer for field.
//
// Returns ErrNilStore if no store is provided.
func NewBM25Indexer(field store.Field, opts ...Option) (*BM25Indexer, error) {
	i := &BM25Indexer{field: field}

	for _, opt := range opts {
		opt(i)
	}

	if i.store == nil {
		return nil, ErrNilStore
	}

	return i, nil
}

// Index adds the field text of units to the BM25 index.
func (i *BM25Indexer) Index(ctx context.Context, units []*store.Unit) error {
	ids, texts := fieldTexts(i.field, units)
	if len(ids) == 0 {
		return nil
	}

	docs := make([]*store.Document, len(ids))
	for j := range ids {
		docs[j] = &store.Document{ID: ids[j], Content: texts[j]}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.store.Index(ctx, docs); err != nil {
		return fmt.Errorf("BM25 index %s: %w", i.field, err)
	}

	return nil
}

// Delete removes units by ID from the BM25 index.
func (i *BM25Indexer) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("BM25 delete %s: %w", i.field, err)
	}

	return nil
}

// Stats returns current index statistics.
func (i *BM25Indexer) Stats() IndexStats {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return IndexStats{DocumentCount: i.store.Stats().DocumentCount}
}

// Close releases the BM25 store.
func (i *BM25Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}

	i.closed = true

	if err := i.store.Close(); err != nil {
		return fmt.Errorf("BM25 close: %w", err)
	}

	return nil
}

// Ensure BM25Indexer implements Indexer at compile time.
var _ Indexer = (*BM25Indexer)(nil)
