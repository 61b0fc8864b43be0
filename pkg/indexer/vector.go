package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Aman-CERP/clausecheck/internal/embed"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

// DefaultBatchSize is the number of texts sent to the embedder per call.
const DefaultBatchSize = 32

// ErrNilEmbedder is returned when attempting to create a VectorIndexer without an embedder.
var ErrNilEmbedder = errors.New("embedder is required")

// ErrNilVectorStore is returned when attempting to create a VectorIndexer without a vector store.
var ErrNilVectorStore = errors.New("vector store is required")

// VectorIndexer embeds one unit field and stores the vectors.
//
// When an embedding store is set, vectors are also persisted there under
// the indexer's field, so the reverse pass can query with them later. With
// an embedding store the vector store is optional.
type VectorIndexer struct {
	field      store.Field
	embedder   embed.Embedder
	store      store.VectorStore
	embeddings store.UnitStore
	batchSize  int
	mu         sync.RWMutex
	closed     bool
}

// VectorOption configures a VectorIndexer.
// Note: We use a separate type to avoid conflicts with BM25Indexer options.
type VectorOption func(*VectorIndexer)

// WithEmbedder sets the embedder. Required.
func WithEmbedder(e embed.Embedder) VectorOption {
	return func(v *VectorIndexer) {
		v.embedder = e
	}
}

// WithVectorStore sets the vector store backend.
func WithVectorStore(s store.VectorStore) VectorOption {
	return func(v *VectorIndexer) {
		v.store = s
	}
}

// WithEmbeddingStore persists computed vectors to s.
func WithEmbeddingStore(s store.UnitStore) VectorOption {
	return func(v *VectorIndexer) {
		v.embeddings = s
	}
}

// WithBatchSize sets the embedder batch size. Values <= 0 use DefaultBatchSize.
func WithBatchSize(n int) VectorOption {
	return func(v *VectorIndexer) {
		v.batchSize = n
	}
}

// NewVectorIndexer creates a vector indexer for field.
//
// Returns ErrNilEmbedder if no embedder is provided.
// Returns ErrNilVectorStore if neither a vector store nor an embedding
// store is provided.
func NewVectorIndexer(field store.Field, opts ...VectorOption) (*VectorIndexer, error) {
	v := &VectorIndexer{field: field}

	for _, opt := range opts {
		opt(v)
	}

	if v.embedder == nil {
		return nil, ErrNilEmbedder
	}
	if v.store == nil && v.embeddings == nil {
		return nil, ErrNilVectorStore
	}
	if v.batchSize <= 0 {
		v.batchSize = DefaultBatchSize
	}

	return v, nil
}

// Index embeds the field text of units in batches and adds the vectors.
func (v *VectorIndexer) Index(ctx context.Context, units []*store.Unit) error {
	ids, texts := fieldTexts(v.field, units)
	if len(ids) == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for start := 0; start < len(ids); start += v.batchSize {
		end := min(start+v.batchSize, len(ids))

		vectors, err := v.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("vector embed %s: %w", v.field, err)
		}
		if len(vectors) != end-start {
			return fmt.Errorf("vector embed %s: got %d vectors for %d texts", v.field, len(vectors), end-start)
		}

		if v.store != nil {
			if err := v.store.Add(ctx, ids[start:end], vectors); err != nil {
				return fmt.Errorf("vector store add %s: %w", v.field, err)
			}
		}
		if v.embeddings != nil {
			if err := v.embeddings.SaveEmbeddings(ctx, v.field, ids[start:end], vectors); err != nil {
				return fmt.Errorf("save embeddings %s: %w", v.field, err)
			}
		}
	}

	return nil
}

// Delete removes vectors by ID from the vector store.
func (v *VectorIndexer) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 || v.store == nil {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("vector delete %s: %w", v.field, err)
	}

	return nil
}

// Stats returns the number of stored vectors.
func (v *VectorIndexer) Stats() IndexStats {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.store == nil {
		return IndexStats{}
	}
	return IndexStats{DocumentCount: v.store.Count()}
}

// Close releases the vector store. The embedding store is not closed.
func (v *VectorIndexer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil
	}

	v.closed = true

	if v.store == nil {
		return nil
	}
	if err := v.store.Close(); err != nil {
		return fmt.Errorf("vector close: %w", err)
	}

	return nil
}

// Ensure VectorIndexer implements Indexer at compile time.
var _ Indexer = (*VectorIndexer)(nil)
