package indexer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/clausecheck/internal/embed"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

// MockIndexer implements Indexer for testing HybridIndexer.
type MockIndexer struct {
	IndexFn func(ctx context.Context, units []*store.Unit) error
	CloseFn func() error
	Count   int

	indexCalled atomic.Int32
	closeCalled atomic.Int32
}

func (m *MockIndexer) Index(ctx context.Context, units []*store.Unit) error {
	m.indexCalled.Add(1)
	if m.IndexFn != nil {
		return m.IndexFn(ctx, units)
	}
	return nil
}

func (m *MockIndexer) Delete(ctx context.Context, ids []string) error { return nil }

func (m *MockIndexer) Stats() IndexStats { return IndexStats{DocumentCount: m.Count} }

func (m *MockIndexer) Close() error {
	m.closeCalled.Add(1)
	if m.CloseFn != nil {
		return m.CloseFn()
	}
	return nil
}

func testUnits() []*store.Unit {
	return []*store.Unit{
		{ID: "u1", ParentID: "제1조", Title: "목적", BodyNormalized: "이 계약은 임대차에 관한 사항을 정한다"},
		{ID: "u2", ParentID: "제2조", Title: "보증금", BodyNormalized: "임차인은 보증금을 지급한다"},
		{ID: "u3", ParentID: "제2조", Title: "보증금", BodyNormalized: ""},
	}
}

func TestBM25Indexer_IndexesFieldText(t *testing.T) {
	// Given: a BM25 indexer over the title field
	idx, err := store.NewBleveBM25Index("", store.BM25Config{})
	require.NoError(t, err)
	bi, err := NewBM25Indexer(store.FieldTitle, WithStore(idx))
	require.NoError(t, err)
	defer func() { _ = bi.Close() }()

	// When: indexing units
	require.NoError(t, bi.Index(context.Background(), testUnits()))

	// Then: titles are searchable
	assert.Equal(t, 3, bi.Stats().DocumentCount)
	res, err := idx.Search(context.Background(), "보증금", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, res)
}

func TestBM25Indexer_SkipsEmptyText(t *testing.T) {
	idx, err := store.NewBleveBM25Index("", store.BM25Config{})
	require.NoError(t, err)
	bi, err := NewBM25Indexer(store.FieldBody, WithStore(idx))
	require.NoError(t, err)

	require.NoError(t, bi.Index(context.Background(), testUnits()))

	assert.Equal(t, 2, bi.Stats().DocumentCount)
}

func TestNewBM25Indexer_RequiresStore(t *testing.T) {
	_, err := NewBM25Indexer(store.FieldBody)
	assert.ErrorIs(t, err, ErrNilStore)
}

func TestVectorIndexer_PersistsEmbeddings(t *testing.T) {
	// Given: a vector indexer with a small batch size and an embedding store
	ctx := context.Background()
	vs, err := store.NewHNSWStore(store.VectorStoreConfig{Dimensions: 32})
	require.NoError(t, err)
	units := store.NewMemoryUnitStore()
	vi, err := NewVectorIndexer(store.FieldBody,
		WithEmbedder(embed.NewStaticEmbedder(32)),
		WithVectorStore(vs),
		WithEmbeddingStore(units),
		WithBatchSize(1))
	require.NoError(t, err)

	// When: indexing
	require.NoError(t, vi.Index(ctx, testUnits()))

	// Then: non-empty units are in both the graph and the embedding store
	assert.Equal(t, 2, vi.Stats().DocumentCount)
	got, err := units.GetEmbeddings(ctx, store.FieldBody, []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Len(t, got["u1"], 32)
}

func TestVectorIndexer_DimensionMismatch(t *testing.T) {
	vs, err := store.NewHNSWStore(store.VectorStoreConfig{Dimensions: 8})
	require.NoError(t, err)
	vi, err := NewVectorIndexer(store.FieldBody, WithEmbedder(embed.NewStaticEmbedder(16)), WithVectorStore(vs))
	require.NoError(t, err)

	err = vi.Index(context.Background(), testUnits())

	assert.Error(t, err)
}

func TestNewVectorIndexer_Validation(t *testing.T) {
	vs, err := store.NewHNSWStore(store.VectorStoreConfig{Dimensions: 8})
	require.NoError(t, err)

	_, err = NewVectorIndexer(store.FieldBody, WithVectorStore(vs))
	assert.ErrorIs(t, err, ErrNilEmbedder)

	_, err = NewVectorIndexer(store.FieldBody, WithEmbedder(embed.NewStaticEmbedder(8)))
	assert.ErrorIs(t, err, ErrNilVectorStore)
}

func TestVectorIndexer_EmbeddingStoreOnly(t *testing.T) {
	ctx := context.Background()
	units := store.NewMemoryUnitStore()
	vi, err := NewVectorIndexer(store.FieldTitle,
		WithEmbedder(embed.NewStaticEmbedder(8)),
		WithEmbeddingStore(units))
	require.NoError(t, err)

	require.NoError(t, vi.Index(ctx, testUnits()))

	got, err := units.GetEmbeddings(ctx, store.FieldTitle, []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 0, vi.Stats().DocumentCount)
	assert.NoError(t, vi.Close())
}

func TestNewHybridIndexer_RequiresOne(t *testing.T) {
	_, err := NewHybridIndexer(WithBM25(nil), WithVector(nil))
	assert.ErrorIs(t, err, ErrNoIndexers)
}

func TestHybridIndexer_FailsFastOnBM25Error(t *testing.T) {
	// Given: a failing BM25 indexer and a healthy vector indexer
	bm25 := &MockIndexer{IndexFn: func(context.Context, []*store.Unit) error { return errors.New("disk full") }}
	vector := &MockIndexer{}
	h, err := NewHybridIndexer(WithBM25(bm25), WithVector(vector))
	require.NoError(t, err)

	// When
	err = h.Index(context.Background(), testUnits())

	// Then: the vector indexer is never reached
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, int32(0), vector.indexCalled.Load())
}

func TestHybridIndexer_StatsAndClose(t *testing.T) {
	a := &MockIndexer{Count: 3}
	b := &MockIndexer{Count: 5, CloseFn: func() error { return errors.New("boom") }}
	h, err := NewHybridIndexer(WithBM25(a), WithVector(b))
	require.NoError(t, err)

	assert.Equal(t, 5, h.Stats().DocumentCount)

	err = h.Close()
	assert.Error(t, err)
	assert.NoError(t, h.Close())
	assert.Equal(t, int32(1), a.closeCalled.Load())
	assert.Equal(t, int32(1), b.closeCalled.Load())
}
