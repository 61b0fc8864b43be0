package searcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/clausecheck/internal/embed"
	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

// failingBM25 is a BM25Index whose searches always fail.
type failingBM25 struct {
	store.BM25Index
	calls atomic.Int32
}

func (f *failingBM25) Search(ctx context.Context, query string, limit int) ([]*store.BM25Result, error) {
	f.calls.Add(1)
	return nil, errors.New("database is locked")
}

func newBleve(t *testing.T, docs ...*store.Document) store.BM25Index {
	t.Helper()
	idx, err := store.NewBleveBM25Index("", store.BM25Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.Index(context.Background(), docs))
	return idx
}

func TestSparseSearcher_ReturnsHitsPerField(t *testing.T) {
	// Given: separate body and title indices
	body := newBleve(t,
		&store.Document{ID: "U1", Content: "the lessee shall pay the deposit"},
		&store.Document{ID: "U2", Content: "governing law and jurisdiction"})
	title := newBleve(t, &store.Document{ID: "U2", Content: "governing law"})
	s, err := NewSparseSearcher(map[store.Field]store.BM25Index{
		store.FieldBody:  body,
		store.FieldTitle: title,
	})
	require.NoError(t, err)

	// When: searching each field
	bodyHits, err := s.Sparse(context.Background(), store.FieldBody, "deposit", 10)
	require.NoError(t, err)
	titleHits, err := s.Sparse(context.Background(), store.FieldTitle, "deposit", 10)
	require.NoError(t, err)

	// Then: only the body index knows about the deposit clause
	require.Len(t, bodyHits, 1)
	assert.Equal(t, "U1", bodyHits[0].UnitID)
	assert.Greater(t, bodyHits[0].Score, 0.0)
	assert.Empty(t, titleHits)
}

func TestSparseSearcher_MissingFieldIsEmpty(t *testing.T) {
	s, err := NewSparseSearcher(map[store.Field]store.BM25Index{store.FieldBody: newBleve(t)})
	require.NoError(t, err)

	hits, err := s.Sparse(context.Background(), store.FieldTitle, "anything", 5)

	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestNewSparseSearcher_RequiresIndex(t *testing.T) {
	_, err := NewSparseSearcher(map[store.Field]store.BM25Index{store.FieldBody: nil})
	assert.ErrorIs(t, err, ErrNilBM25Store)
}

func TestSparseSearcher_CircuitOpensAfterFailures(t *testing.T) {
	// Given: a failing backend behind a breaker that opens after 2 failures
	backend := &failingBM25{}
	cb := cerrors.NewCircuitBreaker("sparse", cerrors.WithMaxFailures(2), cerrors.WithResetTimeout(time.Hour))
	s, err := NewSparseSearcher(map[store.Field]store.BM25Index{store.FieldBody: backend}, WithCircuitBreaker(cb))
	require.NoError(t, err)

	// When: searching four times
	var lastErr error
	for range 4 {
		_, lastErr = s.Sparse(context.Background(), store.FieldBody, "q", 5)
	}

	// Then: the backend saw only the first two calls
	assert.ErrorIs(t, lastErr, cerrors.ErrCircuitOpen)
	assert.Equal(t, int32(2), backend.calls.Load())
}

func TestSparseSearcher_RateLimitHonoursContext(t *testing.T) {
	s, err := NewSparseSearcher(map[store.Field]store.BM25Index{store.FieldBody: newBleve(t)},
		WithRateLimit(0.001, 1))
	require.NoError(t, err)

	// The first call uses the burst token.
	_, err = s.Sparse(context.Background(), store.FieldBody, "q", 5)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Sparse(ctx, store.FieldBody, "q", 5)

	assert.Error(t, err)
}

func TestDenseSearcher_ScoresBySimilarity(t *testing.T) {
	// Given: a vector store built with the static embedder
	ctx := context.Background()
	embedder := embed.NewStaticEmbedder(64)
	texts := map[string]string{
		"U1": "the lessee shall pay the deposit within ten days",
		"U2": "this agreement is governed by the laws of Korea",
	}
	vs, err := store.NewHNSWStore(store.VectorStoreConfig{Dimensions: 64})
	require.NoError(t, err)
	for id, text := range texts {
		vec, err := embedder.Embed(ctx, text)
		require.NoError(t, err)
		require.NoError(t, vs.Add(ctx, []string{id}, [][]float32{vec}))
	}
	s, err := NewDenseSearcher(embedder, map[store.Field]store.VectorStore{store.FieldBody: vs})
	require.NoError(t, err)

	// When: querying with the exact text of U1
	hits, err := s.Dense(ctx, store.FieldBody, texts["U1"], 2)

	// Then: U1 comes first with similarity 1
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "U1", hits[0].UnitID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Less(t, hits[1].Score, hits[0].Score)
}

func TestNewDenseSearcher_Validation(t *testing.T) {
	vs, err := store.NewHNSWStore(store.VectorStoreConfig{Dimensions: 4})
	require.NoError(t, err)

	_, err = NewDenseSearcher(nil, map[store.Field]store.VectorStore{store.FieldBody: vs})
	assert.ErrorIs(t, err, ErrNilEmbedder)

	_, err = NewDenseSearcher(embed.NewStaticEmbedder(4), nil)
	assert.ErrorIs(t, err, ErrNilVectorStore)
}
