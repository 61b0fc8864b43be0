package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHNSW(t *testing.T, metric string) *HNSWStore {
	t.Helper()
	cfg := DefaultVectorStoreConfig(3)
	cfg.Metric = metric
	s, err := NewHNSWStore(cfg)
	require.NoError(t, err)
	return s
}

func TestHNSWStore_SearchReturnsNearestFirst(t *testing.T) {
	// Given: three vectors at increasing distance from the origin axis
	s := newTestHNSW(t, "l2")
	ctx := context.Background()
	require.NoError(t, s.Add(ctx,
		[]string{"near", "mid", "far"},
		[][]float32{{1, 0, 0}, {2, 0, 0}, {5, 0, 0}}))

	// When: searching from (1,0,0)
	results, err := s.Search(ctx, []float32{1, 0, 0}, 2)

	// Then: the two nearest come back with l2 scores 1/(1+d)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].ID)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "mid", results[1].ID)
	assert.InDelta(t, 0.5, results[1].Score, 1e-6)
}

func TestHNSWStore_ReplaceAndDeleteHideOldNodes(t *testing.T) {
	s := newTestHNSW(t, "l2")
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0}, {0, 1, 0}}))

	// When: a is moved and b deleted
	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{0, 0, 1}}))
	require.NoError(t, s.Delete(ctx, []string{"b"}))

	// Then: only the new a is visible
	results, err := s.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, 1, s.Count())
	assert.False(t, s.Contains("b"))
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	s := newTestHNSW(t, "l2")

	err := s.Add(context.Background(), []string{"x"}, [][]float32{{1, 2}})
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})

	_, err = s.Search(context.Background(), []float32{1}, 1)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

func TestHNSWStore_EmptySearch(t *testing.T) {
	s := newTestHNSW(t, "cos")

	results, err := s.Search(context.Background(), []float32{1, 0, 0}, 3)

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestHNSWStore_SaveAndLoad(t *testing.T) {
	// Given: a saved store
	path := filepath.Join(t.TempDir(), "vectors_body.hnsw")
	s := newTestHNSW(t, "l2")
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"u1", "u2"}, [][]float32{{1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, s.Save(path))
	require.NoError(t, s.Close())

	// When: loaded with its stored configuration
	loaded, err := LoadHNSWStore(path)
	require.NoError(t, err)
	defer loaded.Close()

	// Then: contents and config survive
	assert.Equal(t, 2, loaded.Count())
	assert.Equal(t, "l2", loaded.Config().Metric)
	results, err := loaded.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "u2", results[0].ID)
}

func TestNewHNSWStore_RejectsBadConfig(t *testing.T) {
	_, err := NewHNSWStore(VectorStoreConfig{Dimensions: 0})
	assert.Error(t, err)

	_, err = NewHNSWStore(VectorStoreConfig{Dimensions: 3, Metric: "dot"})
	assert.ErrorContains(t, err, "unknown vector metric")
}

func TestDistanceToScore(t *testing.T) {
	assert.InDelta(t, 0.5, distanceToScore(1, "l2"), 1e-6)
	assert.InDelta(t, 1.0, distanceToScore(0, "cos"), 1e-6)
	assert.InDelta(t, 0.0, distanceToScore(2, "cos"), 1e-6)
}
