package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/clausecheck/internal/embed"
	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

func leaseDoc(t *testing.T) *Document {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lease.json")
	require.NoError(t, os.WriteFile(path, []byte(leaseJSON), 0o644))
	doc, err := LoadDocumentFile(path)
	require.NoError(t, err)
	return doc
}

func buildIndex(t *testing.T, dataDir string, embedder embed.Embedder, backend string) {
	t.Helper()
	ctx := context.Background()
	b, err := NewBuilder(ctx, BuilderConfig{DataDir: dataDir, BM25Backend: backend, BatchSize: 2}, embedder)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	stats, err := b.IngestReference(ctx, leaseDoc(t))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Units)
	assert.Equal(t, 2, stats.Parents)
	assert.Equal(t, 3, stats.Embedded[store.FieldBody])
}

func TestBuildAndOpen(t *testing.T) {
	for _, backend := range []string{"sqlite", "bleve"} {
		t.Run(backend, func(t *testing.T) {
			// Given: a data directory built from one reference document
			ctx := context.Background()
			dataDir := t.TempDir()
			embedder := embed.NewStaticEmbedder(32)
			buildIndex(t, dataDir, embedder, backend)

			// When: opening it
			reg, err := Open(ctx, LoadConfig{DataDir: dataDir}, embedder)
			require.NoError(t, err)
			defer func() { _ = reg.Close() }()

			// Then: the contract type is registered with working lookups
			assert.True(t, reg.Frozen())
			ref, err := reg.Get("lease")
			require.NoError(t, err)
			require.Len(t, ref.Parents, 2)
			assert.Equal(t, "제2조", ref.Parents[0].ParentID)

			sparse, err := ref.Sparse.Sparse(ctx, store.FieldBody, "보증금", 10)
			require.NoError(t, err)
			assert.NotEmpty(t, sparse)

			dense, err := ref.Dense.Dense(ctx, store.FieldBody, "임차인은 보증금을 지급한다.", 1)
			require.NoError(t, err)
			require.Len(t, dense, 1)
			assert.Equal(t, "s2-1", dense[0].UnitID)

			vecs, err := ref.Embeddings().Embeddings(ctx, []string{"s2-1", "s2-2"})
			require.NoError(t, err)
			assert.Len(t, vecs, 2)
		})
	}
}

func TestBuilder_RejectsDifferentEmbedder(t *testing.T) {
	// Given: an index built with 32-dimensional embeddings
	dataDir := t.TempDir()
	buildIndex(t, dataDir, embed.NewStaticEmbedder(32), "sqlite")

	// When: building or opening with a different dimension
	_, buildErr := NewBuilder(context.Background(), BuilderConfig{DataDir: dataDir}, embed.NewStaticEmbedder(16))
	_, openErr := Open(context.Background(), LoadConfig{DataDir: dataDir}, embed.NewStaticEmbedder(16))

	// Then: both report a dimension mismatch
	assert.Equal(t, cerrors.ErrCodeDimensionMismatch, cerrors.GetCode(buildErr))
	assert.Equal(t, cerrors.ErrCodeDimensionMismatch, cerrors.GetCode(openErr))
}

func TestBuilder_ForceRebuilds(t *testing.T) {
	dataDir := t.TempDir()
	buildIndex(t, dataDir, embed.NewStaticEmbedder(32), "sqlite")

	b, err := NewBuilder(context.Background(), BuilderConfig{DataDir: dataDir, Force: true}, embed.NewStaticEmbedder(16))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = os.Stat(filepath.Join(dataDir, "lease"))
	assert.True(t, os.IsNotExist(err))
}

func TestBuilder_HoldsLock(t *testing.T) {
	dataDir := t.TempDir()
	b, err := NewBuilder(context.Background(), BuilderConfig{DataDir: dataDir}, embed.NewStaticEmbedder(8))
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	_, err = NewBuilder(context.Background(), BuilderConfig{DataDir: dataDir}, embed.NewStaticEmbedder(8))

	assert.Equal(t, cerrors.ErrCodeIndexLocked, cerrors.GetCode(err))
}

func TestOpen_MissingIndex(t *testing.T) {
	_, err := Open(context.Background(), LoadConfig{DataDir: t.TempDir()}, embed.NewStaticEmbedder(8))
	assert.Equal(t, cerrors.ErrCodeFileNotFound, cerrors.GetCode(err))
}

func TestLoadUserDocument(t *testing.T) {
	ctx := context.Background()
	doc := leaseDoc(t)

	units, err := LoadUserDocument(ctx, doc, embed.NewStaticEmbedder(8), 0)

	require.NoError(t, err)
	got, err := units.GetUnits(ctx, []string{"s2-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	vecs, err := units.GetEmbeddings(ctx, store.FieldBody, []string{"s10-1", "s2-1", "s2-2"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
}
