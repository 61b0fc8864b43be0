package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/clausecheck/internal/embed"
	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/store"
	"github.com/Aman-CERP/clausecheck/pkg/indexer"
)

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	DataDir     string
	BM25Backend string

	// Vector index settings; Dimensions comes from the embedder.
	Metric   string
	M        int
	EfSearch int

	BatchSize int

	// Force wipes the data directory before building.
	Force bool
}

// IngestStats summarises one ingested document.
type IngestStats struct {
	DocumentID   string
	ContractType string
	Units        int
	Parents      int
	Embedded     map[store.Field]int
	Duration     time.Duration
}

// Builder writes reference documents into a data directory. It holds the
// data directory lock until Close.
type Builder struct {
	cfg      BuilderConfig
	embedder embed.Embedder
	units    *store.SQLiteUnitStore
	lock     *DataDirLock
}

// NewBuilder locks cfg.DataDir, opens its unit store and checks that the
// embedder matches the one the directory was built with.
func NewBuilder(ctx context.Context, cfg BuilderConfig, embedder embed.Embedder) (*Builder, error) {
	if cfg.DataDir == "" {
		return nil, cerrors.ConfigError("index.data_dir is required", nil)
	}
	if embedder == nil {
		return nil, cerrors.InternalError("embedder is required", nil)
	}

	lock := NewDataDirLock(cfg.DataDir)
	if err := lock.TryLock(); err != nil {
		return nil, err
	}

	if cfg.Force {
		if err := wipeDataDir(cfg.DataDir); err != nil {
			_ = lock.Unlock()
			return nil, err
		}
	}

	units, err := store.NewSQLiteUnitStore(store.UnitStorePath(cfg.DataDir))
	if err != nil {
		_ = lock.Unlock()
		return nil, cerrors.IOError("failed to open unit store", err)
	}

	if err := checkEmbeddingModel(ctx, units, embedder, true); err != nil {
		_ = units.Close()
		_ = lock.Unlock()
		return nil, err
	}

	return &Builder{cfg: cfg, embedder: embedder, units: units, lock: lock}, nil
}

// IngestReference stores doc's units and adds them to the sparse and dense
// indices of its contract type. Re-ingesting a document replaces its units.
func (b *Builder) IngestReference(ctx context.Context, doc *Document) (*IngestStats, error) {
	start := time.Now()
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	if err := b.units.SaveUnits(ctx, doc.Units); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeStoreFailed, "failed to save units", err)
	}

	stats := &IngestStats{
		DocumentID:   doc.ID,
		ContractType: doc.ContractType,
		Units:        len(doc.Units),
		Parents:      len(GroupParents(doc.Units)),
		Embedded:     make(map[store.Field]int),
	}

	for _, field := range store.Fields {
		n, err := b.indexField(ctx, doc, field)
		if err != nil {
			return nil, err
		}
		stats.Embedded[field] = n
	}

	if err := b.units.SaveDocument(ctx, &store.DocumentInfo{
		ID:           doc.ID,
		ContractType: doc.ContractType,
		Kind:         store.DocumentKindReference,
		UnitCount:    len(doc.Units),
		IndexedAt:    time.Now(),
	}); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeStoreFailed, "failed to save document", err)
	}

	stats.Duration = time.Since(start)
	slog.Info("reference_indexed",
		slog.String("document_id", doc.ID),
		slog.String("contract_type", doc.ContractType),
		slog.Int("units", stats.Units),
		slog.Int("parents", stats.Parents),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// indexField writes one field of doc and returns the number of vectors in
// the field's dense index afterwards.
func (b *Builder) indexField(ctx context.Context, doc *Document, field store.Field) (int, error) {
	if err := os.MkdirAll(filepath.Join(b.cfg.DataDir, doc.ContractType), 0o755); err != nil {
		return 0, cerrors.IOError("failed to create index directory", err)
	}

	sparse, err := b.openSparse(doc.ContractType, field)
	if err != nil {
		return 0, err
	}
	dense, vectorPath, err := b.openDense(doc.ContractType, field)
	if err != nil {
		_ = sparse.Close()
		return 0, err
	}

	bm25, err := indexer.NewBM25Indexer(field, indexer.WithStore(sparse))
	if err != nil {
		_ = sparse.Close()
		_ = dense.Close()
		return 0, cerrors.InternalError("failed to create BM25 indexer", err)
	}
	vec, err := indexer.NewVectorIndexer(field,
		indexer.WithEmbedder(b.embedder),
		indexer.WithVectorStore(dense),
		indexer.WithEmbeddingStore(b.units),
		indexer.WithBatchSize(b.cfg.BatchSize))
	if err != nil {
		_ = bm25.Close()
		_ = dense.Close()
		return 0, cerrors.InternalError("failed to create vector indexer", err)
	}
	hybrid, err := indexer.NewHybridIndexer(indexer.WithBM25(bm25), indexer.WithVector(vec))
	if err != nil {
		return 0, cerrors.InternalError("failed to create indexer", err)
	}
	defer func() { _ = hybrid.Close() }()

	if err := hybrid.Index(ctx, doc.Units); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		var dimErr store.ErrDimensionMismatch
		if errors.As(err, &dimErr) {
			return 0, cerrors.New(cerrors.ErrCodeDimensionMismatch, "embedding dimension mismatch", err).
				WithSuggestion("rebuild with 'clausecheck index --force'")
		}
		return 0, cerrors.New(cerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("failed to index %s field of %s", field, doc.ID), err)
	}

	if err := sparse.Save(""); err != nil {
		return 0, cerrors.New(cerrors.ErrCodeStoreFailed, "failed to flush BM25 index", err)
	}
	// A field with no text anywhere gets no vector index.
	if dense.Count() == 0 {
		return 0, nil
	}
	if err := dense.Save(vectorPath); err != nil {
		return 0, cerrors.New(cerrors.ErrCodeStoreFailed, "failed to save vector index", err)
	}
	return dense.Count(), nil
}

func (b *Builder) openSparse(contractType string, field store.Field) (store.BM25Index, error) {
	base := store.BM25BasePath(b.cfg.DataDir, contractType, field)
	backend := string(store.DetectBM25Backend(base))
	if backend == "" {
		backend = b.cfg.BM25Backend
	} else if b.cfg.BM25Backend != "" && backend != b.cfg.BM25Backend {
		slog.Warn("bm25_backend_kept",
			slog.String("contract_type", contractType),
			slog.String("existing", backend),
			slog.String("configured", b.cfg.BM25Backend))
	}

	idx, err := store.NewBM25IndexWithBackend(base, store.DefaultBM25Config(), backend)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeStoreFailed, "failed to open BM25 index", err)
	}
	return idx, nil
}

func (b *Builder) openDense(contractType string, field store.Field) (*store.HNSWStore, string, error) {
	path := store.VectorPath(b.cfg.DataDir, contractType, field)
	if _, err := os.Stat(path); err == nil {
		vs, err := store.LoadHNSWStore(path)
		if err != nil {
			return nil, "", cerrors.New(cerrors.ErrCodeCorruptIndex, "failed to load vector index "+path, err).
				WithSuggestion("rebuild with 'clausecheck index --force'")
		}
		return vs, path, nil
	}

	vs, err := store.NewHNSWStore(store.VectorStoreConfig{
		Dimensions: b.embedder.Dimensions(),
		Metric:     b.cfg.Metric,
		M:          b.cfg.M,
		EfSearch:   b.cfg.EfSearch,
	})
	if err != nil {
		return nil, "", cerrors.ConfigError("invalid vector index settings", err)
	}
	return vs, path, nil
}

// Close releases the unit store and the data directory lock.
func (b *Builder) Close() error {
	err := b.units.Close()
	return errors.Join(err, b.lock.Unlock())
}

// wipeDataDir removes everything in dataDir except the lock file.
func wipeDataDir(dataDir string) error {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return cerrors.IOError("failed to read data directory", err)
	}
	for _, e := range entries {
		if e.Name() == LockFileName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dataDir, e.Name())); err != nil {
			return cerrors.IOError("failed to remove "+e.Name(), err)
		}
	}
	slog.Info("data_dir_wiped", slog.String("path", dataDir))
	return nil
}

// LoadUserDocument stores a user document in memory with body embeddings
// for the reverse pass.
func LoadUserDocument(ctx context.Context, doc *Document, embedder embed.Embedder, batchSize int) (*store.MemoryUnitStore, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	units := store.NewMemoryUnitStore()
	if err := units.SaveUnits(ctx, doc.Units); err != nil {
		return nil, cerrors.InternalError("failed to store user units", err)
	}
	if err := units.SaveDocument(ctx, &store.DocumentInfo{
		ID:           doc.ID,
		ContractType: doc.ContractType,
		Kind:         store.DocumentKindUser,
		UnitCount:    len(doc.Units),
		IndexedAt:    time.Now(),
	}); err != nil {
		return nil, cerrors.InternalError("failed to store user document", err)
	}

	if embedder == nil {
		return units, nil
	}

	vec, err := indexer.NewVectorIndexer(store.FieldBody,
		indexer.WithEmbedder(embedder),
		indexer.WithEmbeddingStore(units),
		indexer.WithBatchSize(batchSize))
	if err != nil {
		return nil, cerrors.InternalError("failed to create user indexer", err)
	}

	if err := vec.Index(ctx, doc.Units); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The reverse pass degrades without user embeddings.
		slog.Warn("user_embedding_failed",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()))
	}
	return units, nil
}
