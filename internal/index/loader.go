package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/Aman-CERP/clausecheck/internal/embed"
	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/store"
	"github.com/Aman-CERP/clausecheck/pkg/searcher"
)

// LoadConfig configures Open.
type LoadConfig struct {
	DataDir string

	// BreakerMaxFailures and BreakerResetTimeout configure the circuit
	// breaker around each lookup backend. Zero uses the breaker defaults.
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration

	// RateLimit caps backend calls per second per lookup; 0 is unlimited.
	RateLimit float64
	RateBurst int
}

// Open loads every reference contract type found in a data directory into
// a frozen Registry. The registry owns the opened indices; close it when
// done.
func Open(ctx context.Context, cfg LoadConfig, embedder embed.Embedder) (*Registry, error) {
	unitsPath := store.UnitStorePath(cfg.DataDir)
	if _, err := os.Stat(unitsPath); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeFileNotFound, "no index in "+cfg.DataDir, err).
			WithSuggestion("build one with 'clausecheck index <reference.json>'")
	}

	units, err := store.NewSQLiteUnitStore(unitsPath)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeCorruptIndex, "failed to open unit store", err)
	}

	reg := NewRegistry()
	reg.Own(units)

	if err := checkEmbeddingModel(ctx, units, embedder, false); err != nil {
		_ = reg.Close()
		return nil, err
	}

	docs, err := units.ListDocuments(ctx, store.DocumentKindReference)
	if err != nil {
		_ = reg.Close()
		return nil, cerrors.IOError("failed to list reference documents", err)
	}

	byType := make(map[string][]*store.Unit)
	for _, d := range docs {
		du, err := units.UnitsByDocument(ctx, d.ID)
		if err != nil {
			_ = reg.Close()
			return nil, cerrors.IOError("failed to read units of "+d.ID, err)
		}
		byType[d.ContractType] = append(byType[d.ContractType], du...)
	}

	types := make([]string, 0, len(byType))
	for ct := range byType {
		types = append(types, ct)
	}
	sort.Strings(types)

	for _, ct := range types {
		ref, err := openReference(cfg, ct, units, embedder)
		if err != nil {
			_ = reg.Close()
			return nil, err
		}
		ref.Parents = GroupParents(byType[ct])
		if err := reg.Register(ref); err != nil {
			_ = closeAll(ref.closers)
			_ = reg.Close()
			return nil, err
		}
		slog.Debug("reference_loaded",
			slog.String("contract_type", ct),
			slog.Int("parents", len(ref.Parents)),
			slog.Int("units", len(byType[ct])))
	}

	reg.Freeze()
	return reg, nil
}

func openReference(cfg LoadConfig, contractType string, units store.UnitStore, embedder embed.Embedder) (*Reference, error) {
	ref := &Reference{ContractType: contractType, Units: units}

	sparseIdx := make(map[store.Field]store.BM25Index)
	denseIdx := make(map[store.Field]store.VectorStore)
	for _, field := range store.Fields {
		base := store.BM25BasePath(cfg.DataDir, contractType, field)
		backend := store.DetectBM25Backend(base)
		if backend == "" {
			_ = closeAll(ref.closers)
			return nil, cerrors.New(cerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("missing %s BM25 index for %s", field, contractType), nil).
				WithSuggestion("rebuild with 'clausecheck index --force'")
		}
		idx, err := store.NewBM25IndexWithBackend(base, store.DefaultBM25Config(), string(backend))
		if err != nil {
			_ = closeAll(ref.closers)
			return nil, cerrors.New(cerrors.ErrCodeCorruptIndex, "failed to open BM25 index", err)
		}
		ref.closers = append(ref.closers, idx)
		sparseIdx[field] = idx

		path := store.VectorPath(cfg.DataDir, contractType, field)
		if _, err := os.Stat(path); err != nil {
			// A field with no text anywhere has no vector index.
			continue
		}
		vs, err := store.LoadHNSWStore(path)
		if err != nil {
			_ = closeAll(ref.closers)
			return nil, cerrors.New(cerrors.ErrCodeCorruptIndex, "failed to load vector index "+path, err)
		}
		ref.closers = append(ref.closers, vs)
		denseIdx[field] = vs
	}

	sparse, err := searcher.NewSparseSearcher(sparseIdx, guardOptions(cfg, "sparse:"+contractType)...)
	if err != nil {
		_ = closeAll(ref.closers)
		return nil, cerrors.InternalError("failed to create sparse searcher", err)
	}
	ref.Sparse = sparse

	if len(denseIdx) > 0 && embedder != nil {
		dense, err := searcher.NewDenseSearcher(embedder, denseIdx, guardOptions(cfg, "dense:"+contractType)...)
		if err != nil {
			_ = closeAll(ref.closers)
			return nil, cerrors.InternalError("failed to create dense searcher", err)
		}
		ref.Dense = dense
	}
	return ref, nil
}

func guardOptions(cfg LoadConfig, name string) []searcher.Option {
	var breakerOpts []cerrors.CircuitBreakerOption
	if cfg.BreakerMaxFailures > 0 {
		breakerOpts = append(breakerOpts, cerrors.WithMaxFailures(cfg.BreakerMaxFailures))
	}
	if cfg.BreakerResetTimeout > 0 {
		breakerOpts = append(breakerOpts, cerrors.WithResetTimeout(cfg.BreakerResetTimeout))
	}

	opts := []searcher.Option{searcher.WithCircuitBreaker(cerrors.NewCircuitBreaker(name, breakerOpts...))}
	if cfg.RateLimit > 0 {
		opts = append(opts, searcher.WithRateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	return opts
}

func closeAll[T interface{ Close() error }](cs []T) error {
	var first error
	for _, c := range cs {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
