package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// BM25Backend represents the BM25 index backend type.
type BM25Backend string

const (
	// BM25BackendSQLite uses SQLite FTS5 (default).
	BM25BackendSQLite BM25Backend = "sqlite"

	// BM25BackendBleve uses Bleve v2. Single process only.
	BM25BackendBleve BM25Backend = "bleve"
)

// NewBM25IndexWithBackend creates a BM25Index using the specified backend.
// basePath has no extension: ".db" or ".bleve" is appended per backend.
// If basePath is empty, creates an in-memory index.
func NewBM25IndexWithBackend(basePath string, config BM25Config, backend string) (BM25Index, error) {
	switch BM25Backend(backend) {
	case BM25BackendSQLite, "":
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteBM25Index(path, config)

	case BM25BackendBleve:
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveBM25Index(path, config)

	default:
		return nil, fmt.Errorf("unknown BM25 backend: %s (valid options: sqlite, bleve)", backend)
	}
}

// DetectBM25Backend reports which backend an existing index at basePath uses,
// or "" if none exists.
func DetectBM25Backend(basePath string) BM25Backend {
	if info, err := os.Stat(basePath + ".db"); err == nil && !info.IsDir() {
		return BM25BackendSQLite
	}
	if info, err := os.Stat(basePath + ".bleve"); err == nil && info.IsDir() {
		return BM25BackendBleve
	}
	return ""
}

// BM25BasePath returns the base path of the BM25 index for one field of a
// contract type inside dataDir.
func BM25BasePath(dataDir, contractType string, field Field) string {
	return filepath.Join(dataDir, contractType, "bm25_"+string(field))
}

// VectorPath returns the HNSW index path for one field of a contract type.
func VectorPath(dataDir, contractType string, field Field) string {
	return filepath.Join(dataDir, contractType, "vectors_"+string(field)+".hnsw")
}

// UnitStorePath returns the path of the shared SQLite unit store.
func UnitStorePath(dataDir string) string {
	return filepath.Join(dataDir, "units.db")
}
