// Package store provides the persistence layer for indexed contract units:
// the unit store (SQLite or memory), per-field BM25 indices (SQLite FTS5 or
// Bleve) and per-field HNSW vector indices.
package store

import (
	"context"
	"fmt"
	"time"
)

// Field selects which text of a unit a lookup runs against.
type Field string

const (
	FieldTitle Field = "title"
	FieldBody  Field = "body"
)

// Fields lists every indexed field in a stable order.
var Fields = []Field{FieldBody, FieldTitle}

// Text returns the unit text indexed under f.
func (f Field) Text(u *Unit) string {
	if f == FieldTitle {
		return u.Title
	}
	return u.BodyNormalized
}

// Unit is the atomic indexed piece of a contract: one paragraph or sub-clause
// belonging to a parent section (article). Immutable once indexed.
type Unit struct {
	ID             string `json:"id"`
	DocumentID     string `json:"document_id"`
	ContractType   string `json:"contract_type"`
	ParentID       string `json:"parent_id"`
	Title          string `json:"title"`
	BodyRaw        string `json:"body_raw"`
	BodyNormalized string `json:"body_normalized"`
	OrderIndex     int    `json:"order_index"`
}

// DocumentKind distinguishes the reference library from user submissions.
type DocumentKind string

const (
	DocumentKindReference DocumentKind = "reference"
	DocumentKindUser      DocumentKind = "user"
)

// DocumentInfo describes one ingested contract.
type DocumentInfo struct {
	ID           string
	ContractType string
	Kind         DocumentKind
	UnitCount    int
	IndexedAt    time.Time
}

// State keys for the unit store.
const (
	// StateKeyEmbeddingModel stores the embedder model used for stored embeddings.
	StateKeyEmbeddingModel = "embedding_model"
	// StateKeyEmbeddingDimension stores the embedding dimension.
	StateKeyEmbeddingDimension = "embedding_dimension"
	// StateKeySchemaVersion stores the unit store schema version.
	StateKeySchemaVersion = "schema_version"
)

// CurrentSchemaVersion is the current unit store schema version.
const CurrentSchemaVersion = 1

// UnitStore persists units, their precomputed embeddings, and document metadata.
type UnitStore interface {
	// Unit operations
	SaveUnits(ctx context.Context, units []*Unit) error
	// GetUnits returns the units found for ids. Missing IDs are skipped.
	GetUnits(ctx context.Context, ids []string) ([]*Unit, error)
	UnitsByDocument(ctx context.Context, documentID string) ([]*Unit, error)

	// Document operations
	SaveDocument(ctx context.Context, doc *DocumentInfo) error
	ListDocuments(ctx context.Context, kind DocumentKind) ([]*DocumentInfo, error)

	// Embedding operations. Missing IDs are absent from the returned map.
	SaveEmbeddings(ctx context.Context, field Field, ids []string, vectors [][]float32) error
	GetEmbeddings(ctx context.Context, field Field, ids []string) (map[string][]float32, error)

	// State operations (key-value store for index-wide settings)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	Close() error
}

// Document represents a document to be indexed in BM25.
type Document struct {
	ID      string // Unit ID
	Content string // Field text
}

// BM25Result represents a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the BM25 index.
type IndexStats struct {
	DocumentCount int
}

// BM25Index provides keyword search using BM25 scoring.
type BM25Index interface {
	// Index adds documents to the index, replacing existing IDs.
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, best first.
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Delete removes documents from index
	Delete(ctx context.Context, docIDs []string) error

	// AllIDs returns all document IDs in the index
	AllIDs() ([]string, error)

	Stats() *IndexStats

	// Persistence
	Save(path string) error
	Close() error
}

// BM25Config configures the BM25 index.
type BM25Config struct {
	// StopWords is a list of words to filter out during tokenization
	StopWords []string
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		StopWords: DefaultStopWords,
	}
}

// DefaultStopWords holds boilerplate that appears in nearly every clause.
// Korean particles are removed by the tokenizer, not by this list.
var DefaultStopWords = []string{
	"the", "and", "or", "of", "to", "in", "a", "an", "by", "for", "on",
	"with", "be", "is", "are", "as", "at", "any", "such", "this", "that",
	"shall", "hereof", "herein", "thereof",
	"및", "또는", "등", "그", "이", "해당",
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Unit ID
	Distance float32 // Lower is more similar
	Score    float32 // Metric-specific similarity in [0,1]
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension.
	Dimensions int

	// Metric is the distance metric: "l2" (euclidean) or "cos" (cosine). Default "l2".
	Metric string

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int
}

// DefaultVectorStoreConfig returns the defaults used for unit indices.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "l2",
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides nearest-neighbour search over unit embeddings.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	Contains(id string) bool
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (rebuild with 'clausecheck index --force')", e.Expected, e.Got)
}
