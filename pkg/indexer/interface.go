package indexer

import (
	"context"

	"github.com/Aman-CERP/clausecheck/internal/store"
)

// Indexer writes units into an index.
//
// Implementations must be thread-safe for concurrent use.
type Indexer interface {
	// Index adds units to the index.
	//
	// Behavior:
	//   - Idempotent: re-indexing the same unit ID replaces it
	//   - Units whose field text is empty are skipped
	//   - Empty slice is a no-op (returns nil)
	Index(ctx context.Context, units []*store.Unit) error

	// Delete removes units by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Stats returns a snapshot of index statistics.
	Stats() IndexStats

	// Close releases the underlying index. Safe to call multiple times.
	Close() error
}

// IndexStats holds statistics about an index.
type IndexStats struct {
	// DocumentCount is the number of indexed units.
	DocumentCount int
}

// fieldTexts returns the IDs and texts of units with non-empty text in field.
func fieldTexts(field store.Field, units []*store.Unit) ([]string, []string) {
	ids := make([]string, 0, len(units))
	texts := make([]string, 0, len(units))
	for _, u := range units {
		if u == nil {
			continue
		}
		text := field.Text(u)
		if text == "" {
			continue
		}
		ids = append(ids, u.ID)
		texts = append(texts, text)
	}
	return ids, texts
}
