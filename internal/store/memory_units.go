package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryUnitStore is a UnitStore held entirely in memory. The check command
// uses it for the user document, which is never persisted.
type MemoryUnitStore struct {
	mu         sync.RWMutex
	units      map[string]*Unit
	documents  map[string]*DocumentInfo
	embeddings map[Field]map[string][]float32
	state      map[string]string
}

// NewMemoryUnitStore creates an empty store.
func NewMemoryUnitStore() *MemoryUnitStore {
	return &MemoryUnitStore{
		units:      make(map[string]*Unit),
		documents:  make(map[string]*DocumentInfo),
		embeddings: make(map[Field]map[string][]float32),
		state:      make(map[string]string),
	}
}

var _ UnitStore = (*MemoryUnitStore)(nil)

// SaveUnits stores copies of units, replacing existing IDs.
func (m *MemoryUnitStore) SaveUnits(ctx context.Context, units []*Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range units {
		cp := *u
		m.units[u.ID] = &cp
	}
	return nil
}

// GetUnits returns the units found for ids, in ids order.
func (m *MemoryUnitStore) GetUnits(ctx context.Context, ids []string) ([]*Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Unit, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.units[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

// UnitsByDocument returns a document's units ordered by parent then order index.
func (m *MemoryUnitStore) UnitsByDocument(ctx context.Context, documentID string) ([]*Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*Unit{}
	for _, u := range m.units {
		if u.DocumentID == documentID {
			result = append(result, u)
		}
	}
	SortUnits(result)
	return result, nil
}

// SaveDocument records document metadata.
func (m *MemoryUnitStore) SaveDocument(ctx context.Context, doc *DocumentInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *doc
	m.documents[doc.ID] = &cp
	return nil
}

// ListDocuments returns documents of kind, or all documents if kind is "".
func (m *MemoryUnitStore) ListDocuments(ctx context.Context, kind DocumentKind) ([]*DocumentInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*DocumentInfo{}
	for _, d := range m.documents {
		if kind == "" || d.Kind == kind {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// SaveEmbeddings stores one vector per unit ID for field.
func (m *MemoryUnitStore) SaveEmbeddings(ctx context.Context, field Field, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.embeddings[field]
	if !ok {
		byID = make(map[string][]float32)
		m.embeddings[field] = byID
	}
	for i, id := range ids {
		byID[id] = vectors[i]
	}
	return nil
}

// GetEmbeddings returns stored vectors for ids under field.
func (m *MemoryUnitStore) GetEmbeddings(ctx context.Context, field Field, ids []string) (map[string][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]float32, len(ids))
	for _, id := range ids {
		if v, ok := m.embeddings[field][id]; ok {
			result[id] = v
		}
	}
	return result, nil
}

// GetState returns the value for key, or "" if unset.
func (m *MemoryUnitStore) GetState(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state[key], nil
}

// SetState sets key to value.
func (m *MemoryUnitStore) SetState(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[key] = value
	return nil
}

// Close is a no-op.
func (m *MemoryUnitStore) Close() error {
	return nil
}

// SortUnits orders units by parent ID, then order index, then unit ID.
func SortUnits(units []*Unit) {
	sort.Slice(units, func(i, j int) bool {
		a, b := units[i], units[j]
		if a.ParentID != b.ParentID {
			return a.ParentID < b.ParentID
		}
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		return a.ID < b.ID
	})
}
