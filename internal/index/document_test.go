package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

const leaseJSON = `{
  "document_id": "std-lease",
  "contract_type": "lease",
  "units": [
    {"id": "s10-1", "parent_id": "제10조", "title": "계약의 해지", "body_raw": "① 임차인은  언제든지 해지를 통지할 수 있다.", "order_index": 0},
    {"id": "s2-1", "parent_id": "제2조", "title": "보증금", "body_normalized": "임차인은 보증금을 지급한다.", "order_index": 0},
    {"id": "s2-2", "parent_id": "제2조", "title": "보증금", "body_normalized": "보증금은 반환한다.", "order_index": 1}
  ]
}`

func TestLoadDocumentFile(t *testing.T) {
	// Given: a reference document on disk
	path := filepath.Join(t.TempDir(), "lease.json")
	require.NoError(t, os.WriteFile(path, []byte(leaseJSON), 0o644))

	// When: loading it
	doc, err := LoadDocumentFile(path)

	// Then: units carry the document fields and a normalized body
	require.NoError(t, err)
	assert.Equal(t, "std-lease", doc.ID)
	require.Len(t, doc.Units, 3)
	assert.Equal(t, "lease", doc.Units[0].ContractType)
	assert.Equal(t, "std-lease", doc.Units[0].DocumentID)
	assert.Equal(t, "① 임차인은 언제든지 해지를 통지할 수 있다.", doc.Units[0].BodyNormalized)
}

func TestLoadDocumentFile_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))

	_, err := LoadDocumentFile(filepath.Join(dir, "missing.json"))
	assert.Equal(t, cerrors.ErrCodeFileNotFound, cerrors.GetCode(err))

	_, err = LoadDocumentFile(bad)
	assert.Equal(t, cerrors.ErrCodeInvalidInput, cerrors.GetCode(err))
}

func TestDocument_Validate(t *testing.T) {
	u := func(id, parent string) *store.Unit { return &store.Unit{ID: id, ParentID: parent} }

	tests := []struct {
		name string
		doc  Document
		ok   bool
	}{
		{"valid", Document{ID: "d", ContractType: "lease", Units: []*store.Unit{u("a", "P")}}, true},
		{"missing id", Document{ContractType: "lease", Units: []*store.Unit{u("a", "P")}}, false},
		{"missing type", Document{ID: "d", Units: []*store.Unit{u("a", "P")}}, false},
		{"path in type", Document{ID: "d", ContractType: "../x", Units: []*store.Unit{u("a", "P")}}, false},
		{"no units", Document{ID: "d", ContractType: "lease"}, false},
		{"unit without parent", Document{ID: "d", ContractType: "lease", Units: []*store.Unit{u("a", "")}}, false},
		{"duplicate unit", Document{ID: "d", ContractType: "lease", Units: []*store.Unit{u("a", "P"), u("a", "Q")}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestGroupParents(t *testing.T) {
	units := []*store.Unit{
		{ID: "c", ParentID: "제10조", Title: "해지", OrderIndex: 0},
		{ID: "b", ParentID: "제2조", Title: "보증금", OrderIndex: 1},
		{ID: "a", ParentID: "제2조", Title: "보증금", OrderIndex: 0},
		{ID: "d", ParentID: "부칙", OrderIndex: 0},
	}

	got := GroupParents(units)

	require.Len(t, got, 3)
	assert.Equal(t, "제2조", got[0].ParentID)
	assert.Equal(t, "a", got[0].Units[0].ID)
	assert.Equal(t, "b", got[0].Units[1].ID)
	assert.Equal(t, "제10조", got[1].ParentID)
	assert.Equal(t, "부칙", got[2].ParentID)
}
