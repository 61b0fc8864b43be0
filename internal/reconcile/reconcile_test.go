package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

func newUnit(id, parent string, order int) *store.Unit {
	return &store.Unit{ID: id, ParentID: parent, Title: "Title " + parent, BodyNormalized: id, OrderIndex: order}
}

// fixture stores a small user document and one reference parent with
// embeddings in a memory unit store.
type fixture struct {
	store     *store.MemoryUnitStore
	userUnits []*store.Unit
	reference Parent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryUnitStore()

	user := []*store.Unit{
		newUnit("u1", "UA", 0),
		newUnit("u2", "UA", 1),
		newUnit("u3", "UB", 0),
		newUnit("u4", "UC", 0),
	}
	ref := []*store.Unit{newUnit("r1", "R1", 0), newUnit("r2", "R1", 1)}
	require.NoError(t, s.SaveUnits(ctx, append(append([]*store.Unit{}, user...), ref...)))

	require.NoError(t, s.SaveEmbeddings(ctx, store.FieldBody,
		[]string{"u1", "u2", "u3", "u4", "r1", "r2"},
		[][]float32{{1, 0, 0}, {0.9, 0.1, 0}, {0, 1, 0}, {0, 0, 1}, {1, 0, 0}, {0, 1, 0}}))

	return &fixture{
		store:     s,
		userUnits: user,
		reference: Parent{ParentID: "R1", Title: "Title R1", Units: ref},
	}
}

func (f *fixture) reconciler(t *testing.T, cfg Config) *Reconciler {
	t.Helper()
	src := StoreEmbeddings{Store: f.store, Field: store.FieldBody}
	r, err := New(src, src, cfg)
	require.NoError(t, err)
	return r
}

func TestReconcile_RanksUserSections(t *testing.T) {
	// Given: a reference parent whose units point at UA and UB
	f := newFixture(t)
	r := f.reconciler(t, DefaultConfig())

	// When: reconciling
	got, err := r.Reconcile(context.Background(), []Parent{f.reference}, f.userUnits)

	// Then: candidates are ranked by similarity with UA first
	require.NoError(t, err)
	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, StateHasCandidates, c.State)
	require.Len(t, c.Matches, 3)
	assert.Equal(t, "UA", c.Matches[0].ParentID)
	assert.Equal(t, "UB", c.Matches[1].ParentID)
	assert.Equal(t, []int{0, 1}, c.Matches[0].MatchedUnits)
	assert.Equal(t, c.Matches[0].Similarity, c.Similarity)
	assert.Equal(t, 1.0, c.Matches[0].MaxScore)
	for i := 1; i < len(c.Matches); i++ {
		assert.GreaterOrEqual(t, c.Matches[i-1].Similarity, c.Matches[i].Similarity)
	}
}

func TestReconcile_NoUserEmbeddings(t *testing.T) {
	// Given: a user document whose units have no stored embeddings
	f := newFixture(t)
	bare := []*store.Unit{newUnit("x1", "UX", 0), newUnit("x2", "UY", 0)}
	r := f.reconciler(t, DefaultConfig())
	parents := []Parent{f.reference, {ParentID: "R2", Units: []*store.Unit{newUnit("r9", "R2", 0)}}}

	// When: reconciling
	got, err := r.Reconcile(context.Background(), parents, bare)

	// Then: every parent ends in NoCandidates with similarity 0
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, c := range got {
		assert.Equal(t, StateNoCandidates, c.State)
		assert.Equal(t, 0.0, c.Similarity)
		assert.Empty(t, c.Matches)
	}
}

func TestReconcile_MixedDimensionsDegrade(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SaveEmbeddings(context.Background(), store.FieldBody,
		[]string{"u4"}, [][]float32{{0, 0, 1, 0}}))
	r := f.reconciler(t, DefaultConfig())

	got, err := r.Reconcile(context.Background(), []Parent{f.reference}, f.userUnits)

	require.NoError(t, err)
	assert.Equal(t, StateNoCandidates, got[0].State)
}

// captureWarnings routes the default logger to a buffer for one test.
func captureWarnings(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestReconcile_ReferenceDimensionMismatchWarnsOncePerParent(t *testing.T) {
	// Given: reference embeddings from a different model than the user document
	f := newFixture(t)
	require.NoError(t, f.store.SaveEmbeddings(context.Background(), store.FieldBody,
		[]string{"r1", "r2"}, [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	r := f.reconciler(t, DefaultConfig())
	logs := captureWarnings(t)

	// When: reconciling
	got, err := r.Reconcile(context.Background(), []Parent{f.reference}, f.userUnits)

	// Then: the parent degrades and one coded warning is logged
	require.NoError(t, err)
	assert.Equal(t, StateNoCandidates, got[0].State)
	assert.Equal(t, 1, strings.Count(logs.String(), "reconcile_unit_search_failed"))
	assert.Contains(t, logs.String(), cerrors.ErrCodeDimensionMismatch)
	assert.Contains(t, logs.String(), `"parent_id":"R1"`)
}

func TestReconcile_ReferenceWithoutEmbeddings(t *testing.T) {
	// Given: one embedded reference parent and one without embeddings
	f := newFixture(t)
	r := f.reconciler(t, DefaultConfig())
	orphan := Parent{ParentID: "R2", Units: []*store.Unit{newUnit("r9", "R2", 0)}}

	// When
	got, err := r.Reconcile(context.Background(), []Parent{orphan, f.reference}, f.userUnits)

	// Then: results keep input order and only the embedded parent has matches
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "R2", got[0].ParentID)
	assert.Equal(t, StateNoCandidates, got[0].State)
	assert.Equal(t, "R1", got[1].ParentID)
	assert.Equal(t, StateHasCandidates, got[1].State)
}

func TestReconcile_ManyParentsBoundedWorkers(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.MaxCandidates = 1
	r := f.reconciler(t, cfg)

	parents := make([]Parent, 20)
	for i := range parents {
		p := f.reference
		p.ParentID = fmt.Sprintf("R%d", i)
		parents[i] = p
	}

	got, err := r.Reconcile(context.Background(), parents, f.userUnits)

	require.NoError(t, err)
	require.Len(t, got, 20)
	for i, c := range got {
		assert.Equal(t, fmt.Sprintf("R%d", i), c.ParentID)
		assert.Equal(t, StateHasCandidates, c.State)
		assert.Len(t, c.Matches, 1)
	}
}

func TestReconcile_EmptyInput(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(t, DefaultConfig())

	got, err := r.Reconcile(context.Background(), nil, f.userUnits)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNew_RejectsNegativeLimits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCandidates = -1

	_, err := New(nil, nil, cfg)

	assert.Error(t, err)
}

func TestCandidate_Transitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
		ok   bool
	}{
		{"search then match", []State{StateSearching, StateHasCandidates}, true},
		{"search then none", []State{StateSearching, StateNoCandidates}, true},
		{"build failure", []State{StateNoCandidates}, true},
		{"skip searching", []State{StateHasCandidates}, false},
		{"leave terminal", []State{StateSearching, StateNoCandidates, StateSearching}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Candidate{ParentID: "R1"}
			var err error
			for _, s := range tt.path {
				if err = c.transition(s); err != nil {
					break
				}
			}
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
