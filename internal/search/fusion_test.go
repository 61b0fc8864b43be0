package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

func TestFuseScores_CombinesFieldsAndModes(t *testing.T) {
	// Given: dense hits on both fields and sparse hits on the body
	dense := FieldHits{
		Body:  []Hit{{"U1", 0.9}, {"U2", 0.5}},
		Title: []Hit{{"U1", 0.6}},
	}
	sparse := FieldHits{
		Body: []Hit{{"U2", 10}, {"U3", 5}},
	}

	// When: fusing with default weights
	got := FuseScores(dense, sparse, DefaultMatchConfig())

	// Then: U1 wins on dense, U2 gets only the sparse share, U3 is bottom
	require.Len(t, got, 3)
	assert.Equal(t, "U1", got[0].UnitID)
	assert.InDelta(t, 0.85, got[0].Combined, 1e-9)
	assert.Equal(t, "U2", got[1].UnitID)
	assert.InDelta(t, 0.15, got[1].Combined, 1e-9)
	assert.Equal(t, "U3", got[2].UnitID)
	assert.InDelta(t, 0.0, got[2].Combined, 1e-9)
}

func TestFuseScores_NormalizationBounds(t *testing.T) {
	dense := FieldHits{Body: []Hit{{"a", 0.91}, {"b", 0.33}, {"c", 0.5}, {"d", 0.12}}}
	sparse := FieldHits{Title: []Hit{{"b", 17.2}, {"e", 3.1}, {"a", 9}}}

	for _, s := range FuseScores(dense, sparse, DefaultMatchConfig()) {
		assert.GreaterOrEqual(t, s.Dense, 0.0)
		assert.LessOrEqual(t, s.Dense, 1.0)
		assert.GreaterOrEqual(t, s.Sparse, 0.0)
		assert.LessOrEqual(t, s.Sparse, 1.0)
		assert.GreaterOrEqual(t, s.Combined, 0.0)
		assert.LessOrEqual(t, s.Combined, 1.0)
	}
}

func TestFuseScores_SingleDistinctValueNormalizesToOne(t *testing.T) {
	tests := []struct {
		name  string
		dense FieldHits
	}{
		{"singleton", FieldHits{Body: []Hit{{"U1", 0.42}}}},
		{"all equal", FieldHits{Body: []Hit{{"U1", 0.3}, {"U2", 0.3}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range FuseScores(tt.dense, FieldHits{}, DefaultMatchConfig()) {
				assert.Equal(t, 1.0, s.Dense)
			}
		})
	}
}

func TestFuseScores_SparseEmptyUsesDenseOnly(t *testing.T) {
	// Given: dense hits and no sparse hits
	dense := FieldHits{Body: []Hit{{"U1", 0.9}, {"U2", 0.4}, {"U3", 0.7}}}

	// When: fusing
	got := FuseScores(dense, FieldHits{}, DefaultMatchConfig())

	// Then: combined equals the normalized dense score for every unit
	for _, s := range got {
		assert.Equal(t, s.Dense, s.Combined, s.UnitID)
	}
	assert.Equal(t, 1.0, got[0].Combined)
}

func TestFuseScores_DenseEmptyUsesSparseOnly(t *testing.T) {
	sparse := FieldHits{Body: []Hit{{"U1", 2}, {"U2", 4}}}

	got := FuseScores(FieldHits{}, sparse, DefaultMatchConfig())

	require.Len(t, got, 2)
	assert.Equal(t, "U2", got[0].UnitID)
	assert.Equal(t, 1.0, got[0].Combined)
}

func TestFuseScores_TiesBrokenByUnitID(t *testing.T) {
	dense := FieldHits{Body: []Hit{{"U9", 0.5}, {"U1", 0.5}, {"U5", 0.5}}}

	got := FuseScores(dense, FieldHits{}, DefaultMatchConfig())

	ids := []string{got[0].UnitID, got[1].UnitID, got[2].UnitID}
	assert.Equal(t, []string{"U1", "U5", "U9"}, ids)
}

func TestFuseScores_BothEmpty(t *testing.T) {
	got := FuseScores(FieldHits{}, FieldHits{}, DefaultMatchConfig())

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEffectiveWeights(t *testing.T) {
	cfg := DefaultMatchConfig()
	tests := []struct {
		name                    string
		denseEmpty, sparseEmpty bool
		wd, ws                  float64
	}{
		{"both present", false, false, 0.85, 0.15},
		{"sparse empty", false, true, 1, 0},
		{"dense empty", true, false, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wd, ws := EffectiveWeights(tt.denseEmpty, tt.sparseEmpty, cfg)
			assert.Equal(t, tt.wd, wd)
			assert.Equal(t, tt.ws, ws)
		})
	}
}

func TestSimilarityFromDistance(t *testing.T) {
	assert.Equal(t, 1.0, SimilarityFromDistance(0))
	assert.Equal(t, 0.5, SimilarityFromDistance(1))
	assert.Equal(t, 1.0, SimilarityFromDistance(-0.1))
}

func TestFuser_BackendErrorDegrades(t *testing.T) {
	// Given: a working dense backend and a failing sparse backend
	units := memUnits(unit("U1", "P1", 0), unit("U2", "P2", 0))
	dense := &stubLookup{byField: map[store.Field][]Hit{store.FieldBody: {{"U1", 0.9}, {"U2", 0.3}}}}
	sparse := &stubLookup{err: errors.New("fts5 table missing")}
	f, err := NewFuser(dense, sparse, units, DefaultMatchConfig())
	require.NoError(t, err)

	// When: fusing
	res := f.Fuse(context.Background(), Query{Body: "notice", Title: "Termination"})

	// Then: dense results survive and both sparse calls are reported
	require.Len(t, res.Units, 2)
	assert.Equal(t, "U1", res.Units[0].Unit.ID)
	assert.Equal(t, 1.0, res.Units[0].CombinedScore)
	require.Len(t, res.Degraded, 2)
	for _, d := range res.Degraded {
		assert.Equal(t, cerrors.ErrCodeBackendUnavailable, cerrors.GetCode(d))
	}
}

func TestFuser_TimeoutDegrades(t *testing.T) {
	// Given: a sparse backend slower than the lookup timeout
	units := memUnits(unit("U1", "P1", 0))
	dense := &stubLookup{byField: map[store.Field][]Hit{store.FieldBody: {{"U1", 0.9}}}}
	sparse := &stubLookup{delay: time.Second, byField: map[store.Field][]Hit{store.FieldBody: {{"U1", 3}}}}
	cfg := DefaultMatchConfig()
	cfg.LookupTimeout = 20 * time.Millisecond
	f, err := NewFuser(dense, sparse, units, cfg)
	require.NoError(t, err)

	// When: fusing a body-only query
	res := f.Fuse(context.Background(), Query{Body: "notice"})

	// Then: the sparse contribution is empty and flagged as a timeout
	require.Len(t, res.Units, 1)
	assert.Equal(t, 1.0, res.Units[0].CombinedScore)
	require.Len(t, res.Degraded, 1)
	assert.Equal(t, cerrors.ErrCodeBackendTimeout, cerrors.GetCode(res.Degraded[0]))
}

func TestFuser_DropsUnknownUnitsAndSkipsEmptyQueries(t *testing.T) {
	units := memUnits(unit("U1", "P1", 0))
	dense := &stubLookup{byField: map[store.Field][]Hit{store.FieldBody: {{"U1", 0.9}, {"ghost", 0.95}}}}
	f, err := NewFuser(dense, nil, units, DefaultMatchConfig())
	require.NoError(t, err)

	res := f.Fuse(context.Background(), Query{Body: "notice"})

	require.Len(t, res.Units, 1)
	assert.Equal(t, "U1", res.Units[0].Unit.ID)
	assert.Empty(t, res.Degraded)
	assert.Equal(t, int32(1), dense.calls.Load(), "empty title query is not issued")
}

func TestMatchConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MatchConfig)
		code   string
	}{
		{"defaults", func(*MatchConfig) {}, ""},
		{"field weights off", func(c *MatchConfig) { c.TitleWeight = 0.4 }, cerrors.ErrCodeWeightsInvalid},
		{"mode weights off", func(c *MatchConfig) { c.DenseWeight = 0.5 }, cerrors.ErrCodeWeightsInvalid},
		{"negative weight", func(c *MatchConfig) { c.DenseWeight, c.SparseWeight = -0.5, 1.5 }, cerrors.ErrCodeWeightsInvalid},
		{"within tolerance", func(c *MatchConfig) { c.TextWeight = 0.7 + 1e-9 }, ""},
		{"negative top-k", func(c *MatchConfig) { c.FinalTopK = -1 }, cerrors.ErrCodeTopKInvalid},
		{"threshold above one", func(c *MatchConfig) { c.ScoreThreshold = 1.2 }, cerrors.ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMatchConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, cerrors.GetCode(err))
			assert.True(t, cerrors.IsFatal(err))
		})
	}
}
