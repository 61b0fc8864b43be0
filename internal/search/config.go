package search

import (
	"fmt"
	"math"
	"time"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
)

// Defaults for MatchConfig.
const (
	DefaultTextWeight     = 0.7
	DefaultTitleWeight    = 0.3
	DefaultDenseWeight    = 0.85
	DefaultSparseWeight   = 0.15
	DefaultDenseTopK      = 50
	DefaultSparseTopK     = 50
	DefaultPerSubItemTopK = 3
	DefaultFinalTopK      = 5
	DefaultScoreThreshold = 0.7
	DefaultLookupTimeout  = 5 * time.Second
	DefaultParallelism    = 4

	// weightTolerance is the allowed drift of a weight pair from 1.0.
	weightTolerance = 1e-6
)

// MatchConfig configures fusion and article matching.
type MatchConfig struct {
	// Field weights, must sum to 1.0.
	TextWeight  float64
	TitleWeight float64

	// Mode weights, must sum to 1.0. Overridden when one mode returns nothing.
	DenseWeight  float64
	SparseWeight float64

	// Candidate pool sizes per lookup, before fusion.
	DenseTopK  int
	SparseTopK int

	PerSubItemTopK int
	FinalTopK      int

	// ScoreThreshold drops article matches whose average score is below it
	// when ThresholdEnabled is set.
	ScoreThreshold   float64
	ThresholdEnabled bool

	// LookupTimeout bounds each dense or sparse call. Zero disables it.
	LookupTimeout time.Duration

	// Parallelism bounds concurrent sub-item queries.
	Parallelism int
}

// DefaultMatchConfig returns the default matching configuration.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		TextWeight:       DefaultTextWeight,
		TitleWeight:      DefaultTitleWeight,
		DenseWeight:      DefaultDenseWeight,
		SparseWeight:     DefaultSparseWeight,
		DenseTopK:        DefaultDenseTopK,
		SparseTopK:       DefaultSparseTopK,
		PerSubItemTopK:   DefaultPerSubItemTopK,
		FinalTopK:        DefaultFinalTopK,
		ScoreThreshold:   DefaultScoreThreshold,
		ThresholdEnabled: true,
		LookupTimeout:    DefaultLookupTimeout,
		Parallelism:      DefaultParallelism,
	}
}

// Validate reports the first configuration error. All errors are fatal
// CheckErrors in the config category.
func (c MatchConfig) Validate() error {
	if err := validateWeightPair("text_weight", c.TextWeight, "title_weight", c.TitleWeight); err != nil {
		return err
	}
	if err := validateWeightPair("dense_weight", c.DenseWeight, "sparse_weight", c.SparseWeight); err != nil {
		return err
	}

	topKs := []struct {
		name  string
		value int
	}{
		{"dense_top_k", c.DenseTopK},
		{"sparse_top_k", c.SparseTopK},
		{"per_sub_item_top_k", c.PerSubItemTopK},
		{"final_top_k", c.FinalTopK},
	}
	for _, k := range topKs {
		if k.value < 0 {
			return cerrors.New(cerrors.ErrCodeTopKInvalid,
				fmt.Sprintf("%s must be non-negative, got %d", k.name, k.value), nil).
				WithDetail("setting", k.name)
		}
	}

	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 || math.IsNaN(c.ScoreThreshold) {
		return cerrors.ConfigError(fmt.Sprintf("score_threshold must be between 0 and 1, got %g", c.ScoreThreshold), nil).
			WithDetail("setting", "score_threshold")
	}
	if c.LookupTimeout < 0 {
		return cerrors.ConfigError(fmt.Sprintf("lookup_timeout must be non-negative, got %s", c.LookupTimeout), nil)
	}
	if c.Parallelism < 0 {
		return cerrors.ConfigError(fmt.Sprintf("parallelism must be non-negative, got %d", c.Parallelism), nil)
	}

	return nil
}

func validateWeightPair(nameA string, a float64, nameB string, b float64) error {
	for _, w := range []struct {
		name  string
		value float64
	}{{nameA, a}, {nameB, b}} {
		if w.value < 0 || w.value > 1 || math.IsNaN(w.value) {
			return cerrors.New(cerrors.ErrCodeWeightsInvalid,
				fmt.Sprintf("%s must be between 0 and 1, got %g", w.name, w.value), nil).
				WithDetail("setting", w.name)
		}
	}
	if math.Abs(a+b-1.0) > weightTolerance {
		return cerrors.New(cerrors.ErrCodeWeightsInvalid,
			fmt.Sprintf("%s + %s must equal 1.0, got %g", nameA, nameB, a+b), nil).
			WithSuggestion(fmt.Sprintf("set %s to %g", nameB, 1-a))
	}
	return nil
}
