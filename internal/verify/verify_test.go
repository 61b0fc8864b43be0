package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/clausecheck/internal/search"
)

func TestScoreVerifier_ThresholdPerDirection(t *testing.T) {
	v := NewScoreVerifier()
	tests := []struct {
		name       string
		dir        search.Direction
		similarity float64
		accepted   bool
	}{
		{"forward at threshold", search.DirectionForward, 0.7, true},
		{"forward below", search.DirectionForward, 0.69, false},
		{"reverse needs more", search.DirectionReverse, 0.75, false},
		{"reverse accepted", search.DirectionReverse, 0.85, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Verify(context.Background(), Request{Direction: tt.dir, Similarity: tt.similarity})
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, got.Accepted)
			assert.Equal(t, tt.similarity, got.Confidence)
			assert.Contains(t, got.Reason, tt.dir.String())
		})
	}
}

func TestScoreVerifier_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScoreVerifier().Verify(ctx, Request{Similarity: 1})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestFunc_Adapts(t *testing.T) {
	var v Verifier = Func(func(_ context.Context, req Request) (Verdict, error) {
		return Verdict{Accepted: req.Query.ParentID == req.Candidate.ParentID}, nil
	})

	got, err := v.Verify(context.Background(), Request{
		Query:     Section{ParentID: "제3조"},
		Candidate: Section{ParentID: "제3조"},
	})

	require.NoError(t, err)
	assert.True(t, got.Accepted)
}
