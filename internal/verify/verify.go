// Package verify holds the collaborator that turns ranked candidates into
// accept or reject decisions. Retrieval never decides; a Verifier does.
package verify

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/clausecheck/internal/search"
)

// Defaults for ScoreVerifier.
const (
	DefaultForwardThreshold = 0.7
	DefaultReverseThreshold = 0.8
)

// Section is one side of a verification request.
type Section struct {
	ParentID string
	Title    string
	Text     string
}

// Request asks whether Candidate corresponds to Query.
type Request struct {
	Direction  search.Direction
	Query      Section
	Candidate  Section
	Similarity float64
}

// Verdict is a verifier's decision.
type Verdict struct {
	Accepted   bool    `json:"accepted"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// Verifier judges retrieval candidates. Implementations may call a
// language model; they must be safe for concurrent use.
type Verifier interface {
	Verify(ctx context.Context, req Request) (Verdict, error)
}

// ScoreVerifier accepts a candidate when its similarity reaches the
// threshold for the request's direction.
type ScoreVerifier struct {
	Forward float64
	Reverse float64
}

var _ Verifier = (*ScoreVerifier)(nil)

// NewScoreVerifier returns a ScoreVerifier with the default thresholds.
func NewScoreVerifier() *ScoreVerifier {
	return &ScoreVerifier{Forward: DefaultForwardThreshold, Reverse: DefaultReverseThreshold}
}

// Verify implements Verifier.
func (v *ScoreVerifier) Verify(ctx context.Context, req Request) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}

	threshold := v.Forward
	if req.Direction == search.DirectionReverse {
		threshold = v.Reverse
	}

	accepted := req.Similarity >= threshold
	reason := fmt.Sprintf("similarity %.3f below %s threshold %.2f", req.Similarity, req.Direction, threshold)
	if accepted {
		reason = fmt.Sprintf("similarity %.3f meets %s threshold %.2f", req.Similarity, req.Direction, threshold)
	}
	return Verdict{Accepted: accepted, Confidence: req.Similarity, Reason: reason}, nil
}

// Func adapts a function to the Verifier interface.
type Func func(ctx context.Context, req Request) (Verdict, error)

// Verify implements Verifier.
func (f Func) Verify(ctx context.Context, req Request) (Verdict, error) {
	return f(ctx, req)
}
