package reconcile

import "fmt"

// State is the reconciliation state of one reference parent.
type State int

const (
	StatePending State = iota
	StateSearching
	StateHasCandidates
	StateNoCandidates
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSearching:
		return "searching"
	case StateHasCandidates:
		return "has_candidates"
	case StateNoCandidates:
		return "no_candidates"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateHasCandidates || s == StateNoCandidates
}

// allowed lists the legal transitions. Pending may jump straight to
// NoCandidates when the user index cannot be built.
var allowed = map[State][]State{
	StatePending:   {StateSearching, StateNoCandidates},
	StateSearching: {StateHasCandidates, StateNoCandidates},
}

func (c *Candidate) transition(to State) error {
	for _, s := range allowed[c.State] {
		if s == to {
			c.State = to
			return nil
		}
	}
	return fmt.Errorf("invalid reconcile transition for %s: %s -> %s", c.ParentID, c.State, to)
}

// noCandidates ends the candidate with no matches and similarity 0.
func (c *Candidate) noCandidates() {
	c.Matches = []Match{}
	c.Similarity = 0
	if !c.State.Terminal() {
		c.State = StateNoCandidates
	}
}
