package check

import (
	"time"

	"github.com/Aman-CERP/clausecheck/internal/reconcile"
	"github.com/Aman-CERP/clausecheck/internal/verify"
)

// Disposition is the final call on one reference section.
type Disposition string

const (
	// DispositionPresent means the user document covers the section.
	DispositionPresent Disposition = "present"
	// DispositionMissing means no verified counterpart was found.
	DispositionMissing Disposition = "missing"
)

// Report is the outcome of one check run.
type Report struct {
	RunID        string    `json:"run_id"`
	ContractType string    `json:"contract_type"`
	DocumentID   string    `json:"document_id"`
	StartedAt    time.Time `json:"started_at"`
	Timings      Timings   `json:"timings"`

	Articles   []*ArticleReport   `json:"articles"`
	References []*ReferenceReport `json:"references"`

	// Degraded counts lookups that failed or timed out and were treated as
	// empty during the forward pass.
	Degraded int `json:"degraded"`
	Summary  Summary `json:"summary"`
}

// Timings records how long each pass took.
type Timings struct {
	Forward time.Duration `json:"forward"`
	Reverse time.Duration `json:"reverse"`
	Total   time.Duration `json:"total"`
}

// Summary holds report totals.
type Summary struct {
	Articles        int `json:"articles"`
	MatchedArticles int `json:"matched_articles"`
	References      int `json:"references"`
	Present         int `json:"present"`
	Missing         int `json:"missing"`
	// Recovered counts reference sections found only by the reverse pass.
	Recovered int `json:"recovered"`
}

// ArticleReport is the forward-pass result for one user article.
type ArticleReport struct {
	ParentID string          `json:"parent_id"`
	Title    string          `json:"title"`
	SubItems int             `json:"sub_items"`
	Skipped  []int           `json:"skipped,omitempty"`
	Matches  []*MatchVerdict `json:"matches"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Verified reports whether any match of the article was accepted.
func (a *ArticleReport) Verified() bool {
	for _, m := range a.Matches {
		if m.Verdict.Accepted {
			return true
		}
	}
	return false
}

// MatchVerdict is one ranked reference section with its verdict.
type MatchVerdict struct {
	ParentID        string         `json:"parent_id"`
	Title           string         `json:"title"`
	MatchedSubItems []int          `json:"matched_sub_items"`
	AverageScore    float64        `json:"average_score"`
	MaxScore        float64        `json:"max_score"`
	Verdict         verify.Verdict `json:"verdict"`
}

// ReferenceReport is the disposition of one reference section.
type ReferenceReport struct {
	ParentID    string      `json:"parent_id"`
	Title       string      `json:"title"`
	Disposition Disposition `json:"disposition"`

	// MatchedBy lists the user articles that cover the section.
	MatchedBy []string `json:"matched_by,omitempty"`
	// Reconciled is set when the reverse pass found the counterpart.
	Reconciled bool `json:"reconciled"`

	// Reverse-pass details; empty for sections confirmed forward.
	State      reconcile.State   `json:"state,omitempty"`
	Similarity float64           `json:"similarity,omitempty"`
	Candidates []reconcile.Match `json:"candidates,omitempty"`
	Verdict    *verify.Verdict   `json:"verdict,omitempty"`
}
