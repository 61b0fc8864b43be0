// Package check runs the two-pass consistency check of a user contract
// against the reference library of its contract type.
//
// The forward pass matches every user article against the reference
// indices and lets a Verifier confirm the ranked sections. Reference
// sections no confirmed match points at are handed to the reverse pass,
// which searches the user document for them and asks the Verifier again.
// Whatever survives neither pass is reported missing.
package check

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/index"
	"github.com/Aman-CERP/clausecheck/internal/reconcile"
	"github.com/Aman-CERP/clausecheck/internal/search"
	"github.com/Aman-CERP/clausecheck/internal/store"
	"github.com/Aman-CERP/clausecheck/internal/verify"
)

// DefaultArticleParallelism bounds concurrent user articles in the forward pass.
const DefaultArticleParallelism = 4

// Config configures a Checker.
type Config struct {
	Match     search.MatchConfig
	Reconcile reconcile.Config

	ArticleParallelism int
}

// DefaultConfig returns the default checker configuration.
func DefaultConfig() Config {
	return Config{
		Match:              search.DefaultMatchConfig(),
		Reconcile:          reconcile.DefaultConfig(),
		ArticleParallelism: DefaultArticleParallelism,
	}
}

// Request is one user document to check.
type Request struct {
	ContractType string
	DocumentID   string
	Units        []*store.Unit

	// Embeddings serves the body embeddings of Units for the reverse pass.
	// Without it every unmatched reference section is reported missing.
	Embeddings reconcile.EmbeddingSource
}

// Checker runs check requests against a frozen registry. It is safe for
// concurrent use.
type Checker struct {
	registry *index.Registry
	verifier verify.Verifier
	cfg      Config
}

// New validates cfg and creates a Checker. A nil verifier uses
// verify.NewScoreVerifier.
func New(registry *index.Registry, verifier verify.Verifier, cfg Config) (*Checker, error) {
	if registry == nil {
		return nil, cerrors.InternalError("registry is required", nil)
	}
	if err := cfg.Match.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Reconcile.Validate(); err != nil {
		return nil, err
	}
	if cfg.ArticleParallelism <= 0 {
		cfg.ArticleParallelism = DefaultArticleParallelism
	}
	if verifier == nil {
		verifier = verify.NewScoreVerifier()
	}
	return &Checker{registry: registry, verifier: verifier, cfg: cfg}, nil
}

// Run checks one user document. Only configuration problems, an unknown
// contract type and cancellation are returned as errors; backend failures
// degrade the report instead.
func (c *Checker) Run(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()

	ref, err := c.registry.Get(req.ContractType)
	if err != nil {
		return nil, err
	}
	if len(req.Units) == 0 {
		return nil, cerrors.ValidationError("user document has no units", nil)
	}

	matcher, err := search.NewMatcher(ref.Dense, ref.Sparse, ref.Units, c.cfg.Match)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:        uuid.NewString(),
		ContractType: req.ContractType,
		DocumentID:   req.DocumentID,
		StartedAt:    start,
	}

	userParents := index.GroupParents(req.Units)
	if err := c.forward(ctx, matcher, userParents, ref, report); err != nil {
		return nil, err
	}
	report.Timings.Forward = time.Since(start)

	reverseStart := time.Now()
	if err := c.reverse(ctx, ref, req, userParents, report); err != nil {
		return nil, err
	}
	report.Timings.Reverse = time.Since(reverseStart)
	report.Timings.Total = time.Since(start)

	report.Summary = summarize(report)
	slog.Info("check_complete",
		slog.String("run_id", report.RunID),
		slog.String("contract_type", req.ContractType),
		slog.Int("articles", report.Summary.Articles),
		slog.Int("present", report.Summary.Present),
		slog.Int("missing", report.Summary.Missing),
		slog.Int("degraded", report.Degraded),
		slog.Duration("duration", report.Timings.Total))
	return report, nil
}

// forward matches every user article and verifies its ranked sections.
func (c *Checker) forward(ctx context.Context, matcher *search.Matcher, articles []reconcile.Parent, ref *index.Reference, report *Report) error {
	refTexts := sectionTexts(ref.Parents)
	results := make([]*ArticleReport, len(articles))
	degraded := make([]int, len(articles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.ArticleParallelism)
	for i, art := range articles {
		g.Go(func() error {
			q := articleQuery(art)
			res, err := matcher.MatchArticle(gctx, q)
			if err != nil {
				return err
			}

			ar := &ArticleReport{
				ParentID: art.ParentID,
				Title:    art.Title,
				SubItems: len(q.SubItems),
				Skipped:  res.Skipped,
				Matches:  make([]*MatchVerdict, 0, len(res.Matches)),
			}
			for _, w := range res.Warnings {
				ar.Warnings = append(ar.Warnings, w.Error())
				if cerrors.GetCode(w) != cerrors.ErrCodeMalformedQuery {
					degraded[i]++
				}
			}

			query := verify.Section{ParentID: art.ParentID, Title: art.Title, Text: strings.Join(q.SubItems, "\n")}
			for _, m := range res.Matches {
				verdict := c.judge(gctx, verify.Request{
					Direction:  search.DirectionForward,
					Query:      query,
					Candidate:  verify.Section{ParentID: m.ParentID, Title: m.Title, Text: refTexts[m.ParentID]},
					Similarity: m.AverageScore,
				})
				ar.Matches = append(ar.Matches, &MatchVerdict{
					ParentID:        m.ParentID,
					Title:           m.Title,
					MatchedSubItems: m.MatchedSubItems,
					AverageScore:    m.AverageScore,
					MaxScore:        m.MaxScore,
					Verdict:         verdict,
				})
			}
			results[i] = ar
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	report.Articles = results
	for _, d := range degraded {
		report.Degraded += d
	}
	return nil
}

// reverse reconciles reference sections the forward pass did not confirm.
func (c *Checker) reverse(ctx context.Context, ref *index.Reference, req Request, userParents []reconcile.Parent, report *Report) error {
	matchedBy := make(map[string][]string)
	for _, a := range report.Articles {
		for _, m := range a.Matches {
			if m.Verdict.Accepted {
				matchedBy[m.ParentID] = append(matchedBy[m.ParentID], a.ParentID)
			}
		}
	}

	report.References = make([]*ReferenceReport, len(ref.Parents))
	var unmatched []reconcile.Parent
	pos := make(map[string]int)
	for i, p := range ref.Parents {
		rr := &ReferenceReport{ParentID: p.ParentID, Title: p.Title, Disposition: DispositionMissing}
		if by, ok := matchedBy[p.ParentID]; ok {
			rr.Disposition = DispositionPresent
			rr.MatchedBy = by
		} else {
			pos[p.ParentID] = i
			unmatched = append(unmatched, p)
		}
		report.References[i] = rr
	}

	if len(unmatched) == 0 {
		return nil
	}
	if req.Embeddings == nil {
		for _, p := range unmatched {
			rr := report.References[pos[p.ParentID]]
			rr.State = reconcile.StateNoCandidates
			rr.Candidates = []reconcile.Match{}
		}
		return nil
	}

	rec, err := reconcile.New(ref.Embeddings(), req.Embeddings, c.cfg.Reconcile)
	if err != nil {
		return err
	}
	candidates, err := rec.Reconcile(ctx, unmatched, req.Units)
	if err != nil {
		return err
	}

	userTexts := sectionTexts(userParents)
	refTexts := sectionTexts(ref.Parents)
	for _, cand := range candidates {
		rr := report.References[pos[cand.ParentID]]
		rr.State = cand.State
		rr.Similarity = cand.Similarity
		rr.Candidates = cand.Matches

		best, ok := cand.Best()
		if !ok {
			continue
		}
		verdict := c.judge(ctx, verify.Request{
			Direction:  search.DirectionReverse,
			Query:      verify.Section{ParentID: cand.ParentID, Title: cand.Title, Text: refTexts[cand.ParentID]},
			Candidate:  verify.Section{ParentID: best.ParentID, Title: best.Title, Text: userTexts[best.ParentID]},
			Similarity: best.Similarity,
		})
		rr.Verdict = &verdict
		if verdict.Accepted {
			rr.Disposition = DispositionPresent
			rr.Reconciled = true
			rr.MatchedBy = []string{best.ParentID}
		}
	}
	return ctx.Err()
}

// judge asks the verifier. Errors count as not verified.
func (c *Checker) judge(ctx context.Context, req verify.Request) verify.Verdict {
	verdict, err := c.verifier.Verify(ctx, req)
	if err != nil {
		slog.Warn("verify_failed",
			slog.String("direction", req.Direction.String()),
			slog.String("query", req.Query.ParentID),
			slog.String("candidate", req.Candidate.ParentID),
			slog.String("error", err.Error()))
		return verify.Verdict{Accepted: false, Reason: "verifier error: " + err.Error()}
	}
	return verdict
}

func articleQuery(p reconcile.Parent) search.ArticleQuery {
	q := search.ArticleQuery{Title: p.Title, SubItems: make([]string, 0, len(p.Units))}
	for _, u := range p.Units {
		q.SubItems = append(q.SubItems, u.BodyNormalized)
	}
	return q
}

func sectionTexts(parents []reconcile.Parent) map[string]string {
	texts := make(map[string]string, len(parents))
	for _, p := range parents {
		parts := make([]string, 0, len(p.Units))
		for _, u := range p.Units {
			parts = append(parts, u.BodyNormalized)
		}
		texts[p.ParentID] = strings.Join(parts, "\n")
	}
	return texts
}

func summarize(r *Report) Summary {
	s := Summary{Articles: len(r.Articles), References: len(r.References)}
	for _, a := range r.Articles {
		if a.Verified() {
			s.MatchedArticles++
		}
	}
	for _, ref := range r.References {
		switch ref.Disposition {
		case DispositionPresent:
			s.Present++
			if ref.Reconciled {
				s.Recovered++
			}
		case DispositionMissing:
			s.Missing++
		}
	}
	return s
}
