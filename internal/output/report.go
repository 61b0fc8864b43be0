package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/clausecheck/internal/check"
	"github.com/Aman-CERP/clausecheck/internal/search"
)

// Report renders a check report. verbose adds per-article match lines and
// reverse-pass candidates.
func (w *Writer) Report(r *check.Report, verbose bool) {
	if r == nil {
		return
	}

	w.Header(fmt.Sprintf("Check %s (%s)", r.DocumentID, r.ContractType))
	w.Status("", w.styles.Dim.Render("run "+r.RunID))
	w.Newline()

	w.Header("Articles")
	for _, a := range r.Articles {
		w.article(a, verbose)
	}
	w.Newline()

	w.Header("Reference sections")
	for _, ref := range r.References {
		w.reference(ref, verbose)
	}
	w.Newline()

	s := r.Summary
	w.Statusf("", "%s %d/%d articles matched, %d/%d reference sections present (%d recovered), %d missing",
		w.styles.Label.Render("summary:"),
		s.MatchedArticles, s.Articles, s.Present, s.References, s.Recovered, s.Missing)
	if r.Degraded > 0 {
		w.Warningf("%d lookups degraded; results may be incomplete", r.Degraded)
	}
	w.Status("", w.styles.Dim.Render(fmt.Sprintf("forward %s, reverse %s, total %s",
		r.Timings.Forward.Round(time.Millisecond), r.Timings.Reverse.Round(time.Millisecond), r.Timings.Total.Round(time.Millisecond))))
}

func (w *Writer) article(a *check.ArticleReport, verbose bool) {
	label := articleLabel(a.ParentID, a.Title)
	accepted := make([]string, 0, len(a.Matches))
	for _, m := range a.Matches {
		if m.Verdict.Accepted {
			accepted = append(accepted, m.ParentID)
		}
	}

	if len(accepted) > 0 {
		w.Status("✅", fmt.Sprintf("%s %s %s", label, w.styles.Dim.Render("→"), strings.Join(accepted, ", ")))
	} else {
		w.Status("➖", fmt.Sprintf("%s %s", label, w.styles.Dim.Render("no verified match")))
	}

	if verbose {
		for _, m := range a.Matches {
			w.Status("", fmt.Sprintf("  %-16s %s avg %s max %s  %s",
				m.ParentID,
				w.styles.Label.Render(fmt.Sprintf("%d/%d", len(m.MatchedSubItems), a.SubItems)),
				w.styles.Score.Render(fmt.Sprintf("%.3f", m.AverageScore)),
				w.styles.Score.Render(fmt.Sprintf("%.3f", m.MaxScore)),
				w.styles.Dim.Render(m.Verdict.Reason)))
		}
	}
	for _, warn := range a.Warnings {
		w.Status("", w.styles.Warning.Render("  "+warn))
	}
}

func (w *Writer) reference(ref *check.ReferenceReport, verbose bool) {
	label := articleLabel(ref.ParentID, ref.Title)
	switch {
	case ref.Disposition == check.DispositionMissing:
		w.Status("❌", w.styles.Error.Render(label+" missing"))
	case ref.Reconciled:
		w.Status("🔁", fmt.Sprintf("%s %s %s", label, w.styles.Dim.Render("recovered by"), strings.Join(ref.MatchedBy, ", ")))
	default:
		w.Status("✅", fmt.Sprintf("%s %s %s", label, w.styles.Dim.Render("matched by"), strings.Join(ref.MatchedBy, ", ")))
	}

	if verbose && len(ref.Candidates) > 0 {
		for _, c := range ref.Candidates {
			w.Status("", fmt.Sprintf("  %-16s sim %s", c.ParentID, w.styles.Score.Render(fmt.Sprintf("%.3f", c.Similarity))))
		}
	}
}

// ArticleResult renders the ranked matches of a single article query.
func (w *Writer) ArticleResult(res *search.ArticleResult) {
	if res == nil {
		return
	}
	if len(res.Matches) == 0 {
		w.Warning("No matching reference sections")
	}
	for i, m := range res.Matches {
		w.Statusf("", "%d. %s %s avg %s max %s",
			i+1,
			articleLabel(m.ParentID, m.Title),
			w.styles.Label.Render(fmt.Sprintf("[%d/%d sub-items]", m.NumSubItems(), len(res.SubItems))),
			w.styles.Score.Render(fmt.Sprintf("%.3f", m.AverageScore)),
			w.styles.Score.Render(fmt.Sprintf("%.3f", m.MaxScore)))
	}
	for _, err := range res.Warnings {
		w.Warning(err.Error())
	}
}

func articleLabel(id, title string) string {
	if title == "" || title == id {
		return id
	}
	return fmt.Sprintf("%s %s", id, title)
}
