package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/clausecheck/internal/check"
	"github.com/Aman-CERP/clausecheck/internal/reconcile"
	"github.com/Aman-CERP/clausecheck/internal/search"
	"github.com/Aman-CERP/clausecheck/internal/verify"
)

func TestWriter_MessagesCarryIcons(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		icon  string
		msg   string
	}{
		{"success", func(w *Writer) { w.Success("Indexed 3 documents") }, "✅", "Indexed 3 documents"},
		{"warning", func(w *Writer) { w.Warningf("%d lookups degraded", 2) }, "⚠️", "2 lookups degraded"},
		{"error", func(w *Writer) { w.Errorf("unknown type %q", "lease") }, "❌", `unknown type "lease"`},
		{"status", func(w *Writer) { w.Status("🔍", "Loading index...") }, "🔍", "Loading index..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))

			assert.Contains(t, buf.String(), tt.icon)
			assert.Contains(t, buf.String(), tt.msg)
		})
	}
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("", "detail")

	assert.Equal(t, "   detail\n", buf.String())
}

func TestNew_BufferGetsPlainOutput(t *testing.T) {
	// Given: a non-terminal writer
	buf := &bytes.Buffer{}

	// When: rendering a header
	New(buf).Header("Articles")

	// Then: no ANSI escape sequences are emitted
	assert.Equal(t, "Articles\n", buf.String())
	assert.False(t, IsTTY(buf))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	assert.True(t, DetectNoColor())
}

func TestWriter_Progress(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		contains []string
		empty    bool
	}{
		{"half", 5, 10, []string{"50%", "embedding"}, false},
		{"done ends line", 10, 10, []string{"100%", "\n"}, false},
		{"zero total prints nothing", 0, 0, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			New(buf).Progress(tt.current, tt.total, "embedding")

			if tt.empty {
				assert.Empty(t, buf.String())
				return
			}
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		current, total, width int
		filled                int
	}{
		{0, 10, 10, 0},
		{5, 10, 10, 5},
		{10, 10, 10, 10},
		{15, 10, 10, 10},
		{1, 0, 10, 0},
	}

	for _, tt := range tests {
		bar := renderProgressBar(tt.current, tt.total, tt.width)
		assert.Equal(t, tt.filled, strings.Count(bar, "█"))
		assert.Equal(t, tt.width, strings.Count(bar, "█")+strings.Count(bar, "░"))
	}
}

func TestWriter_JSON_Indents(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, New(buf).JSON(map[string]int{"present": 2}))

	assert.Equal(t, "{\n  \"present\": 2\n}\n", buf.String())
}

func sampleReport() *check.Report {
	return &check.Report{
		RunID:        "run-1",
		ContractType: "lease",
		DocumentID:   "my-lease",
		StartedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Timings:      check.Timings{Forward: 120 * time.Millisecond, Total: 150 * time.Millisecond},
		Articles: []*check.ArticleReport{
			{
				ParentID: "제1조", Title: "목적", SubItems: 2,
				Matches: []*check.MatchVerdict{{
					ParentID: "ref-1", MatchedSubItems: []int{0, 1}, AverageScore: 0.91, MaxScore: 0.97,
					Verdict: verify.Verdict{Accepted: true, Confidence: 0.91, Reason: "above threshold"},
				}},
			},
			{ParentID: "제9조", Title: "특약", SubItems: 1, Matches: []*check.MatchVerdict{}, Warnings: []string{"[404] sub-item 0 empty"}},
		},
		References: []*check.ReferenceReport{
			{ParentID: "ref-1", Disposition: check.DispositionPresent, MatchedBy: []string{"제1조"}},
			{
				ParentID: "ref-2", Disposition: check.DispositionPresent, MatchedBy: []string{"제5조"}, Reconciled: true,
				State: reconcile.StateHasCandidates, Similarity: 0.8,
				Candidates: []reconcile.Match{{ParentID: "제5조", Similarity: 0.8}},
			},
			{ParentID: "ref-3", Title: "해지", Disposition: check.DispositionMissing},
		},
		Degraded: 1,
		Summary:  check.Summary{Articles: 2, MatchedArticles: 1, References: 3, Present: 2, Missing: 1, Recovered: 1},
	}
}

func TestWriter_Report(t *testing.T) {
	// Given: a report with a forward match, a recovered and a missing section
	buf := &bytes.Buffer{}

	// When: rendering verbosely
	New(buf).Report(sampleReport(), true)

	// Then: every disposition and the summary line are shown
	out := buf.String()
	assert.Contains(t, out, "Check my-lease (lease)")
	assert.Contains(t, out, "제1조 목적 → ref-1")
	assert.Contains(t, out, "제9조 특약 no verified match")
	assert.Contains(t, out, "ref-2 recovered by 제5조")
	assert.Contains(t, out, "ref-3 해지 missing")
	assert.Contains(t, out, "1/2 articles matched, 2/3 reference sections present (1 recovered), 1 missing")
	assert.Contains(t, out, "1 lookups degraded")
	assert.Contains(t, out, "avg 0.910")
	assert.Contains(t, out, "sim 0.800")
	assert.Contains(t, out, "[404] sub-item 0 empty")
}

func TestWriter_Report_QuietHidesDetail(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Report(sampleReport(), false)

	assert.NotContains(t, buf.String(), "avg 0.910")
	assert.NotContains(t, buf.String(), "sim 0.800")
}

func TestWriter_JSON_Report(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, New(buf).JSON(sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "lease", decoded["contract_type"])
	refs := decoded["references"].([]any)
	require.Len(t, refs, 3)
	assert.Equal(t, "missing", refs[2].(map[string]any)["disposition"])
	assert.Equal(t, "has_candidates", refs[1].(map[string]any)["state"])
}

func TestWriter_ArticleResult(t *testing.T) {
	// Given: one ranked match and one warning
	res := &search.ArticleResult{
		Matches: []*search.ArticleMatch{{
			ParentID: "제2조", Title: "보증금", MatchedSubItems: []int{0}, AverageScore: 0.75, MaxScore: 0.75,
		}},
		SubItems: []*search.SubItemResult{{Index: 0}, {Index: 1}},
		Warnings: []error{errors.New("dense lookup degraded")},
	}
	buf := &bytes.Buffer{}

	// When
	New(buf).ArticleResult(res)

	// Then
	assert.Contains(t, buf.String(), "1. 제2조 보증금 [1/2 sub-items] avg 0.750")
	assert.Contains(t, buf.String(), "dense lookup degraded")
}

func TestWriter_ArticleResult_Empty(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).ArticleResult(&search.ArticleResult{})

	assert.Contains(t, buf.String(), "No matching reference sections")
}
