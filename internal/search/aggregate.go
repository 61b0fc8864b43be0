package search

import (
	"math"
	"regexp"
	"sort"
	"strconv"
)

// Direction tags which way an aggregation ran.
type Direction int

const (
	// DirectionForward matches user articles against the reference library.
	DirectionForward Direction = iota
	// DirectionReverse matches reference parents against the user document.
	DirectionReverse
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionReverse:
		return "reverse"
	default:
		return "unknown"
	}
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// AggregateToParents keeps the best unit of each parent. Ties on score go to
// the lower OrderIndex, then the lower unit ID. The output is not capped and
// is sorted by score descending, then parent ID ascending.
func AggregateToParents(units []*ScoredUnit) []*ParentCandidate {
	best := make(map[string]*ScoredUnit, len(units))
	for _, su := range units {
		if su == nil || su.Unit == nil {
			continue
		}
		cur, ok := best[su.Unit.ParentID]
		if !ok || betterUnit(su, cur) {
			best[su.Unit.ParentID] = su
		}
	}

	parents := make([]*ParentCandidate, 0, len(best))
	for parentID, su := range best {
		parents = append(parents, &ParentCandidate{
			ParentID: parentID,
			Title:    su.Unit.Title,
			Score:    su.CombinedScore,
			Unit:     su.Unit,
		})
	}

	sort.Slice(parents, func(i, j int) bool {
		if parents[i].Score != parents[j].Score {
			return parents[i].Score > parents[j].Score
		}
		return parents[i].ParentID < parents[j].ParentID
	})

	return parents
}

func betterUnit(a, b *ScoredUnit) bool {
	if a.CombinedScore != b.CombinedScore {
		return a.CombinedScore > b.CombinedScore
	}
	if a.Unit.OrderIndex != b.Unit.OrderIndex {
		return a.Unit.OrderIndex < b.Unit.OrderIndex
	}
	return a.Unit.ID < b.Unit.ID
}

// ArticleOptions controls the post-processing of AggregateArticles.
type ArticleOptions struct {
	ScoreThreshold   float64
	ThresholdEnabled bool

	// TopK truncates the result; 0 keeps everything.
	TopK int
}

// AggregateArticles rolls per-sub-item candidates up into article matches.
// Each parent collects the sub-items that voted for it and the scores they
// gave. Matches are sorted by vote count descending, average score
// descending, article number ascending, then parent ID. The threshold filter
// and truncation run after sorting. Forward and reverse matching share this
// function so the tie-break chain cannot drift between them.
func AggregateArticles(dir Direction, results []*SubItemResult, opts ArticleOptions) []*ArticleMatch {
	byParent := make(map[string]*ArticleMatch)
	// One vote per sub-item per parent, even if a caller passes duplicates.
	seen := make(map[string]map[int]int)

	for _, r := range results {
		if r == nil {
			continue
		}
		for _, c := range r.Candidates {
			m, ok := byParent[c.ParentID]
			if !ok {
				m = &ArticleMatch{ParentID: c.ParentID, Title: c.Title, Direction: dir}
				byParent[c.ParentID] = m
				seen[c.ParentID] = make(map[int]int)
			}
			if pos, dup := seen[c.ParentID][r.Index]; dup {
				m.Scores[pos] = math.Max(m.Scores[pos], c.Score)
				continue
			}
			seen[c.ParentID][r.Index] = len(m.Scores)
			m.MatchedSubItems = append(m.MatchedSubItems, r.Index)
			m.Scores = append(m.Scores, c.Score)
		}
	}

	matches := make([]*ArticleMatch, 0, len(byParent))
	for _, m := range byParent {
		summarize(m)
		matches = append(matches, m)
	}

	SortArticleMatches(matches)

	if opts.ThresholdEnabled {
		kept := matches[:0]
		for _, m := range matches {
			if m.AverageScore >= opts.ScoreThreshold {
				kept = append(kept, m)
			}
		}
		matches = kept
	}

	if opts.TopK > 0 && len(matches) > opts.TopK {
		matches = matches[:opts.TopK]
	}

	return matches
}

func summarize(m *ArticleMatch) {
	sort.Sort(byIndex{m})

	sum := 0.0
	m.MaxScore = math.Inf(-1)
	m.MinScore = math.Inf(1)
	for _, s := range m.Scores {
		sum += s
		m.MaxScore = math.Max(m.MaxScore, s)
		m.MinScore = math.Min(m.MinScore, s)
	}
	m.AverageScore = sum / float64(len(m.Scores))
}

// byIndex sorts a match's sub-item indices together with their scores.
type byIndex struct{ m *ArticleMatch }

func (b byIndex) Len() int { return len(b.m.MatchedSubItems) }
func (b byIndex) Less(i, j int) bool {
	return b.m.MatchedSubItems[i] < b.m.MatchedSubItems[j]
}
func (b byIndex) Swap(i, j int) {
	b.m.MatchedSubItems[i], b.m.MatchedSubItems[j] = b.m.MatchedSubItems[j], b.m.MatchedSubItems[i]
	b.m.Scores[i], b.m.Scores[j] = b.m.Scores[j], b.m.Scores[i]
}

// SortArticleMatches applies the article ordering in place.
func SortArticleMatches(matches []*ArticleMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.NumSubItems() != b.NumSubItems() {
			return a.NumSubItems() > b.NumSubItems()
		}
		if a.AverageScore != b.AverageScore {
			return a.AverageScore > b.AverageScore
		}
		na, nb := ParseArticleNumber(a.ParentID), ParseArticleNumber(b.ParentID)
		if na != nb {
			return na < nb
		}
		return a.ParentID < b.ParentID
	})
}

var (
	// 제12조, 제 12 조의2
	koreanArticleRe = regexp.MustCompile(`제\s*(\d+)\s*조`)
	// article-12, Art. 12, ART_12
	latinArticleRe = regexp.MustCompile(`(?i)\bart(?:icle)?[\s._:-]*(\d+)`)
	digitsRe       = regexp.MustCompile(`\d+`)
)

// ParseArticleNumber extracts the article number from a parent ID. It
// prefers an explicit article marker, then the last run of digits. IDs
// without a number sort after every numbered one.
func ParseArticleNumber(parentID string) int {
	for _, re := range []*regexp.Regexp{koreanArticleRe, latinArticleRe} {
		if m := re.FindStringSubmatch(parentID); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}

	runs := digitsRe.FindAllString(parentID, -1)
	if len(runs) == 0 {
		return math.MaxInt
	}
	n, err := strconv.Atoi(runs[len(runs)-1])
	if err != nil {
		return math.MaxInt
	}
	return n
}
