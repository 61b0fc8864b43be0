package store

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// josa are Korean postpositional particles, longest first. They are
// stripped from the end of Hangul tokens so "계약의" and "계약을" both index
// as "계약".
var josa = []string{
	"에서는", "으로서", "으로써", "에게서",
	"에서", "에게", "으로", "까지", "부터", "보다", "마다", "처럼",
	"과", "와", "을", "를", "이", "가", "은", "는", "의", "에", "로", "도", "만",
}

// tokenSpan is one token with its byte offsets in the source text.
type tokenSpan struct {
	Term  string
	Start int
	End   int
}

type script int

const (
	scriptNone script = iota
	scriptHangul
	scriptDigit
	scriptOther
)

func scriptOf(r rune) script {
	switch {
	case unicode.Is(unicode.Hangul, r):
		return scriptHangul
	case unicode.IsDigit(r):
		return scriptDigit
	case unicode.IsLetter(r):
		return scriptOther
	default:
		return scriptNone
	}
}

// TokenizeText splits clause text into lowercase search terms.
// Runs of letters or digits are split wherever the script changes, so
// "제3조" yields "3" and "Art.5" yields "art", "5". Hangul tokens lose one
// trailing particle. Latin tokens shorter than two runes are dropped.
func TokenizeText(text string) []string {
	spans := tokenSpans(text)
	tokens := make([]string, len(spans))
	for i, s := range spans {
		tokens[i] = s.Term
	}
	return tokens
}

func tokenSpans(text string) []tokenSpan {
	spans := []tokenSpan{}
	start := -1
	cur := scriptNone

	flush := func(end int) {
		if start < 0 {
			return
		}
		if span, ok := makeSpan(text[start:end], start, cur); ok {
			spans = append(spans, span)
		}
		start = -1
	}

	for i, r := range text {
		s := scriptOf(r)
		if s != cur {
			flush(i)
			cur = s
		}
		if s != scriptNone && start < 0 {
			start = i
		}
	}
	flush(len(text))

	return spans
}

func makeSpan(word string, start int, s script) (tokenSpan, bool) {
	term := strings.ToLower(word)
	switch s {
	case scriptHangul:
		term = stripJosa(term)
		if utf8.RuneCountInString(term) < 2 {
			return tokenSpan{}, false
		}
	case scriptOther:
		if utf8.RuneCountInString(term) < 2 {
			return tokenSpan{}, false
		}
	}
	return tokenSpan{Term: term, Start: start, End: start + min(len(term), len(word))}, true
}

// stripJosa removes one trailing particle when at least two syllables remain.
func stripJosa(word string) string {
	n := utf8.RuneCountInString(word)
	for _, p := range josa {
		if strings.HasSuffix(word, p) && n-utf8.RuneCountInString(p) >= 2 {
			return strings.TrimSuffix(word, p)
		}
	}
	return word
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
