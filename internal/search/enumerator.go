package search

import (
	"regexp"
	"strings"
	"unicode"
)

// enumeratorPatterns are tried in order; the first match at the start of
// the text wins. Each pattern consumes the enumerator and its trailing
// whitespace only.
var enumeratorPatterns = []*regexp.Regexp{
	// Circled and parenthesized markers: ① .. ⑳, ⑴ .. ⒇, ⒈ .. ⒛, ⒜ .. ⒵,
	// Ⓐ .. ⓩ, ⓫ .. ⓴, ❶ .. ➓, ㉑ .. ㉟, ㉠ .. ㉭, ㉮ .. ㉻, ㊱ .. ㊿
	regexp.MustCompile(`^[\x{2460}-\x{24FF}\x{2776}-\x{2793}\x{3251}-\x{327B}\x{32B1}-\x{32BF}]\s*`),
	// (1), (12)
	regexp.MustCompile(`^\(\d{1,3}\)\s*`),
	// 제1항, 제 2 호
	regexp.MustCompile(`^제\s*\d{1,3}\s*[항호]\s*`),
	// (가), 가), 가.
	regexp.MustCompile(`^\(?[가나다라마바사아자차카타파하]\)\s*`),
	regexp.MustCompile(`^[가나다라마바사아자차카타파하]\.\s*`),
	// (iv), iv.
	regexp.MustCompile(`^\((?i:[ivxlc]{1,6})\)\s*`),
	regexp.MustCompile(`^(?i:[ivxlc]{1,6})\.\s+`),
	// (a), a), a.
	regexp.MustCompile(`^\([a-zA-Z]\)\s*`),
	regexp.MustCompile(`^[a-zA-Z][.)]\s+`),
	// Bullets. "-" and "*" need trailing space so "-5%" keeps its sign.
	regexp.MustCompile(`^[•·‧▪◦○●]\s*`),
	regexp.MustCompile(`^[-*]\s+`),
}

// numberedEnumerator matches "1." and "1)" style markers.
var numberedEnumerator = regexp.MustCompile(`^\d{1,3}([.)])\s*`)

// StripEnumerator removes one recognized leading enumerator token, such as
// "①", "1.", "(a)", "가." or "제2항", and the whitespace around it. Interior
// text is never touched; text without a leading enumerator is only trimmed.
func StripEnumerator(text string) string {
	s := strings.TrimSpace(text)

	if loc := numberedEnumerator.FindStringSubmatchIndex(s); loc != nil {
		rest := s[loc[1]:]
		// "1.5% of the price" is a decimal, not an enumerator.
		isDecimal := s[loc[2]:loc[3]] == "." && loc[1] == loc[3] && startsWithDigit(rest)
		if !isDecimal {
			return strings.TrimSpace(rest)
		}
		return s
	}

	for _, re := range enumeratorPatterns {
		if loc := re.FindStringIndex(s); loc != nil {
			return strings.TrimSpace(s[loc[1]:])
		}
	}
	return s
}

func startsWithDigit(s string) bool {
	for _, r := range s {
		return unicode.IsDigit(r)
	}
	return false
}
