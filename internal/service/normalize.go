package service

import (
	"regexp"
	"strings"
)

// fullWidthReplacer maps full-width CJK punctuation to ASCII equivalents.
// Model-selected fragments and extracted PDF text frequently disagree on
// which variant they carry, so both sides are canonicalized before matching.
var fullWidthReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`, // curly double quotes
	"‘", "'", "’", "'", // curly single quotes
	"，", ",", // full-width comma
	"。", ".", // ideographic period
	"？", "?",
	"！", "!",
	"：", ":",
	"；", ";",
	"（", "(", "）", ")",
	"【", "[", "】", "]",
	"《", "<", "》", ">",
	"、", ",", // ideographic comma
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// nonWordRe matches everything except word characters and CJK ideographs.
var nonWordRe = regexp.MustCompile(`[^\w\p{Han}]+`)

// normalizeText canonicalizes punctuation, collapses whitespace runs
// (including newlines) to a single space, and trims. Idempotent.
func normalizeText(s string) string {
	s = fullWidthReplacer.Replace(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// cleanText strips everything except word characters and CJK ideographs.
// One-way projection used by the fuzzier matching stages.
func cleanText(s string) string {
	return nonWordRe.ReplaceAllString(normalizeText(s), "")
}

// veryCleanText is a distinct stage kept separate from cleanText so future
// passes (diacritic stripping, case folding) slot in without reordering the
// matcher cascade. Currently the same projection.
func veryCleanText(s string) string {
	return cleanText(s)
}
