package service

import (
	"regexp"
	"strings"
	"unicode"
)

// MatchStrategy identifies which cascade stage accepted a fragment.
type MatchStrategy string

const (
	StrategyDirect        MatchStrategy = "direct"
	StrategyClean         MatchStrategy = "clean"
	StrategyVeryClean     MatchStrategy = "very_clean"
	StrategyWordMatch     MatchStrategy = "word_match"
	StrategySequenceMatch MatchStrategy = "sequence_match"
	StrategyNumberChinese MatchStrategy = "number_chinese"
	StrategyNone          MatchStrategy = "none"
)

// MatchResult reports whether a fragment was found in a candidate text and
// how. Confidence is a fixed weight per strategy, kept for downstream ranking.
type MatchResult struct {
	Found      bool          `json:"found"`
	Strategy   MatchStrategy `json:"strategy"`
	Confidence float64       `json:"confidence"`
}

// MatcherConfig holds the tunable thresholds of the fuzzy stages. The
// defaults come from observed model behavior, not from principled tuning, so
// they are configuration rather than constants.
type MatcherConfig struct {
	// WordMatchThreshold is the fraction of query tokens that must be found.
	WordMatchThreshold float64
	// SequenceMatchThreshold is the fraction of cleaned query characters that
	// must be consumed in order.
	SequenceMatchThreshold float64
	// MinSequenceQueryLen gates the greedy subsequence scan to longer queries
	// to avoid false positives on short strings.
	MinSequenceQueryLen int
}

// DefaultMatcherConfig returns the stock thresholds.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		WordMatchThreshold:     0.8,
		SequenceMatchThreshold: 0.85,
		MinSequenceQueryLen:    4,
	}
}

var digitGroupRe = regexp.MustCompile(`\d+`)

// FragmentMatcher decides whether a model-selected fragment is present in a
// candidate text. Model fragments are frequently not verbatim: run splitting
// introduces spurious spaces, punctuation gets transliterated, and the model
// occasionally paraphrases a character or two. The cascade runs cheap,
// high-confidence checks first; the first stage that accepts wins.
type FragmentMatcher struct {
	cfg MatcherConfig
}

// NewFragmentMatcher creates a matcher with the given thresholds.
func NewFragmentMatcher(cfg MatcherConfig) *FragmentMatcher {
	if cfg.WordMatchThreshold <= 0 || cfg.WordMatchThreshold > 1 {
		cfg.WordMatchThreshold = 0.8
	}
	if cfg.SequenceMatchThreshold <= 0 || cfg.SequenceMatchThreshold > 1 {
		cfg.SequenceMatchThreshold = 0.85
	}
	if cfg.MinSequenceQueryLen <= 0 {
		cfg.MinSequenceQueryLen = 4
	}
	return &FragmentMatcher{cfg: cfg}
}

// Match runs the strategy cascade for query against candidate.
func (m *FragmentMatcher) Match(query, candidate string) MatchResult {
	normQuery := normalizeText(query)
	normCand := normalizeText(candidate)
	if normQuery == "" || normCand == "" {
		return MatchResult{Strategy: StrategyNone}
	}

	if strings.Contains(normCand, normQuery) {
		return MatchResult{Found: true, Strategy: StrategyDirect, Confidence: 1.0}
	}

	cleanQuery := cleanText(query)
	cleanCand := cleanText(candidate)
	if cleanQuery != "" && strings.Contains(cleanCand, cleanQuery) {
		return MatchResult{Found: true, Strategy: StrategyClean, Confidence: 0.9}
	}

	vcQuery := veryCleanText(query)
	vcCand := veryCleanText(candidate)
	if vcQuery != "" && vcQuery != cleanQuery && strings.Contains(vcCand, vcQuery) {
		return MatchResult{Found: true, Strategy: StrategyVeryClean, Confidence: 0.8}
	}

	if res, ok := m.wordMatch(normQuery, normCand); ok {
		return res
	}

	if res, ok := m.sequenceMatch(cleanQuery, cleanCand); ok {
		return res
	}

	if res, ok := m.numberChineseMatch(normQuery, normCand); ok {
		return res
	}

	return MatchResult{Strategy: StrategyNone}
}

// wordMatch accepts when enough whitespace tokens of the query are found in
// candidate tokens, directly or after stripping non-word characters. Only
// runs for multi-token queries.
func (m *FragmentMatcher) wordMatch(normQuery, normCand string) (MatchResult, bool) {
	queryTokens := strings.Fields(normQuery)
	if len(queryTokens) < 2 {
		return MatchResult{}, false
	}
	candTokens := strings.Fields(normCand)

	found := 0
	for _, qt := range queryTokens {
		cleanQt := cleanText(qt)
		for _, ct := range candTokens {
			if strings.Contains(ct, qt) || (cleanQt != "" && strings.Contains(cleanText(ct), cleanQt)) {
				found++
				break
			}
		}
	}

	ratio := float64(found) / float64(len(queryTokens))
	if ratio >= m.cfg.WordMatchThreshold {
		return MatchResult{Found: true, Strategy: StrategyWordMatch, Confidence: ratio * 0.7}, true
	}
	return MatchResult{}, false
}

// sequenceMatch walks the cleaned candidate once, advancing a query pointer
// whenever characters match in order. Gated to longer queries.
func (m *FragmentMatcher) sequenceMatch(cleanQuery, cleanCand string) (MatchResult, bool) {
	queryRunes := []rune(cleanQuery)
	if len(queryRunes) < m.cfg.MinSequenceQueryLen {
		return MatchResult{}, false
	}

	consumed := 0
	for _, r := range cleanCand {
		if consumed < len(queryRunes) && r == queryRunes[consumed] {
			consumed++
		}
	}

	ratio := float64(consumed) / float64(len(queryRunes))
	if ratio >= m.cfg.SequenceMatchThreshold {
		return MatchResult{Found: true, Strategy: StrategySequenceMatch, Confidence: ratio * 0.6}, true
	}
	return MatchResult{}, false
}

// numberChineseMatch handles fragments that mix digit groups with CJK text,
// e.g. clause references. At least one digit group must appear verbatim, and
// the CJK portion must be a substring or present character by character.
func (m *FragmentMatcher) numberChineseMatch(normQuery, normCand string) (MatchResult, bool) {
	digitGroups := digitGroupRe.FindAllString(normQuery, -1)
	hanChars := hanRunes(normQuery)
	if len(digitGroups) == 0 || len(hanChars) == 0 {
		return MatchResult{}, false
	}

	digitHit := false
	for _, g := range digitGroups {
		if strings.Contains(normCand, g) {
			digitHit = true
			break
		}
	}
	if !digitHit {
		return MatchResult{}, false
	}

	hanPortion := string(hanChars)
	if strings.Contains(normCand, hanPortion) {
		return MatchResult{Found: true, Strategy: StrategyNumberChinese, Confidence: 0.75}, true
	}
	for _, r := range hanChars {
		if !strings.ContainsRune(normCand, r) {
			return MatchResult{}, false
		}
	}
	return MatchResult{Found: true, Strategy: StrategyNumberChinese, Confidence: 0.75}, true
}

func hanRunes(s string) []rune {
	var out []rune
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			out = append(out, r)
		}
	}
	return out
}
