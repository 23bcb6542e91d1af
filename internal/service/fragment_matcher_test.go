package service

import "testing"

func newTestMatcher() *FragmentMatcher {
	return NewFragmentMatcher(DefaultMatcherConfig())
}

func TestMatch_Direct(t *testing.T) {
	m := newTestMatcher()

	res := m.Match("quick brown", "the quick brown fox")
	if !res.Found || res.Strategy != StrategyDirect {
		t.Fatalf("expected direct hit, got %+v", res)
	}
	if res.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", res.Confidence)
	}
}

func TestMatch_DirectToleratesWhitespaceVariants(t *testing.T) {
	m := newTestMatcher()

	// Both sides are normalized, so extra whitespace alone never breaks a
	// verbatim fragment.
	res := m.Match("quick  brown", "the quick\nbrown fox")
	if !res.Found || res.Strategy != StrategyDirect {
		t.Fatalf("expected direct hit, got %+v", res)
	}
}

func TestMatch_CleanWhenPunctuationDiffers(t *testing.T) {
	m := newTestMatcher()

	res := m.Match("don't stop", "listen: dont stop now")
	if !res.Found || res.Strategy != StrategyClean {
		t.Fatalf("expected clean hit, got %+v", res)
	}
	if res.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", res.Confidence)
	}
}

func TestMatch_CleanWhenRunSplitRemovesSpace(t *testing.T) {
	m := newTestMatcher()

	// Run concatenation without separators glues words together; the cleaned
	// projection still finds the fragment.
	res := m.Match("quick brown", "thequickbrownfox")
	if !res.Found || res.Strategy != StrategyClean {
		t.Fatalf("expected clean hit, got %+v", res)
	}
}

func TestMatch_WordMatch(t *testing.T) {
	m := newTestMatcher()

	tests := []struct {
		name      string
		query     string
		candidate string
		found     bool
	}{
		{
			name:      "four of five tokens",
			query:     "alpha beta gamma delta epsilon",
			candidate: "alpha beta gamma delta something else",
			found:     true,
		},
		{
			name:      "three of five tokens below threshold",
			query:     "alpha beta gamma delta epsilon",
			candidate: "alpha beta gamma other words here",
			found:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Match(tt.query, tt.candidate)
			if res.Found != tt.found {
				t.Fatalf("Match(%q, %q) found = %v, want %v (%+v)", tt.query, tt.candidate, res.Found, tt.found, res)
			}
			if tt.found && res.Strategy != StrategyWordMatch {
				t.Fatalf("expected word_match strategy, got %s", res.Strategy)
			}
		})
	}
}

func TestMatch_WordMatchConfidenceScaled(t *testing.T) {
	m := newTestMatcher()

	res := m.Match("alpha beta gamma delta epsilon", "alpha beta gamma delta something else")
	if !res.Found {
		t.Fatalf("expected hit, got %+v", res)
	}
	want := 0.8 * 0.7 // 4/5 tokens, scaled
	if diff := res.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected confidence %v, got %v", want, res.Confidence)
	}
}

func TestMatch_SequenceMatch(t *testing.T) {
	m := newTestMatcher()

	tests := []struct {
		name      string
		query     string
		candidate string
		found     bool
	}{
		{
			name:      "85 percent of characters in order",
			query:     "abcdefghijklmnopqrst",
			candidate: "abcdefghijklmnopqXYZ",
			found:     true,
		},
		{
			name:      "80 percent below threshold",
			query:     "abcdefghijklmnopqrst",
			candidate: "abcdefghijklmnopXYZW",
			found:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Match(tt.query, tt.candidate)
			if res.Found != tt.found {
				t.Fatalf("Match(%q, %q) found = %v, want %v (%+v)", tt.query, tt.candidate, res.Found, tt.found, res)
			}
			if tt.found && res.Strategy != StrategySequenceMatch {
				t.Fatalf("expected sequence_match strategy, got %s", res.Strategy)
			}
		})
	}
}

func TestMatch_NumberChinese(t *testing.T) {
	m := newTestMatcher()

	// The digit group appears verbatim but the ideographs are reordered, so
	// every earlier stage fails.
	res := m.Match("第12条规定", "规定见第 12 条")
	if !res.Found || res.Strategy != StrategyNumberChinese {
		t.Fatalf("expected number_chinese hit, got %+v", res)
	}
	if res.Confidence != 0.75 {
		t.Fatalf("expected confidence 0.75, got %v", res.Confidence)
	}
}

func TestMatch_NumberChineseRequiresDigitHit(t *testing.T) {
	m := newTestMatcher()

	res := m.Match("第12条规定", "规定见第 99 条")
	if res.Found {
		t.Fatalf("expected miss when no digit group matches, got %+v", res)
	}
}

func TestMatch_NoMatch(t *testing.T) {
	m := newTestMatcher()

	tests := []struct {
		name      string
		query     string
		candidate string
	}{
		{name: "unrelated text", query: "completely different words", candidate: "nothing in common here at all"},
		{name: "empty query", query: "", candidate: "some text"},
		{name: "empty candidate", query: "some text", candidate: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Match(tt.query, tt.candidate)
			if res.Found {
				t.Fatalf("expected no match, got %+v", res)
			}
			if res.Strategy != StrategyNone {
				t.Fatalf("expected strategy none, got %s", res.Strategy)
			}
		})
	}
}

func TestNewFragmentMatcher_RepairsInvalidThresholds(t *testing.T) {
	m := NewFragmentMatcher(MatcherConfig{WordMatchThreshold: -1, SequenceMatchThreshold: 2, MinSequenceQueryLen: 0})

	if m.cfg.WordMatchThreshold != 0.8 {
		t.Fatalf("expected repaired word threshold 0.8, got %v", m.cfg.WordMatchThreshold)
	}
	if m.cfg.SequenceMatchThreshold != 0.85 {
		t.Fatalf("expected repaired sequence threshold 0.85, got %v", m.cfg.SequenceMatchThreshold)
	}
	if m.cfg.MinSequenceQueryLen != 4 {
		t.Fatalf("expected repaired min sequence length 4, got %d", m.cfg.MinSequenceQueryLen)
	}
}
