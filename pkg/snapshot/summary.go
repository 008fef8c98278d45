package snapshot

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/orsinium-labs/stopwords"

	"github.com/inkfold/inkfold/pkg/presence"
)

var englishStopwords = stopwords.MustGet("en")

// keywords returns the top-n non-stopword terms of text by frequency,
// ties broken alphabetically so output is deterministic.
func keywords(text string, n int) []string {
	counts := make(map[string]int)
	for _, w := range strings.Fields(presence.Canonicalize(text)) {
		w = strings.Trim(w, ".-'&_")
		if len(w) < 3 || englishStopwords.Contains(w) {
			continue
		}
		counts[w]++
	}

	terms := make([]string, 0, len(counts))
	for w := range counts {
		terms = append(terms, w)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// firstSentence returns the first sentence of text, capped at maxLen
// bytes. Empty text yields an empty string.
func firstSentence(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			text = text[:i+1]
			break
		}
	}
	if len(text) > maxLen {
		text = strings.TrimSpace(truncate(text, maxLen))
	}
	return text
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// digest builds a keyword digest of text: the opening sentence plus the
// dominant terms. Identical input must produce identical output.
func digest(text string, keywordCount, sentenceLen int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	lead := firstSentence(text, sentenceLen)
	terms := keywords(text, keywordCount)
	if len(terms) == 0 {
		return lead
	}
	if lead == "" {
		return "Topics: " + strings.Join(terms, ", ")
	}
	return lead + " [topics: " + strings.Join(terms, ", ") + "]"
}
