package chunker

import (
	"sort"
	"strings"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "is": true, "it": true, "for": true, "on": true,
	"with": true, "as": true, "are": true, "be": true, "this": true, "that": true,
	"by": true, "from": true, "at": true, "we": true, "you": true, "can": true,
	"will": true, "not": true, "but": true, "if": true, "then": true, "so": true,
	"its": true, "into": true, "your": true, "their": true, "was": true, "were": true,
}

// extractTopics blends three signals into a ranked, deduplicated topic list
// capped at maxTopics: headings that appear verbatim in the chunk body, a
// configured framework allowlist matched case-insensitively, and a simple
// term-frequency scan over the body's own words. This resolves the quality/
// topic Open Question by treating all three as equally admissible evidence
// rather than ranking one source above the others.
func extractTopics(body string, headings []string, frameworks []string, maxTopics int) []string {
	lower := strings.ToLower(body)
	seen := make(map[string]bool)
	var topics []string

	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		key := strings.ToLower(t)
		if seen[key] {
			return
		}
		seen[key] = true
		topics = append(topics, t)
	}

	for _, h := range headings {
		if h == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(h)) {
			add(h)
		}
	}
	for _, fw := range frameworks {
		if fw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(fw)) {
			add(fw)
		}
	}
	for _, term := range topTerms(lower, maxTopics) {
		add(term)
	}

	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return topics
}

type termFreq struct {
	term  string
	count int
}

// topTerms does a crude term-frequency pass: lowercase word split, stopword
// removal, and a minimum-length floor to skip incidental tokens.
func topTerms(lower string, limit int) []string {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-'
	})
	counts := make(map[string]int)
	for _, f := range fields {
		if len(f) < 4 || stopwords[f] {
			continue
		}
		counts[f]++
	}
	freqs := make([]termFreq, 0, len(counts))
	for t, c := range counts {
		if c < 2 {
			continue
		}
		freqs = append(freqs, termFreq{term: t, count: c})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].count != freqs[j].count {
			return freqs[i].count > freqs[j].count
		}
		return freqs[i].term < freqs[j].term
	})
	if limit <= 0 || limit > len(freqs) {
		limit = len(freqs)
	}
	out := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, freqs[i].term)
	}
	return out
}
