// Package entities extracts normalized entity candidates from text. The
// extractor is a regex fallback (no NER model dependency): capitalized
// phrases, every contiguous suffix of a multi-word phrase, and alphabetic
// words of length >= 4. Keys are case-folded so "Part A" and "part a" meet
// at the same graph node.
package entities

import (
	"regexp"
	"sort"
	"strings"
)

var (
	phrasePattern = regexp.MustCompile(`[A-Z][A-Za-z0-9]*(?:\s+[A-Z][A-Za-z0-9]*)*`)
	wordPattern   = regexp.MustCompile(`\b[A-Za-z]{4,}\b`)
)

// Extract scans the concatenation of texts and returns the deduplicated,
// lowercased, sorted entity key set. Sorted output keeps tests stable.
func Extract(texts []string) []string {
	combined := strings.Join(texts, "\n")

	var candidates []string
	for _, phrase := range phrasePattern.FindAllString(combined, -1) {
		candidates = append(candidates, phrase)
		parts := strings.Fields(phrase)
		for i := 1; i < len(parts); i++ {
			candidates = append(candidates, strings.Join(parts[i:], " "))
		}
	}
	candidates = append(candidates, wordPattern.FindAllString(combined, -1)...)

	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" {
			continue
		}
		seen[key] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
