package usecases

import (
	"strings"
	"unicode"
)

// similarityScore rates how well a free-text query matches a catalog field,
// on a 0-100 scale. The target audience types both Latin text and Myanmar
// script; the latter has no word boundaries, so whitespace tokenization would
// never match it and a character-overlap fallback is used instead.
//
//	exact (case-insensitive)        -> 100
//	substring either direction      -> 70..95, scaled by length overlap
//	Latin query                     -> word-level fuzzy, up to 60
//	non-Latin query                 -> character overlap, up to 80
func similarityScore(query, text string) int {
	query = strings.ToLower(strings.TrimSpace(query))
	text = strings.ToLower(strings.TrimSpace(text))
	if query == "" || text == "" {
		return 0
	}
	if query == text {
		return 100
	}

	if strings.Contains(text, query) || strings.Contains(query, text) {
		shorter, longer := len(query), len(text)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 70 + int(float64(shorter)/float64(longer)*25)
	}

	if isLatinQuery(query) {
		return wordMatchScore(query, text)
	}
	return charOverlapScore(query, text)
}

// isLatinQuery reports whether the query is plain ASCII text (letters,
// digits, spaces, basic punctuation) and therefore word-tokenizable.
func isLatinQuery(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// wordMatchScore credits each query word (>=2 chars) contained in a text word
// or containing one, scaled to a 60-point ceiling.
func wordMatchScore(query, text string) int {
	queryWords := strings.Fields(query)
	textWords := strings.Fields(text)

	total := 0
	matched := 0
	for _, qw := range queryWords {
		if len(qw) < 2 {
			continue
		}
		total++
		for _, tw := range textWords {
			if strings.Contains(tw, qw) || strings.Contains(qw, tw) {
				matched++
				break
			}
		}
	}
	if total == 0 {
		return 0
	}
	return int(float64(matched) / float64(total) * 60)
}

// charOverlapScore credits each rune of the shorter string found anywhere in
// the longer one, scaled to an 80-point ceiling.
func charOverlapScore(query, text string) int {
	shorter, longer := []rune(query), []rune(text)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	longerSet := make(map[rune]struct{}, len(longer))
	for _, r := range longer {
		longerSet[r] = struct{}{}
	}

	matched := 0
	for _, r := range shorter {
		if _, ok := longerSet[r]; ok {
			matched++
		}
	}
	return int(float64(matched) / float64(len(shorter)) * 80)
}
