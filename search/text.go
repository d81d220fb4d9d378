package search

import (
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// significantWords lowercases text, splits it on anything that is not a
// letter or digit, and drops stop words.
func significantWords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

// verbatimMatch reports whether every significant query word occurs in text.
func verbatimMatch(text string, query []string) bool {
	if len(query) == 0 {
		return false
	}
	present := make(map[string]bool)
	for _, w := range significantWords(text) {
		present[w] = true
	}
	for _, w := range query {
		if !present[w] {
			return false
		}
	}
	return true
}
