// Package match implements the fuzzy text machinery shared by every
// resolver: string canonicalization, span generation, the hybrid
// phonetic/lexical/semantic similarity score, and the small grammars of
// the command language (numeric comparators, delays, templates, colors).
package match

import (
	"regexp"
	"strings"
)

var (
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]`)
	repeatRe   = regexp.MustCompile(`(.)\1{2,}`)
)

// NormalizeWord canonicalizes a string for comparison: lowercase, spaces
// and hyphens removed, everything non-alphanumeric stripped, and runs of
// three or more identical characters collapsed to one (speech-to-text
// tends to stretch vowels).
func NormalizeWord(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	s = nonAlnumRe.ReplaceAllString(s, "")
	s = repeatRe.ReplaceAllString(s, "$1")
	return s
}

// NGrams returns every contiguous word n-gram of words up to length maxN,
// shortest first.
func NGrams(words []string, maxN int) []string {
	var out []string
	for n := 1; n <= maxN; n++ {
		for i := 0; i+n <= len(words); i++ {
			out = append(out, strings.Join(words[i:i+n], " "))
		}
	}
	return out
}

// CleanTarget strips a single leading filler preposition ("on", "in",
// "at", "the") from a target phrase.
func CleanTarget(target string) string {
	lower := strings.ToLower(target)
	for _, word := range []string{"on", "in", "at", "the"} {
		if strings.HasPrefix(lower, word+" ") {
			return strings.TrimSpace(target[len(word)+1:])
		}
	}
	return strings.TrimSpace(target)
}

var punctRe = regexp.MustCompile(`[.;!?]`)

// StripPunctuation removes sentence punctuation from an utterance before
// parsing.
func StripPunctuation(s string) string {
	return strings.TrimSpace(punctRe.ReplaceAllString(s, ""))
}
