// Package textutils provides the text normalization pipeline that turns
// provider literals into keyword tokens.
package textutils

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	dotPattern      = regexp.MustCompile(`\.`)
	nonAlnumPattern = regexp.MustCompile(`[^A-Z0-9 ]`)
	spacesPattern   = regexp.MustCompile(` +`)
)

// Normalize decomposes accented characters (NFKD), drops everything outside
// ASCII and uppercases the rest. "Devolución" becomes "DEVOLUCION".
func Normalize(text string) string {
	decomposed := norm.NFKD.String(text)
	var builder strings.Builder
	builder.Grow(len(decomposed))
	for _, r := range decomposed {
		if r < 128 {
			builder.WriteRune(r)
		}
	}
	return strings.ToUpper(builder.String())
}

// Cleanup removes punctuation from normalized text: dots vanish entirely so
// "S.L." stays one token, any other non-alphanumeric becomes a space, and
// runs of spaces collapse.
func Cleanup(text string) string {
	text = dotPattern.ReplaceAllString(text, "")
	text = nonAlnumPattern.ReplaceAllString(text, " ")
	return spacesPattern.ReplaceAllString(text, " ")
}

// Tokenize splits cleaned text on spaces.
func Tokenize(text string) []string {
	return strings.Split(text, " ")
}

// ExtractKeywords runs every literal through normalize, cleanup and tokenize,
// drops tokens of two characters or fewer and dedupes. The result is sorted
// so identical input always yields identical output.
func ExtractKeywords(literals []string) []string {
	seen := make(map[string]struct{})
	for _, literal := range literals {
		for _, token := range Tokenize(Cleanup(Normalize(literal))) {
			if len(token) <= 2 {
				continue
			}
			seen[token] = struct{}{}
		}
	}

	keywords := make([]string, 0, len(seen))
	for token := range seen {
		keywords = append(keywords, token)
	}
	sort.Strings(keywords)
	return keywords
}
