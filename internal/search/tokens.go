// Package search builds the token lists used for catalog search.
package search

import (
	"regexp"
	"strings"
)

var tokenSeparator = regexp.MustCompile(`[\s,.\-]+`)

// MinTokenLength is the shortest token kept.
const MinTokenLength = 2

// Tokenize lowercases text and splits it on whitespace, commas, periods
// and hyphens, dropping tokens shorter than MinTokenLength.
func Tokenize(text string) []string {
	var tokens []string
	for _, tok := range tokenSeparator.Split(strings.ToLower(text), -1) {
		if len([]rune(tok)) < MinTokenLength {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// GenerateSearchTokens returns the distinct tokens of name, homeworld and
// each source, in first-seen order.
func GenerateSearchTokens(name, homeworld string, sources ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(text string) {
		for _, tok := range Tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}

	add(name)
	add(homeworld)
	for _, s := range sources {
		add(s)
	}
	return out
}
