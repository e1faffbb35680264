// Package identity assigns stable, collision-free slugs to records.
package identity

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugDisallowed = regexp.MustCompile(`[^a-z0-9\s_-]`)
	slugSeparator  = regexp.MustCompile(`[\s_]+`)
)

// SlugSet is a set of slugs already in use.
type SlugSet map[string]struct{}

// NewSlugSet creates a set holding the given slugs.
func NewSlugSet(slugs ...string) SlugSet {
	s := make(SlugSet, len(slugs))
	for _, slug := range slugs {
		s[slug] = struct{}{}
	}
	return s
}

// Has reports whether slug is taken.
func (s SlugSet) Has(slug string) bool {
	_, ok := s[slug]
	return ok
}

// Add marks slug as taken.
func (s SlugSet) Add(slug string) {
	s[slug] = struct{}{}
}

// foldMarks decomposes characters and drops combining marks, so "é" folds to "e".
func foldMarks(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify converts a name into a lowercase hyphenated identifier.
// Diacritics and apostrophes are dropped, characters outside
// [a-z0-9 _-] are removed, and runs of spaces or underscores become a
// single hyphen.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(foldMarks(name)))
	s = slugDisallowed.ReplaceAllString(s, "")
	s = slugSeparator.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// GenerateSlug returns a slug for name that is not in existing.
//
// A nil existing set disables collision checks. On collision the id-based
// candidate "{base}-{id}" is tried first when id is non-empty, then
// "{base}-1", "{base}-2", ... until a free one is found.
func GenerateSlug(name, id string, existing SlugSet) string {
	base := Slugify(name)
	if existing == nil || !existing.Has(base) {
		return base
	}

	if id != "" {
		candidate := base + "-" + id
		if !existing.Has(candidate) {
			return candidate
		}
	}

	for n := 1; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if !existing.Has(candidate) {
			return candidate
		}
	}
}
