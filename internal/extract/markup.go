// Package extract pulls labeled fields and named sections out of wiki pages.
//
// All extractors treat their input as opaque text. Rendered HTML is first
// converted to the same line-oriented markup by ToMarkup, so the field and
// section rules apply to both wikitext and HTML pages.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var (
	pipedLinkPattern  = regexp.MustCompile(`\[\[[^\]|]*\|([^\]]*)\]\]`)
	linkPattern       = regexp.MustCompile(`\[\[([^\]]*)\]\]`)
	extLinkPattern    = regexp.MustCompile(`\[https?://\S+\s+([^\]]+)\]`)
	emphasisPattern   = regexp.MustCompile(`'{2,}`)
	breakPattern      = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagPattern        = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	templatePattern   = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// StripMarkup removes wiki and inline HTML markup from a captured value.
// Links resolve to their display text, emphasis and templates are dropped,
// line breaks become spaces and whitespace runs collapse.
func StripMarkup(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r", "")
	s = pipedLinkPattern.ReplaceAllString(s, "$1")
	s = linkPattern.ReplaceAllString(s, "$1")
	s = extLinkPattern.ReplaceAllString(s, "$1")
	s = emphasisPattern.ReplaceAllString(s, "")
	s = breakPattern.ReplaceAllString(s, " ")
	s = tagPattern.ReplaceAllString(s, "")
	// Nested templates collapse from the inside out.
	for templatePattern.MatchString(s) {
		s = templatePattern.ReplaceAllString(s, "")
	}
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Extractor evaluates labeled-field patterns with a compiled-pattern cache.
// It is safe for concurrent use.
type Extractor struct {
	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{cache: make(map[string]*regexp.Regexp)}
}

var defaultExtractor = NewExtractor()

// ExtractField returns the cleaned value of a bold-labeled field, using the
// package's shared pattern cache.
func ExtractField(text, label string) (string, bool) {
	return defaultExtractor.Field(text, label)
}

// Field returns the cleaned value following '''Label:''' or '''Label''':.
// The raw value runs to the end of the line or the first <br>.
// It reports false when the label is absent or its value is empty.
func (e *Extractor) Field(text, label string) (string, bool) {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(label) == "" {
		return "", false
	}

	re := e.labelPattern(label)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}

	raw := m[1]
	if loc := breakPattern.FindStringIndex(raw); loc != nil {
		raw = raw[:loc[0]]
	}
	value := StripMarkup(raw)
	if value == "" {
		return "", false
	}
	return value, true
}

// labelPattern returns a cached pattern matching both delimiter conventions.
func (e *Extractor) labelPattern(label string) *regexp.Regexp {
	e.mu.Lock()
	defer e.mu.Unlock()

	if re, ok := e.cache[label]; ok {
		return re
	}

	pattern := fmt.Sprintf(`(?i)'''\s*%s\s*(?::\s*'''|'''\s*:)[ \t]*([^\n]*)`, regexp.QuoteMeta(label))
	re := regexp.MustCompile(pattern)
	e.cache[label] = re
	return re
}

// SafeFilename converts a page title into a lowercase hyphenated file stem.
func SafeFilename(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
