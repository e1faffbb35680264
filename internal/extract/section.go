package extract

import (
	"regexp"
	"strings"

	"github.com/IshaanNene/Holocron/internal/types"
)

var (
	headingPattern  = regexp.MustCompile(`^(=+)\s*(.+?)\s*=+\s*$`)
	filePattern     = regexp.MustCompile(`(?i)\[\[(?:File|Image):([^|\]]+)`)
	fileLinePattern = regexp.MustCompile(`(?i)^\[\[(?:File|Image):`)
	bulletPrefix    = regexp.MustCompile(`^[*#:;]+\s*`)
)

// Heading is one heading line found in page text.
type Heading struct {
	Level int
	Text  string
	Line  int
}

// Block is a heading and the body lines under it.
type Block struct {
	Heading Heading
	Body    string
}

// splitLines splits text on LF or CRLF.
func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// parseHeading recognizes a heading line such as "== Weapons ==".
func parseHeading(line string) (Heading, bool) {
	m := headingPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Heading{}, false
	}
	return Heading{Level: len(m[1]), Text: m[2]}, true
}

// normalizeHeading makes heading comparison case and punctuation insensitive.
func normalizeHeading(s string) string {
	s = StripMarkup(s)
	s = strings.NewReplacer("'", "", ":", "").Replace(s)
	return strings.ToLower(strings.TrimSpace(s))
}

// Headings lists every heading in text in order of appearance.
func Headings(text string) []Heading {
	var out []Heading
	for i, line := range splitLines(text) {
		if h, ok := parseHeading(line); ok {
			h.Line = i
			out = append(out, h)
		}
	}
	return out
}

// ExtractSection returns the body under the heading named name, up to the
// next heading of the same or a higher level. Matching ignores case,
// apostrophes, colons and markup. It reports false when the heading is
// absent or its body is blank.
func ExtractSection(text, name string) (string, bool) {
	target := normalizeHeading(name)
	if target == "" {
		return "", false
	}

	lines := splitLines(text)
	level := 0
	var buf []string
	for _, line := range lines {
		h, isHeading := parseHeading(line)
		if level > 0 {
			if isHeading && h.Level <= level {
				break
			}
			buf = append(buf, line)
			continue
		}
		if isHeading && normalizeHeading(h.Text) == target {
			level = h.Level
		}
	}

	body := strings.TrimSpace(strings.Join(buf, "\n"))
	if body == "" {
		return "", false
	}
	return body, true
}

// SplitSections returns every block headed at exactly the given level.
// A block's body runs to the next heading at that level or higher.
func SplitSections(text string, level int) []Block {
	var blocks []Block
	var current *Block
	var buf []string

	flush := func() {
		if current != nil {
			current.Body = strings.TrimSpace(strings.Join(buf, "\n"))
			blocks = append(blocks, *current)
		}
		current = nil
		buf = nil
	}

	for i, line := range splitLines(text) {
		h, isHeading := parseHeading(line)
		if isHeading && h.Level <= level {
			flush()
			if h.Level == level {
				h.Line = i
				current = &Block{Heading: h}
			}
			continue
		}
		if current != nil {
			buf = append(buf, line)
		}
	}
	flush()
	return blocks
}

// ParseBulletEntries turns section lines into name/description entries.
// Each line splits on its first colon outside double quotes; lines without
// one become entries with an empty name. Entries whose description is
// empty after cleaning are dropped.
func ParseBulletEntries(section string) []types.Entry {
	var entries []types.Entry
	for _, line := range splitLines(section) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, isHeading := parseHeading(line); isHeading {
			continue
		}
		line = bulletPrefix.ReplaceAllString(line, "")
		if fileLinePattern.MatchString(line) {
			continue
		}

		var entry types.Entry
		if idx := unquotedColon(line); idx >= 0 {
			entry.Name = strings.Trim(StripMarkup(line[:idx]), `'" `)
			entry.Description = StripMarkup(line[idx+1:])
		} else {
			entry.Description = StripMarkup(line)
		}
		if entry.Description == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// unquotedColon returns the byte index of the first colon outside a
// double-quoted span, or -1.
func unquotedColon(s string) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case ':':
			if !inQuote {
				return i
			}
		}
	}
	return -1
}

// SanitizeSection cleans every line of a section and joins them with spaces.
func SanitizeSection(section string) string {
	var parts []string
	for _, line := range splitLines(section) {
		if _, isHeading := parseHeading(line); isHeading {
			continue
		}
		line = bulletPrefix.ReplaceAllString(strings.TrimSpace(line), "")
		if cleaned := StripMarkup(line); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, " ")
}

// introSkipPattern matches labeled stat lines that are not intro prose.
var (
	introSkipPattern = regexp.MustCompile(`(?i)^'''\s*(Species|Home Planet|Homeworld|Home World|Attribute Dice|Attributes|Move|Size|Height|Source)`)
	attributeLine    = regexp.MustCompile(`(?i)^(DEXTERITY|KNOWLEDGE|MECHANICAL|PERCEPTION|STRENGTH|TECHNICAL)\b`)
)

// ExtractIntro returns the cleaned prose before the first heading,
// skipping file embeds and labeled stat lines.
func ExtractIntro(text string) string {
	var buf []string
	for _, line := range splitLines(text) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "=") {
			break
		}
		if fileLinePattern.MatchString(trimmed) || introSkipPattern.MatchString(trimmed) || attributeLine.MatchString(trimmed) {
			continue
		}
		if cleaned := StripMarkup(trimmed); cleaned != "" {
			buf = append(buf, cleaned)
		}
	}
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(strings.Join(buf, " "), " "))
}

// ExtractImageFilename returns the first embedded file name, if any.
func ExtractImageFilename(text string) (string, bool) {
	m := filePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	return name, name != ""
}
