package extract

import (
	"regexp"
	"strings"

	"github.com/IshaanNene/Holocron/internal/types"
)

var (
	sensorsHeader = regexp.MustCompile(`(?i)'''\s*Sensors\s*:?\s*'''\s*:?`)
	sensorLine    = regexp.MustCompile(`(?i)^(Passive|Scan|Search|Focus)\s*:\s*(.+)$`)
	boldLineStart = regexp.MustCompile(`^\s*'''`)
	lineBreaks    = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// ExtractSensors parses the four-line sensor sub-list that follows a bold
// Sensors label (or a Sensors heading). It returns nil when no sensor
// range is present.
func ExtractSensors(text string) *types.Sensors {
	block, ok := sensorsBlock(text)
	if !ok {
		return nil
	}

	var s types.Sensors
	found := false
	for _, line := range detailLines(block) {
		m := sensorLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[2])
		switch strings.ToLower(m[1]) {
		case "passive":
			s.Passive = value
		case "scan":
			s.Scan = value
		case "search":
			s.Search = value
		case "focus":
			s.Focus = value
		}
		found = true
	}
	if !found {
		return nil
	}
	return &s
}

// sensorsBlock returns the lines under the Sensors label, stopping at the
// next bold label line or heading.
func sensorsBlock(text string) (string, bool) {
	loc := sensorsHeader.FindStringIndex(text)
	if loc == nil {
		return ExtractSection(text, "Sensors")
	}

	var buf []string
	for i, line := range splitLines(text[loc[1]:]) {
		if i > 0 {
			if boldLineStart.MatchString(line) {
				break
			}
			if _, isHeading := parseHeading(line); isHeading {
				break
			}
		}
		buf = append(buf, line)
	}
	block := strings.TrimSpace(strings.Join(buf, "\n"))
	return block, block != ""
}

// detailLines splits a block on newlines and <br>, strips bullet markers and
// markup, and drops blank lines.
func detailLines(block string) []string {
	var out []string
	for _, line := range splitLines(lineBreaks.ReplaceAllString(block, "\n")) {
		line = bulletPrefix.ReplaceAllString(strings.TrimSpace(line), "")
		if cleaned := StripMarkup(line); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
