// Package repair recovers values from persisted JSON text that fails to
// parse. Repair never modifies its input; a failed repair leaves the row
// as it was so it can be reviewed by hand.
package repair

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy names reported in Result.
const (
	StrategyStrict        = "strict"
	StrategyPlaceholders  = "placeholders"
	StrategyInnerQuotes   = "inner-quotes"
	StrategyStripNewlines = "strip-newlines"
)

// placeholderPattern matches stub objects such as {"name":"12"} or
// {"name":"3-4"} together with an adjacent comma.
var (
	placeholderPattern = regexp.MustCompile(`,?\s*\{\s*"name"\s*:\s*"\d+(?:-\d+)?"\s*\}\s*,?`)
	danglingClose      = regexp.MustCompile(`,(\s*[\]}])`)
	danglingOpen       = regexp.MustCompile(`([\[{]\s*),`)
)

// Result is the outcome of a repair attempt.
type Result struct {
	// Value is the decoded value when OK is true.
	Value any

	// OK reports whether any strategy produced valid JSON.
	OK bool

	// Strategy names the step that succeeded.
	Strategy string

	// Text is the repaired JSON text that decoded to Value.
	Text string
}

// Repair tries, in order: a strict parse, placeholder removal, escaping
// of unescaped inner quotes, and finally stripping raw newlines. Each
// step builds on the previous one and the first that parses wins.
func Repair(raw string) Result {
	if v, ok := tryParse(raw); ok {
		return Result{Value: v, OK: true, Strategy: StrategyStrict, Text: raw}
	}

	steps := []struct {
		name string
		fn   func(string) string
	}{
		{StrategyPlaceholders, RemovePlaceholders},
		{StrategyInnerQuotes, EscapeInnerQuotes},
		{StrategyStripNewlines, stripNewlines},
	}

	text := raw
	for _, step := range steps {
		text = step.fn(text)
		if v, ok := tryParse(text); ok {
			return Result{Value: v, OK: true, Strategy: step.name, Text: text}
		}
	}
	return Result{}
}

func tryParse(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// RemovePlaceholders drops numeric-name placeholder objects. A placeholder
// between two elements leaves a single comma behind, and commas left
// dangling next to a bracket are removed.
func RemovePlaceholders(s string) string {
	s = placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		if strings.HasPrefix(m, ",") && strings.HasSuffix(m, ",") {
			return ","
		}
		return ""
	})
	s = danglingClose.ReplaceAllString(s, "$1")
	return danglingOpen.ReplaceAllString(s, "$1")
}

// EscapeInnerQuotes escapes double quotes that sit inside a string value.
// A quote closes the current string only when the next non-space byte is
// a JSON delimiter (, : } ]) or the end of input; any other quote is
// treated as literal text, so "2 "egg" bombs" becomes "2 \"egg\" bombs".
func EscapeInnerQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inString && c == '\\':
			b.WriteByte(c)
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			}
			continue
		case c == '"' && !inString:
			inString = true
		case c == '"' && inString:
			if !closesString(s[i+1:]) {
				b.WriteString(`\"`)
				continue
			}
			inString = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

func closesString(rest string) bool {
	rest = strings.TrimLeft(rest, " \t\r\n")
	return rest == "" || strings.ContainsRune(",:}]", rune(rest[0]))
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
