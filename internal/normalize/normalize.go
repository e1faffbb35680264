// Package normalize canonicalizes dice notation and species statistics.
//
// Normalization is advisory: values that do not look like dice pass through
// unchanged and shape mismatches are reported, never rejected.
package normalize

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/IshaanNene/Holocron/internal/types"
)

var (
	dicePattern    = regexp.MustCompile(`^\d+D(\+\d+)?$`)
	movePattern    = regexp.MustCompile(`^\d+(/\d+)?$`)
	sizePattern    = regexp.MustCompile(`(?i)^\d+(\.\d+)?\s*-\s*\d+(\.\d+)?\s*(m|meter|meters)?$`)
	leadingArticle = regexp.MustCompile(`^(a|an|the)\s+`)
)

// NormalizeDice uppercases the die suffix of a dice string such as "2d+1".
// Input that is not dice-shaped after trimming and uppercasing is returned
// unchanged.
func NormalizeDice(s string) string {
	candidate := strings.ToUpper(strings.TrimSpace(s))
	if !dicePattern.MatchString(candidate) {
		return s
	}
	return candidate
}

// IsDice reports whether s is already in canonical dice form.
func IsDice(s string) bool {
	return dicePattern.MatchString(s)
}

// NormalizeAttributes keeps only entries that are objects carrying both a
// min and a max, normalizing each. Anything else is dropped silently.
// It accepts the loosely typed shape produced by decoding stored JSON.
func NormalizeAttributes(attrs map[string]any) map[string]types.DiceRange {
	out := make(map[string]types.DiceRange, len(attrs))
	for key, raw := range attrs {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		minVal, hasMin := obj["min"]
		maxVal, hasMax := obj["max"]
		if !hasMin || !hasMax {
			continue
		}
		minStr, ok1 := minVal.(string)
		maxStr, ok2 := maxVal.(string)
		if !ok1 || !ok2 {
			continue
		}
		out[key] = types.DiceRange{Min: NormalizeDice(minStr), Max: NormalizeDice(maxStr)}
	}
	return out
}

// NormalizeRanges is NormalizeAttributes for extracted ranges. A single
// value ("DEXTERITY 2D") is kept with an empty max; ranges without a min
// are dropped. The result is nil when nothing is left.
func NormalizeRanges(attrs map[string]*types.DiceRange) map[string]*types.DiceRange {
	var out map[string]*types.DiceRange
	for key, r := range attrs {
		if r == nil || r.Min == "" {
			continue
		}
		if out == nil {
			out = make(map[string]*types.DiceRange, len(attrs))
		}
		out[key] = &types.DiceRange{Min: NormalizeDice(r.Min), Max: NormalizeDice(r.Max)}
	}
	return out
}

// ValidMove reports whether a move value looks like "10" or "10/12".
func ValidMove(s string) bool {
	return movePattern.MatchString(strings.TrimSpace(s))
}

// CheckSize reports whether a size value looks like "1.3-1.5 meters".
// A mismatch is logged at warn level and is never an error.
func CheckSize(s string, logger *slog.Logger) bool {
	ok := sizePattern.MatchString(strings.TrimSpace(s))
	if !ok && logger != nil {
		logger.Warn("unexpected size shape", "size", s)
	}
	return ok
}

// SortName lowercases and trims a name and drops a leading article.
func SortName(name string) string {
	return leadingArticle.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "")
}

// SearchName is the exact-match search key for a name.
func SearchName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Species normalizes a species record in place and returns warnings for
// values that did not fit the expected shapes.
func Species(rec *types.SpeciesRecord, logger *slog.Logger) []string {
	var warnings []string
	rec.SortName = SortName(rec.Name)
	rec.SearchName = SearchName(rec.Name)

	if rec.Stats == nil {
		return warnings
	}
	st := rec.Stats
	st.AttributeDice = NormalizeDice(st.AttributeDice)
	if st.AttributeDice != "" && !IsDice(st.AttributeDice) {
		warnings = append(warnings, "attributeDice is not dice notation: "+st.AttributeDice)
	}
	st.Attributes = NormalizeRanges(st.Attributes)
	if st.Move != "" && !ValidMove(st.Move) {
		warnings = append(warnings, "move has unexpected shape: "+st.Move)
	}
	if st.Size != "" && !CheckSize(st.Size, logger) {
		warnings = append(warnings, "size has unexpected shape: "+st.Size)
	}
	return warnings
}

// Starship normalizes the dice-valued fields of a starship record in place.
func Starship(rec *types.StarshipRecord) {
	rec.SortName = SortName(rec.Name)
	for _, f := range []*string{&rec.Maneuverability, &rec.Hull, &rec.Shields, &rec.CrewSkill} {
		*f = NormalizeDice(*f)
	}
	for i := range rec.Weapons {
		rec.Weapons[i].FireControl = NormalizeDice(rec.Weapons[i].FireControl)
		rec.Weapons[i].Damage = NormalizeDice(rec.Weapons[i].Damage)
	}
}
