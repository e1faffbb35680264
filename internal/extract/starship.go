package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/IshaanNene/Holocron/internal/types"
)

var descriptionLabel = regexp.MustCompile(`(?i)'''\s*Description\s*(?::\s*'''|'''\s*:?)`)

// StarshipFromBlock fills a starship record from the labeled fields,
// sensors, weapons and description found in block. Identity fields
// (name, parent, category, provenance) are left to the caller.
func StarshipFromBlock(block string, logger *slog.Logger) (*types.StarshipRecord, FieldValues) {
	v := defaultExtractor.ApplyRules(block, StarshipRules, logger)
	rec := &types.StarshipRecord{
		Craft:           v.Get("craft"),
		Affiliation:     v.Get("affiliation"),
		Type:            v.Get("type"),
		Scale:           v.Get("scale"),
		Length:          v.Get("length"),
		Skill:           v.Get("skill"),
		Crew:            v.Get("crew"),
		CrewSkill:       v.Get("crewSkill"),
		Passengers:      v.Get("passengers"),
		CargoCapacity:   v.Get("cargoCapacity"),
		Consumables:     v.Get("consumables"),
		Cost:            v.Get("cost"),
		Hyperdrive:      v.Get("hyperdrive"),
		NavComputer:     v.Get("navComputer"),
		Maneuverability: v.Get("maneuverability"),
		Space:           v.Get("space"),
		Atmosphere:      v.Get("atmosphere"),
		Hull:            v.Get("hull"),
		Shields:         v.Get("shields"),
		Sensors:         ExtractSensors(block),
		Weapons:         ExtractWeapons(block),
		Description:     ExtractDescription(block),
	}
	if img, ok := ExtractImageFilename(block); ok {
		rec.ImageFilename = img
	}
	return rec, v
}

// ExtractDescription returns the cleaned text after a bold Description
// label, up to the next bold label, heading, or end of text.
func ExtractDescription(text string) string {
	loc := descriptionLabel.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if end := strings.Index(rest, "'''"); end >= 0 {
		rest = rest[:end]
	}

	var buf []string
	for _, line := range splitLines(rest) {
		if _, isHeading := parseHeading(line); isHeading {
			break
		}
		buf = append(buf, line)
	}
	return StripMarkup(strings.Join(buf, " "))
}
