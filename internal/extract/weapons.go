package extract

import (
	"regexp"
	"strings"

	"github.com/IshaanNene/Holocron/internal/types"
)

var (
	weaponsHeader     = regexp.MustCompile(`(?i)'''\s*Weapons\s*:?\s*'''\s*:?`)
	descriptionHeader = regexp.MustCompile(`(?i)'''\s*Description\s*:?\s*'''`)
	weaponSplit       = regexp.MustCompile(`\*\s*'''`)
	weaponName        = regexp.MustCompile(`^([^']+)'''`)
	weaponField       = regexp.MustCompile(`(?i)^(Fire Arc|Scale|Skill|Fire Control|Space Range|Atmosphere Range|Damage)\s*:\s*(.+)$`)
)

// ExtractWeapons parses the weapon list under a bold Weapons label.
// The list is split into one chunk per "*'''Name'''" entry, and each
// weapon's fields are read only from its own chunk.
func ExtractWeapons(text string) []types.Weapon {
	block, ok := weaponsBlock(text)
	if !ok {
		return nil
	}

	chunks := weaponSplit.Split(block, -1)
	var weapons []types.Weapon
	// chunks[0] is whatever precedes the first weapon entry.
	for _, chunk := range chunks[1:] {
		m := weaponName.FindStringSubmatch(chunk)
		if m == nil {
			continue
		}
		name := StripMarkup(m[1])
		if name == "" {
			continue
		}
		// A bolded detail label ("*'''Damage:''' 5D") belongs to the
		// weapon above it, not to a new weapon.
		if isWeaponLabel(name) {
			if n := len(weapons); n > 0 {
				applyWeaponFields(&weapons[n-1], name+" "+chunk[len(m[0]):])
			}
			continue
		}
		w := types.Weapon{Name: name}
		applyWeaponFields(&w, chunk[len(m[0]):])
		weapons = append(weapons, w)
	}
	return weapons
}

func isWeaponLabel(name string) bool {
	return weaponField.MatchString(name + " x")
}

// weaponsBlock returns the text between the Weapons label and the
// Description label, a heading, or the end of text.
func weaponsBlock(text string) (string, bool) {
	loc := weaponsHeader.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := text[loc[1]:]
	if end := descriptionHeader.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}

	var buf []string
	for _, line := range splitLines(rest) {
		if _, isHeading := parseHeading(line); isHeading {
			break
		}
		buf = append(buf, line)
	}
	block := strings.TrimSpace(strings.Join(buf, "\n"))
	return block, block != ""
}

// applyWeaponFields fills the weapon's fields from its own detail chunk.
// The first occurrence of each label wins.
func applyWeaponFields(w *types.Weapon, chunk string) {
	for _, line := range detailLines(chunk) {
		m := weaponField.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[2])
		var dst *string
		switch strings.ToLower(m[1]) {
		case "fire arc":
			dst = &w.FireArc
		case "scale":
			dst = &w.Scale
		case "skill":
			dst = &w.Skill
		case "fire control":
			dst = &w.FireControl
		case "space range":
			dst = &w.SpaceRange
		case "atmosphere range":
			dst = &w.AtmosphereRange
		case "damage":
			dst = &w.Damage
		}
		if dst != nil && *dst == "" {
			*dst = value
		}
	}
}
