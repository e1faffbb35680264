package extract

import (
	"log/slog"
	"strings"
)

// FieldRule maps one record field to the labels that may carry it.
// Labels are tried in order and the first present one wins.
type FieldRule struct {
	Field    string
	Labels   []string
	Required bool
	Post     func(string) string
}

// FieldValues holds the values produced by a rule table.
type FieldValues map[string]string

// Get returns a field value, or "" when the field was not extracted.
func (v FieldValues) Get(field string) string {
	return v[field]
}

// ApplyRules evaluates every rule independently against text.
// Missing required fields are logged at warn level and missing optional
// fields at debug level; neither stops the remaining rules.
func (e *Extractor) ApplyRules(text string, rules []FieldRule, logger *slog.Logger) FieldValues {
	values := make(FieldValues, len(rules))
	for _, rule := range rules {
		value, ok := e.firstLabel(text, rule.Labels)
		if ok && rule.Post != nil {
			value = rule.Post(value)
			ok = value != ""
		}
		if !ok {
			if logger != nil {
				if rule.Required {
					logger.Warn("field missing", "field", rule.Field)
				} else {
					logger.Debug("field missing", "field", rule.Field)
				}
			}
			continue
		}
		values[rule.Field] = value
	}
	return values
}

// ApplyRules evaluates a rule table with the shared pattern cache.
func ApplyRules(text string, rules []FieldRule, logger *slog.Logger) FieldValues {
	return defaultExtractor.ApplyRules(text, rules, logger)
}

func (e *Extractor) firstLabel(text string, labels []string) (string, bool) {
	for _, label := range labels {
		if v, ok := e.Field(text, label); ok {
			return v, true
		}
	}
	return "", false
}

// trimTrailingPunct drops trailing separators left by inline field lists.
func trimTrailingPunct(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ",;")
}

// SpeciesRules is the labeled-field table for species pages.
var SpeciesRules = []FieldRule{
	{Field: "homeworld", Labels: []string{"Home Planet", "Homeworld", "Home World"}},
	{Field: "attributeDice", Labels: []string{"Attribute Dice"}, Required: true, Post: trimTrailingPunct},
	{Field: "move", Labels: []string{"Move"}, Required: true, Post: trimTrailingPunct},
	{Field: "size", Labels: []string{"Size", "Height"}, Required: true, Post: trimTrailingPunct},
	{Field: "source", Labels: []string{"Source", "Sources"}},
}

// StarshipRules is the labeled-field table for starship pages and variant blocks.
var StarshipRules = []FieldRule{
	{Field: "name", Labels: []string{"Name"}},
	{Field: "craft", Labels: []string{"Craft"}},
	{Field: "affiliation", Labels: []string{"Affiliation", "Alliance"}},
	{Field: "type", Labels: []string{"Type"}},
	{Field: "scale", Labels: []string{"Scale"}, Required: true},
	{Field: "length", Labels: []string{"Length"}},
	{Field: "skill", Labels: []string{"Skill"}},
	{Field: "crew", Labels: []string{"Crew"}},
	{Field: "crewSkill", Labels: []string{"Crew Skill"}},
	{Field: "passengers", Labels: []string{"Passengers"}},
	{Field: "cargoCapacity", Labels: []string{"Cargo Capacity"}},
	{Field: "consumables", Labels: []string{"Consumables"}},
	{Field: "cost", Labels: []string{"Cost"}},
	{Field: "hyperdrive", Labels: []string{"Hyperdrive Multiplier", "Hyperdrive"}},
	{Field: "navComputer", Labels: []string{"Nav Computer", "Navcomputer"}},
	{Field: "maneuverability", Labels: []string{"Maneuverability"}},
	{Field: "space", Labels: []string{"Space"}},
	{Field: "atmosphere", Labels: []string{"Atmosphere"}},
	{Field: "hull", Labels: []string{"Hull"}},
	{Field: "shields", Labels: []string{"Shields"}},
}
