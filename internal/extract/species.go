package extract

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/IshaanNene/Holocron/internal/types"
)

var (
	attributePattern = regexp.MustCompile(`(?i)\b(DEXTERITY|KNOWLEDGE|MECHANICAL|PERCEPTION|STRENGTH|TECHNICAL)\s*:?\s+(\d[0-9Dd+\-]*(?:\s*/\s*[0-9Dd+\-]+)?)`)
	speakPattern     = regexp.MustCompile(`(?i)speaks?(?: their)?(?: own)?(?: native)? ([A-Za-z' -]+)`)
	quotedPattern    = regexp.MustCompile(`"([A-Za-z' -]+)"`)
	orPattern        = regexp.MustCompile(`(?i)\bor\b`)
	languageWord     = regexp.MustCompile(`(?i)\s*language\s*`)
	descriptionTail  = regexp.MustCompile(`(?i)(Attribute Dice|Special Abilities|Story Factors):.*`)
	namesAreLine     = regexp.MustCompile(`(?i)names are`)
	namesSeparator   = regexp.MustCompile(`(?i)<br\s*/?>|[,;*\n]`)
)

// storyFactorExclusions are labels that leak into story factor lists from
// the stat block and are not story factors.
var storyFactorExclusions = map[string]bool{"size": true, "move": true, "source": true}

// SpeciesExtractor builds species records from source pages.
type SpeciesExtractor struct {
	extractor *Extractor
	baseURL   string
	license   string
	logger    *slog.Logger
}

// NewSpeciesExtractor creates a species extractor. baseURL is the wiki's
// article URL prefix used for source attribution.
func NewSpeciesExtractor(baseURL, license string, logger *slog.Logger) *SpeciesExtractor {
	return &SpeciesExtractor{
		extractor: defaultExtractor,
		baseURL:   baseURL,
		license:   license,
		logger:    logger.With("component", "species_extractor"),
	}
}

// Extract builds a species record from a page. Missing fields are left
// empty; whether the record is complete enough to publish is decided by
// the pipeline.
func (x *SpeciesExtractor) Extract(page *types.SourcePage) (*types.SpeciesRecord, error) {
	text, err := PageText(page)
	if err != nil {
		return nil, &types.ParseError{Title: page.Title, Err: err}
	}

	log := x.logger.With("title", page.Title)
	values := x.extractor.ApplyRules(text, SpeciesRules, log)
	sourceURL := x.baseURL + url.PathEscape(page.Title)

	rec := &types.SpeciesRecord{
		Name:      page.Title,
		Plural:    DerivePlural(page.Title),
		Homeworld: values.Get("homeworld"),
		Stats: &types.SpeciesStats{
			AttributeDice: values.Get("attributeDice"),
			Attributes:    ExtractAttributes(text),
			Move:          values.Get("move"),
			Size:          values.Get("size"),
		},
		SourcePage: page.Ref(),
	}
	if len(rec.Stats.Attributes) == 0 {
		log.Warn("field missing", "field", "attributes")
	}

	if abilities, ok := ExtractSection(text, "Special Abilities"); ok {
		rec.SpecialAbilities = ParseBulletEntries(abilities)
	}
	if factors, ok := ExtractSection(text, "Story Factors"); ok {
		for _, e := range ParseBulletEntries(factors) {
			label := strings.ToLower(e.Name)
			if label == "" || storyFactorExclusions[label] {
				continue
			}
			rec.StoryFactors = append(rec.StoryFactors, e)
		}
	}

	intro := ExtractIntro(text)
	if intro == "" {
		intro = "See source entry " + sourceURL + " for background (" + x.license + ")."
	}
	if cleaned := strings.TrimSpace(descriptionTail.ReplaceAllString(intro, "")); cleaned != "" {
		intro = cleaned
	}
	rec.Description = intro

	rec.Personality = x.sanitized(text, "Personality")
	rec.PhysicalDescription = firstNonEmpty(
		x.sanitized(text, "Physical Description"),
		x.sanitized(text, "Biology & Appearance"),
		"See source for physical description.",
	)
	rec.Adventurers = x.sanitized(text, page.Title+" in the Galaxy")

	languageNotes := x.sanitized(text, "Language")
	rec.Languages = &types.Languages{
		Native:      InferNativeLanguage(languageNotes, page.Title),
		Description: firstNonEmpty(languageNotes, "Language details were not provided; refer to "+sourceURL+"."),
	}

	if names, ok := ExtractSection(text, "Names"); ok {
		rec.ExampleNames = ParseNames(names, 6)
	}

	if img, ok := ExtractImageFilename(text); ok {
		rec.ImageFilename = img
	}

	source := values.Get("source")
	if source == "" {
		source = x.license + " d6holocron.com/wiki/" + url.PathEscape(page.Title)
	}
	rec.Sources = []string{source}
	rec.Notes = "Source text " + x.license + " from " + sourceURL

	return rec, nil
}

func (x *SpeciesExtractor) sanitized(text, heading string) string {
	section, ok := ExtractSection(text, heading)
	if !ok {
		return ""
	}
	return SanitizeSection(section)
}

// ExtractAttributes finds "DEXTERITY 1D/3D+2" style attribute ranges.
// Values are uppercased; a single value fills min and leaves max empty.
func ExtractAttributes(text string) map[string]*types.DiceRange {
	attrs := make(map[string]*types.DiceRange)
	for _, m := range attributePattern.FindAllStringSubmatch(text, -1) {
		key := strings.ToLower(m[1])
		parts := strings.SplitN(strings.ToUpper(m[2]), "/", 2)
		r := &types.DiceRange{Min: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			r.Max = strings.TrimSpace(parts[1])
		}
		attrs[key] = r
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// DerivePlural guesses an English plural for a species name.
func DerivePlural(name string) string {
	switch {
	case name == "":
		return ""
	case strings.HasSuffix(name, "s"), strings.ContainsAny(name, "'-"):
		return name
	case strings.HasSuffix(name, "y"):
		return strings.TrimSuffix(name, "y") + "ies"
	default:
		return name + "s"
	}
}

// InferNativeLanguage reads the language name from language notes,
// falling back to "<species> language".
func InferNativeLanguage(notes, species string) string {
	fallback := species + " language"
	if notes == "" {
		return fallback
	}

	if m := speakPattern.FindStringSubmatch(notes); m != nil {
		raw := strings.TrimSpace(StripMarkup(m[1]))
		var candidate string
		for _, part := range orPattern.Split(raw, -1) {
			part = strings.TrimSpace(languageWord.ReplaceAllString(part, " "))
			if part != "" {
				candidate = part
			}
		}
		if candidate != "" {
			return candidate
		}
		if raw != "" {
			return raw
		}
	}

	if m := quotedPattern.FindStringSubmatch(notes); m != nil {
		if name := strings.TrimSpace(StripMarkup(m[1])); name != "" {
			return name
		}
	}
	return fallback
}

// ParseNames splits a names section into distinct example names,
// skipping descriptive "names are ..." lines. limit <= 0 means no limit.
func ParseNames(section string, limit int) []string {
	seen := make(map[string]bool)
	var names []string
	for _, part := range namesSeparator.Split(section, -1) {
		name := StripMarkup(part)
		if name == "" || seen[name] || namesAreLine.MatchString(name) {
			continue
		}
		seen[name] = true
		names = append(names, name)
		if limit > 0 && len(names) == limit {
			break
		}
	}
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
