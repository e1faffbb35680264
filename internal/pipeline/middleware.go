package pipeline

import (
	"html"
	"log/slog"
	"strings"
	"sync"

	"github.com/IshaanNene/Holocron/internal/identity"
	"github.com/IshaanNene/Holocron/internal/normalize"
	"github.com/IshaanNene/Holocron/internal/search"
	"github.com/IshaanNene/Holocron/internal/types"
)

// --- Record Middleware ---

// SanitizeMiddleware decodes HTML entities left in free-text fields and
// collapses whitespace.
type SanitizeMiddleware struct{}

func (m *SanitizeMiddleware) Name() string { return "sanitize" }

func (m *SanitizeMiddleware) Process(item *types.Item) (*types.Item, error) {
	var fields []*string
	switch {
	case item.Species != nil:
		s := item.Species
		fields = []*string{&s.Description, &s.Personality, &s.PhysicalDescription, &s.Adventurers, &s.Homeworld}
		if s.Languages != nil {
			fields = append(fields, &s.Languages.Description)
		}
		for i := range s.SpecialAbilities {
			fields = append(fields, &s.SpecialAbilities[i].Description)
		}
		for i := range s.StoryFactors {
			fields = append(fields, &s.StoryFactors[i].Description)
		}
	case item.Starship != nil:
		fields = []*string{&item.Starship.Description, &item.Starship.Affiliation, &item.Starship.Type}
	}

	for _, f := range fields {
		if *f == "" {
			continue
		}
		*f = strings.Join(strings.Fields(html.UnescapeString(*f)), " ")
	}
	return item, nil
}

// NormalizeMiddleware canonicalizes dice notation and sort names.
// Shape mismatches become item warnings, never errors.
type NormalizeMiddleware struct {
	logger *slog.Logger
}

func NewNormalizeMiddleware(logger *slog.Logger) *NormalizeMiddleware {
	return &NormalizeMiddleware{logger: logger.With("component", "normalize")}
}

func (m *NormalizeMiddleware) Name() string { return "normalize" }

func (m *NormalizeMiddleware) Process(item *types.Item) (*types.Item, error) {
	switch {
	case item.Species != nil:
		for _, w := range normalize.Species(item.Species, m.logger.With("name", item.Name())) {
			item.Warn("%s", w)
		}
	case item.Starship != nil:
		normalize.Starship(item.Starship)
	}
	return item, nil
}

// RequiredStatsMiddleware drops species that lack any of attribute dice,
// attributes, move or size. Starships always pass.
type RequiredStatsMiddleware struct {
	logger *slog.Logger
}

func NewRequiredStatsMiddleware(logger *slog.Logger) *RequiredStatsMiddleware {
	return &RequiredStatsMiddleware{logger: logger.With("component", "required_stats")}
}

func (m *RequiredStatsMiddleware) Name() string { return "required_stats" }

func (m *RequiredStatsMiddleware) Process(item *types.Item) (*types.Item, error) {
	if item.Species == nil {
		return item, nil
	}
	if missing := MissingStats(item.Species); len(missing) > 0 {
		m.logger.Warn("species skipped, missing stats", "name", item.Name(), "missing", missing)
		return nil, nil // Drop item
	}
	return item, nil
}

// MissingStats lists the required species stats that are empty.
func MissingStats(rec *types.SpeciesRecord) []string {
	st := rec.Stats
	if st == nil {
		return []string{"attributeDice", "attributes", "move", "size"}
	}
	var missing []string
	if st.AttributeDice == "" {
		missing = append(missing, "attributeDice")
	}
	if len(st.Attributes) == 0 {
		missing = append(missing, "attributes")
	}
	if st.Move == "" {
		missing = append(missing, "move")
	}
	if st.Size == "" {
		missing = append(missing, "size")
	}
	return missing
}

// DedupMiddleware drops items whose identity was already seen in this batch.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{seen: make(map[string]struct{})}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(item *types.Item) (*types.Item, error) {
	key := string(item.Collection) + "/" + item.IdentityKey()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[key]; exists {
		return nil, nil // Drop duplicate
	}
	m.seen[key] = struct{}{}
	return item, nil
}

// OwnerFunc reports whether a persisted slug already holds the item's entity.
type OwnerFunc func(item *types.Item, slug string) bool

// SlugMiddleware assigns each item a unique slug from the batch's
// reservations. A persisted slug owned by the same entity is reused.
type SlugMiddleware struct {
	Reservations *identity.Reservations
	Owns         OwnerFunc
}

func (m *SlugMiddleware) Name() string { return "slug" }

func (m *SlugMiddleware) Process(item *types.Item) (*types.Item, error) {
	var owns identity.OwnsFunc
	if m.Owns != nil {
		owns = func(slug string) bool { return m.Owns(item, slug) }
	}
	slug := m.Reservations.Assign(item.Name(), item.ID, owns)
	item.SetSlug(slug)

	if s := item.Species; s != nil {
		if s.ImageFilename != "" && s.ImagePath == "" {
			s.ImagePath = "aliens/" + slug + ".webp"
		}
		s.HasImage = s.ImagePath != ""
	}
	return item, nil
}

// SearchTokensMiddleware fills search tokens and search names.
type SearchTokensMiddleware struct{}

func (m *SearchTokensMiddleware) Name() string { return "search_tokens" }

func (m *SearchTokensMiddleware) Process(item *types.Item) (*types.Item, error) {
	switch {
	case item.Species != nil:
		s := item.Species
		s.SearchTokens = search.GenerateSearchTokens(s.Name, s.Homeworld, s.Sources...)
		s.SearchName = normalize.SearchName(s.Name)
	case item.Starship != nil:
		s := item.Starship
		s.SearchTokens = search.GenerateSearchTokens(s.Name, s.Craft, s.Parent, s.Type)
	}
	return item, nil
}

// Default builds the standard record pipeline: sanitize, normalize, the
// required-stats gate, batch dedup, slug assignment and search tokens.
func Default(logger *slog.Logger, reservations *identity.Reservations, owns OwnerFunc) *Pipeline {
	p := New(logger)
	p.Use(&SanitizeMiddleware{})
	p.Use(NewNormalizeMiddleware(logger))
	p.Use(NewRequiredStatsMiddleware(logger))
	p.Use(NewDedupMiddleware())
	p.Use(&SlugMiddleware{Reservations: reservations, Owns: owns})
	p.Use(&SearchTokensMiddleware{})
	return p
}
