package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Collection names a record collection in the store.
type Collection string

const (
	CollectionSpecies   Collection = "species"
	CollectionStarships Collection = "starships"
)

// Item carries one extracted record through the pipeline.
// Exactly one of Species or Starship is set.
type Item struct {
	// Collection is the target store collection.
	Collection Collection

	// Species is set for species pages.
	Species *SpeciesRecord

	// Starship is set for ship pages and their variants.
	Starship *StarshipRecord

	// Page is the source page this item was extracted from.
	Page *SourcePage

	// ID is an optional disambiguator used when the base slug is taken.
	ID string

	// Warnings collects non-fatal extraction and normalization notes.
	Warnings []string

	// Timestamp is when this item was created.
	Timestamp time.Time
}

// NewSpeciesItem wraps a species record.
func NewSpeciesItem(rec *SpeciesRecord, page *SourcePage) *Item {
	return &Item{
		Collection: CollectionSpecies,
		Species:    rec,
		Page:       page,
		Timestamp:  time.Now(),
	}
}

// NewStarshipItem wraps a starship record.
func NewStarshipItem(rec *StarshipRecord, page *SourcePage) *Item {
	return &Item{
		Collection: CollectionStarships,
		Starship:   rec,
		Page:       page,
		Timestamp:  time.Now(),
	}
}

// Name returns the record's display name.
func (i *Item) Name() string {
	switch {
	case i.Species != nil:
		return i.Species.Name
	case i.Starship != nil:
		return i.Starship.Name
	}
	return ""
}

// Slug returns the record's assigned slug (empty before assignment).
func (i *Item) Slug() string {
	switch {
	case i.Species != nil:
		return i.Species.Slug
	case i.Starship != nil:
		return i.Starship.Slug
	}
	return ""
}

// SetSlug assigns the record's slug.
func (i *Item) SetSlug(slug string) {
	switch {
	case i.Species != nil:
		i.Species.Slug = slug
	case i.Starship != nil:
		i.Starship.Slug = slug
	}
}

// IdentityKey identifies the real-world entity behind the record: the
// lowercased name plus, for variants, the lowercased parent. Two items with
// the same key describe the same entity.
func (i *Item) IdentityKey() string {
	switch {
	case i.Species != nil:
		return SpeciesIdentity(i.Species)
	case i.Starship != nil:
		return StarshipIdentity(i.Starship)
	}
	return ""
}

// SpeciesIdentity is the identity key of a species record.
func SpeciesIdentity(rec *SpeciesRecord) string {
	return strings.ToLower(strings.TrimSpace(rec.Name))
}

// StarshipIdentity is the identity key of a starship record.
func StarshipIdentity(rec *StarshipRecord) string {
	return strings.ToLower(strings.TrimSpace(rec.Name)) + "|" + strings.ToLower(strings.TrimSpace(rec.Parent))
}

// Record returns the wrapped record as an untyped value.
func (i *Item) Record() any {
	switch {
	case i.Species != nil:
		return i.Species
	case i.Starship != nil:
		return i.Starship
	}
	return nil
}

// Warn appends a formatted warning.
func (i *Item) Warn(format string, args ...any) {
	i.Warnings = append(i.Warnings, fmt.Sprintf(format, args...))
}

// ToJSON serializes the wrapped record.
func (i *Item) ToJSON() ([]byte, error) {
	return json.Marshal(i.Record())
}
