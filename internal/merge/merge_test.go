package merge

import (
	"encoding/json"
	"testing"

	"github.com/IshaanNene/Holocron/internal/types"
)

func curatedBothan() *types.SpeciesRecord {
	return &types.SpeciesRecord{
		Slug:      "bothan",
		Name:      "Bothan",
		Homeworld: "Bothawui",
		ImagePath: "aliens/bothan.webp",
		HasImage:  true,
		Notes:     "hand-edited",
		Stats: &types.SpeciesStats{
			AttributeDice: "12D",
			Attributes: map[string]*types.DiceRange{
				"dexterity": {Min: "1D", Max: "3D"},
				"strength":  {Min: "1D", Max: "3D"},
			},
			Move: "10/12",
		},
		SpecialAbilities: []types.Entry{{Name: "Old", Description: "stale"}},
		Sources:          []string{"old source"},
	}
}

func freshBothan() *types.SpeciesRecord {
	return &types.SpeciesRecord{
		Slug:      "bothan",
		Name:      "Bothan",
		Homeworld: "Bothawui",
		Stats: &types.SpeciesStats{
			AttributeDice: "12D",
			Attributes: map[string]*types.DiceRange{
				"knowledge": {Min: "2D", Max: "4D+2"},
			},
			Move: "10/12",
			Size: "1.3-1.5 meters",
		},
		SpecialAbilities: []types.Entry{{Name: "Skill Bonus", Description: "search"}},
		Sources:          []string{"CC-BY-SA 3.0 d6holocron.com/wiki/Bothan"},
	}
}

func TestUpsertReplacesObjectsWholesale(t *testing.T) {
	merged, _, err := Upsert(curatedBothan(), freshBothan())
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := merged.Stats.Attributes["dexterity"]; ok {
		t.Error("stats must be replaced, not deep merged")
	}
	if merged.Stats.Attributes["knowledge"].Max != "4D+2" {
		t.Errorf("unexpected attributes: %+v", merged.Stats.Attributes)
	}
	if len(merged.SpecialAbilities) != 1 || merged.SpecialAbilities[0].Name != "Skill Bonus" {
		t.Errorf("unexpected abilities: %+v", merged.SpecialAbilities)
	}
	if merged.Sources[0] != "CC-BY-SA 3.0 d6holocron.com/wiki/Bothan" {
		t.Errorf("unexpected sources: %v", merged.Sources)
	}
}

func TestUpsertPreservesCuratedFields(t *testing.T) {
	merged, _, err := Upsert(curatedBothan(), freshBothan())
	if err != nil {
		t.Fatal(err)
	}
	if merged.ImagePath != "aliens/bothan.webp" {
		t.Errorf("curated imagePath lost: %q", merged.ImagePath)
	}
	if !merged.HasImage {
		t.Error("hasImage should follow the preserved imagePath")
	}
	if merged.Notes != "hand-edited" {
		t.Errorf("curated notes lost: %q", merged.Notes)
	}
}

func TestUpsertKeepsStoredImagePath(t *testing.T) {
	fresh := freshBothan()
	fresh.ImagePath = "aliens/bothan-default.webp"

	merged, _, err := Upsert(curatedBothan(), fresh)
	if err != nil {
		t.Fatal(err)
	}
	if merged.ImagePath != "aliens/bothan.webp" {
		t.Errorf("stored imagePath should win, got %q", merged.ImagePath)
	}

	merged, _, err = Upsert(&types.SpeciesRecord{Slug: "bothan", Name: "Bothan"}, fresh)
	if err != nil {
		t.Fatal(err)
	}
	if merged.ImagePath != "aliens/bothan-default.webp" || !merged.HasImage {
		t.Errorf("empty stored imagePath should take the extracted one, got %q", merged.ImagePath)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	first, _, err := Upsert(curatedBothan(), freshBothan())
	if err != nil {
		t.Fatal(err)
	}
	second, changes, err := Upsert(first, freshBothan())
	if err != nil {
		t.Fatal(err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("merge not idempotent:\n%s\n%s", a, b)
	}
	if len(changes) != 0 {
		t.Errorf("expected no changes on re-merge, got %+v", changes)
	}
}

func TestUpsertNew(t *testing.T) {
	fresh := freshBothan()
	merged, changes, err := Upsert(nil, fresh)
	if err != nil {
		t.Fatal(err)
	}
	if merged == fresh {
		t.Error("expected a copy, not the same pointer")
	}
	if merged.HasImage {
		t.Error("hasImage must be false without an imagePath")
	}
	for _, c := range changes {
		if c.Type != ChangeAdded {
			t.Errorf("expected only added changes, got %+v", c)
		}
	}
}

func TestUpsertNilExtracted(t *testing.T) {
	if _, _, err := Upsert[types.SpeciesRecord](curatedBothan(), nil); err == nil {
		t.Error("expected error for nil extraction")
	}
}

func TestUpsertStarship(t *testing.T) {
	existing := &types.StarshipRecord{
		Slug:     "x-wing",
		Name:     "X-wing",
		Category: "starfighter",
		ImageURL: "https://cdn.example/x-wing.webp",
		Weapons:  []types.Weapon{{Name: "Old", Damage: "1D"}},
	}
	fresh := &types.StarshipRecord{
		Slug:     "x-wing",
		Name:     "X-wing",
		Category: "starfighter",
		Hull:     "4D",
		Weapons:  []types.Weapon{{Name: "Laser Cannons", Damage: "6D"}},
	}

	merged, changes, err := Upsert(existing, fresh)
	if err != nil {
		t.Fatal(err)
	}
	if merged.ImageURL != existing.ImageURL {
		t.Errorf("curated imageUrl lost: %q", merged.ImageURL)
	}
	if len(merged.Weapons) != 1 || merged.Weapons[0].Name != "Laser Cannons" {
		t.Errorf("weapons must be replaced: %+v", merged.Weapons)
	}

	fields := map[string]ChangeType{}
	for _, c := range changes {
		fields[c.Field] = c.Type
	}
	if fields["hull"] != ChangeAdded || fields["weapons"] != ChangeModified {
		t.Errorf("unexpected changes: %+v", changes)
	}
	if _, ok := fields["imageUrl"]; ok {
		t.Error("preserved field should not be reported as changed")
	}
}

func TestDiffRemoved(t *testing.T) {
	changes := Diff(map[string]any{"a": "1", "b": "2"}, map[string]any{"a": "1"})
	if len(changes) != 1 || changes[0].Field != "b" || changes[0].Type != ChangeRemoved {
		t.Errorf("unexpected changes: %+v", changes)
	}
}
