package hierarchy

import (
	"log/slog"
	"os"
	"testing"

	"github.com/IshaanNene/Holocron/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const xwingFamily = `=X-Wing=
The X-wing line of starfighters.

== X-Wing ==
General notes on the family.

== T-65A ==
'''Craft:''' Incom T-65A X-wing
'''Scale:''' Starfighter
'''Hull:''' 4D
'''Weapons:'''
*'''4 Laser Cannons'''
Damage: 6D

== T-65B ==
'''Craft:''' Incom T-65B X-wing
'''Scale:''' Starfighter
'''Hull:''' 4D

== Recon ==
'''Name:''' X-wing Recon
'''Scale:''' Starfighter
`

func newTestBuilder() *Builder {
	return NewBuilder(Options{
		FamilyThreshold: 1,
		Category:        "starfighter",
		BaseURL:         "http://d6holocron.com/wiki/",
		License:         "CC-BY-SA 3.0",
		Aliases:         map[string]string{"TIE Fighter": "TIE Starfighter"},
		Logger:          testLogger,
	})
}

func TestBuildFamily(t *testing.T) {
	page := &types.SourcePage{Title: "X-Wing", PageID: 7, RevisionID: 99, Content: xwingFamily, Format: types.FormatWikitext}
	records, err := newTestBuilder().Build(page)
	if err != nil {
		t.Fatal(err)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Parent != "X-Wing" {
			t.Errorf("expected parent X-Wing, got %q", rec.Parent)
		}
		if rec.Name == "X-Wing" {
			t.Error("self-referential variant should be excluded")
		}
		if !rec.IsVariant || rec.VariantOf != "X-Wing" {
			t.Errorf("unexpected variant flags: %+v", rec)
		}
		if rec.RevisionID != 99 || rec.PageID != 7 {
			t.Errorf("missing provenance: page=%d rev=%d", rec.PageID, rec.RevisionID)
		}
		if rec.SourcePage == nil || rec.SourcePage.Title != "X-Wing" || rec.SourcePage.RevisionID != 99 {
			t.Errorf("expected sourcePage X-Wing@99, got %+v", rec.SourcePage)
		}
		if len(rec.Sources) != 1 || rec.Sources[0] != "http://d6holocron.com/wiki/X-Wing" {
			t.Errorf("unexpected sources: %v", rec.Sources)
		}
		if rec.Category != "starfighter" {
			t.Errorf("expected category starfighter, got %q", rec.Category)
		}
	}

	names := []string{records[0].Name, records[1].Name, records[2].Name}
	want := []string{"Incom T-65A X-wing", "Incom T-65B X-wing", "X-wing Recon"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("variant %d: expected %q, got %q", i, want[i], names[i])
		}
	}

	if len(records[0].Weapons) != 1 || records[0].Weapons[0].Damage != "6D" {
		t.Errorf("unexpected weapons: %+v", records[0].Weapons)
	}
	if len(records[1].Weapons) != 0 {
		t.Errorf("weapons leaked into the next variant: %+v", records[1].Weapons)
	}
}

func TestBuildStandalone(t *testing.T) {
	content := "'''Craft:''' Corellian YT-1300\n'''Scale:''' Starfighter\n\n== Description ==\nA freighter.\n"
	page := &types.SourcePage{Title: "YT-1300", RevisionID: 5, Content: content}

	records, err := newTestBuilder().Build(page)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.IsVariant || rec.Parent != "" {
		t.Errorf("standalone ship should not be a variant: %+v", rec)
	}
	if rec.Name != "YT-1300" || rec.Craft != "Corellian YT-1300" {
		t.Errorf("unexpected name/craft: %q / %q", rec.Name, rec.Craft)
	}
	if rec.SourcePage == nil || rec.SourcePage.Title != "YT-1300" || rec.SourcePage.RevisionID != 5 {
		t.Errorf("standalone ship missing sourcePage: %+v", rec.SourcePage)
	}
}

func TestFamilyThreshold(t *testing.T) {
	b := NewBuilder(Options{FamilyThreshold: 5, Logger: testLogger})
	page := &types.SourcePage{Title: "X-Wing", Content: xwingFamily}
	records, err := b.Build(page)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].IsVariant {
		t.Errorf("expected standalone below threshold, got %d records", len(records))
	}
}

func TestParentAlias(t *testing.T) {
	content := "= TIE Fighter =\n== TIE/ln ==\n'''Scale:''' Starfighter\n== TIE/sa ==\n'''Scale:''' Starfighter\n"
	page := &types.SourcePage{Title: "TIE Fighters", Content: content}
	records, err := newTestBuilder().Build(page)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Parent != "TIE Starfighter" {
			t.Errorf("expected aliased parent, got %q", rec.Parent)
		}
	}
}

func TestBuildEmptyPage(t *testing.T) {
	if _, err := newTestBuilder().Build(&types.SourcePage{Title: "Empty"}); err == nil {
		t.Error("expected error for empty page")
	}
}

func TestCleanParentName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"[[Running the B-wing]]", "B-wing"},
		{"'''X-Wing'''", "X-Wing"},
		{"  A-wing  ", "A-wing"},
		{"running the Y-wing", "Y-wing"},
	}
	for _, tt := range tests {
		if got := CleanParentName(tt.input); got != tt.expected {
			t.Errorf("CleanParentName(%q): expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestAuditVariants(t *testing.T) {
	records := []*types.StarshipRecord{
		{Slug: "x-wing", Name: "X-Wing", Parent: "[[X-Wing]]", IsVariant: true},
		{Slug: "recon", Name: "Recon", Craft: "Incom T-65BR", Parent: "X-Wing", IsVariant: true},
		{Slug: "incom-t-65b", Name: "Incom T-65B", Craft: "Incom T-65B", Parent: "X-Wing", IsVariant: true},
		{Slug: "yt1300", Name: "YT-1300", Craft: "Corellian YT-1300"},
	}

	findings := AuditVariants(records)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d: %+v", len(findings), findings)
	}
	if findings[0].Reason != ReasonSelfReferential || findings[1].Reason != ReasonGenericName {
		t.Errorf("unexpected reasons: %q, %q", findings[0].Reason, findings[1].Reason)
	}
}
