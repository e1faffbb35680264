package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/IshaanNene/Holocron/internal/config"
	"github.com/IshaanNene/Holocron/internal/fetcher"
	"github.com/IshaanNene/Holocron/internal/storage"
	"github.com/IshaanNene/Holocron/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const bothanPage = `[[File:Bothan.jpg|thumb|A Bothan]]
The Bothans are a species of [[spy|spies]].
'''Home Planet:''' [[Bothawui]]<br>
'''Attribute Dice:''' 12D<br>
'''Attributes:'''<br>
DEXTERITY 1D/3D<br>
KNOWLEDGE 2D/4D+2<br>
'''Move:''' 10/12
'''Size:''' 1.3-1.5 meters
`

const ewokPage = `The Ewoks are small furry hunters.
'''Home Planet:''' [[Endor]]<br>
'''Attribute Dice:''' 12D<br>
'''Attributes:'''<br>
DEXTERITY 1D/3D+2<br>
'''Move:''' 7/9
'''Size:''' 1-1.5 meters
`

const gandPage = `The Gand are insectoid findsmen.
'''Home Planet:''' [[Gand (planet)|Gand]]<br>
'''Attribute Dice:''' 12D<br>
'''Attributes:'''<br>
DEXTERITY 2D<br>
KNOWLEDGE 2D<br>
MECHANICAL 2D<br>
PERCEPTION 2D<br>
STRENGTH 2D<br>
TECHNICAL 2D<br>
'''Move:''' 10/12
'''Size:''' 1.6-1.9 meters
`

const xwingFamily = `=X-Wing=
The X-wing line of starfighters.

== X-Wing ==
General notes on the family.

== T-65A ==
'''Craft:''' Incom T-65A X-wing
'''Hull:''' 4D

== T-65B ==
'''Craft:''' Incom T-65B X-wing
'''Hull:''' 4D
`

// fakeSource serves pages from memory. Missing titles fail like a wiki
// page that does not exist.
type fakeSource struct {
	titles  []string
	pages   map[string]string
	fetched []string
	onFetch func(title string)
}

func (s *fakeSource) Type() string { return "fake" }

func (s *fakeSource) Titles(context.Context) ([]string, error) {
	if len(s.titles) == 0 {
		return nil, types.ErrEmptyBatch
	}
	return s.titles, nil
}

func (s *fakeSource) Fetch(ctx context.Context, title string) (*types.SourcePage, error) {
	if s.onFetch != nil {
		s.onFetch(title)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.fetched = append(s.fetched, title)
	content, ok := s.pages[title]
	if !ok {
		return nil, &types.FetchError{Title: title, Err: types.ErrPageMissing}
	}
	return &types.SourcePage{
		Title:      title,
		PageID:     int64(len(title)),
		RevisionID: 1,
		Content:    content,
		Format:     types.FormatWikitext,
		FetchedAt:  time.Now(),
	}, nil
}

func (s *fakeSource) Close() error { return nil }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Engine.RequestDelay = 0
	return cfg
}

func openStore(t *testing.T, dir string) *storage.FileStore {
	t.Helper()
	s, err := storage.NewFileStore(filepath.Join(dir, "catalog.jsonl"), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

var speciesBatch = fetcher.Batch{Collection: types.CollectionSpecies, Index: "Races"}

// --- Run Tests ---

func TestRunSpecies(t *testing.T) {
	store := openStore(t, t.TempDir())
	src := &fakeSource{
		titles: []string{"Bothan", "Gungan"},
		pages:  map[string]string{"Bothan": bothanPage},
	}

	report, err := New(testConfig(), src, store, testLogger).Run(context.Background(), speciesBatch, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(report.Records) != 1 || report.Records[0].Slug != "bothan" || report.Records[0].Outcome != OutcomeInserted {
		t.Fatalf("unexpected records: %+v", report.Records)
	}
	if len(report.Failures) != 1 || report.Failures[0].Title != "Gungan" {
		t.Errorf("expected Gungan to fail, got %+v", report.Failures)
	}
	if !errors.Is(report.Failures[0].Err, types.ErrPageMissing) {
		t.Errorf("expected ErrPageMissing, got %v", report.Failures[0].Err)
	}
	if report.Stats["pages_failed"].(int64) != 1 || report.Stats["records_inserted"].(int64) != 1 {
		t.Errorf("unexpected stats: %v", report.Stats)
	}

	var rec types.SpeciesRecord
	if err := store.Get(context.Background(), types.CollectionSpecies, "bothan", &rec); err != nil {
		t.Fatalf("stored record: %v", err)
	}
	if rec.Homeworld != "Bothawui" || rec.ImagePath != "aliens/bothan.webp" || !rec.HasImage {
		t.Errorf("unexpected stored record: %+v", rec)
	}
}

func TestRunKeepsSingleValueAttributes(t *testing.T) {
	store := openStore(t, t.TempDir())
	src := &fakeSource{titles: []string{"Gand"}, pages: map[string]string{"Gand": gandPage}}

	report, err := New(testConfig(), src, store, testLogger).Run(context.Background(), speciesBatch, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Records) != 1 || report.Records[0].Slug != "gand" {
		t.Fatalf("expected gand to be stored, got %+v (stats %v)", report.Records, report.Stats)
	}
	if report.Stats["records_dropped"].(int64) != 0 {
		t.Errorf("expected no dropped records, got %v", report.Stats["records_dropped"])
	}

	var rec types.SpeciesRecord
	if err := store.Get(context.Background(), types.CollectionSpecies, "gand", &rec); err != nil {
		t.Fatalf("stored record: %v", err)
	}
	if rec.Stats == nil || len(rec.Stats.Attributes) != 6 {
		t.Fatalf("expected six attributes, got %+v", rec.Stats)
	}
	for key, r := range rec.Stats.Attributes {
		if r.Min != "2D" || r.Max != "" {
			t.Errorf("%s: expected {2D, \"\"}, got %+v", key, r)
		}
	}
}

func TestRunIsStableAcrossReruns(t *testing.T) {
	store := openStore(t, t.TempDir())
	src := &fakeSource{titles: []string{"Bothan"}, pages: map[string]string{"Bothan": bothanPage}}
	ctx := context.Background()

	if _, err := New(testConfig(), src, store, testLogger).Run(ctx, speciesBatch, false); err != nil {
		t.Fatal(err)
	}
	report, err := New(testConfig(), src, store, testLogger).Run(ctx, speciesBatch, false)
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Records) != 1 {
		t.Fatalf("expected one record, got %+v", report.Records)
	}
	got := report.Records[0]
	if got.Slug != "bothan" {
		t.Errorf("re-run should keep slug bothan, got %q", got.Slug)
	}
	if got.Outcome != OutcomeUnchanged || len(got.Changes) != 0 {
		t.Errorf("expected unchanged, got %s with %v", got.Outcome, got.Changes)
	}

	slugs, _ := store.Slugs(ctx, types.CollectionSpecies)
	if len(slugs) != 1 {
		t.Errorf("expected one stored species, got %v", slugs)
	}
}

func TestRunPreservesCuratedFields(t *testing.T) {
	store := openStore(t, t.TempDir())
	src := &fakeSource{titles: []string{"Bothan"}, pages: map[string]string{"Bothan": bothanPage}}
	ctx := context.Background()

	if _, err := New(testConfig(), src, store, testLogger).Run(ctx, speciesBatch, false); err != nil {
		t.Fatal(err)
	}

	var rec types.SpeciesRecord
	if err := store.Get(ctx, types.CollectionSpecies, "bothan", &rec); err != nil {
		t.Fatal(err)
	}
	rec.ImagePath = "aliens/custom-bothan.webp"
	if err := store.Upsert(ctx, types.CollectionSpecies, "bothan", &rec); err != nil {
		t.Fatal(err)
	}

	if _, err := New(testConfig(), src, store, testLogger).Run(ctx, speciesBatch, false); err != nil {
		t.Fatal(err)
	}
	if err := store.Get(ctx, types.CollectionSpecies, "bothan", &rec); err != nil {
		t.Fatal(err)
	}
	if rec.ImagePath != "aliens/custom-bothan.webp" {
		t.Errorf("curated image path overwritten: %q", rec.ImagePath)
	}
}

func TestRunStarshipFamily(t *testing.T) {
	store := openStore(t, t.TempDir())
	src := &fakeSource{titles: []string{"X-Wing"}, pages: map[string]string{"X-Wing": xwingFamily}}
	batch := fetcher.Batch{Collection: types.CollectionStarships, Index: "Starfighters", Category: "starfighters"}

	report, err := New(testConfig(), src, store, testLogger).Run(context.Background(), batch, false)
	if err != nil {
		t.Fatal(err)
	}

	var slugs []string
	for _, r := range report.Records {
		slugs = append(slugs, r.Slug)
	}
	sort.Strings(slugs)
	want := []string{"incom-t-65a-x-wing", "incom-t-65b-x-wing"}
	if len(slugs) != len(want) || slugs[0] != want[0] || slugs[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, slugs)
	}

	var rec types.StarshipRecord
	if err := store.Get(context.Background(), types.CollectionStarships, "incom-t-65a-x-wing", &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Parent != "X-Wing" || !rec.IsVariant || rec.Category != "starfighter" {
		t.Errorf("unexpected variant: %+v", rec)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	store := openStore(t, t.TempDir())
	_, err := New(testConfig(), &fakeSource{}, store, testLogger).Run(context.Background(), speciesBatch, false)
	if !errors.Is(err, types.ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestRunDryRun(t *testing.T) {
	store := openStore(t, t.TempDir())
	cfg := testConfig()
	cfg.Engine.DryRun = true
	src := &fakeSource{titles: []string{"Bothan"}, pages: map[string]string{"Bothan": bothanPage}}

	report, err := New(cfg, src, store, testLogger).Run(context.Background(), speciesBatch, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Records) != 1 || report.Records[0].Outcome != OutcomeDryRun {
		t.Errorf("expected a dry-run record, got %+v", report.Records)
	}
	if ok, _ := store.Exists(context.Background(), types.CollectionSpecies, "bothan"); ok {
		t.Error("dry run must not write")
	}
}

func TestRunLimitAndArchive(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, dir)
	cfg := testConfig()
	cfg.Engine.Limit = 1
	src := &fakeSource{
		titles: []string{"Bothan", "Ewok"},
		pages:  map[string]string{"Bothan": bothanPage, "Ewok": ewokPage},
	}

	archive := storage.NewArchive(filepath.Join(dir, "raw"), cfg.Wiki.License, testLogger)
	e := New(cfg, src, store, testLogger)
	e.SetArchive(archive)

	report, err := e.Run(context.Background(), speciesBatch, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Titles != 1 || len(src.fetched) != 1 {
		t.Errorf("limit not applied: titles %d, fetched %v", report.Titles, src.fetched)
	}
	if _, err := archive.Load(types.CollectionSpecies, "Bothan"); err != nil {
		t.Errorf("expected Bothan to be archived: %v", err)
	}
	if e.GetState() != StateStopped {
		t.Errorf("expected stopped, got %s", e.GetState())
	}
}

func TestRunResume(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, dir)
	cm := NewCheckpointManager(filepath.Join(dir, "checkpoints"))
	pages := map[string]string{"Bothan": bothanPage, "Ewok": ewokPage}

	ctx, cancel := context.WithCancel(context.Background())
	first := &fakeSource{
		titles: []string{"Bothan", "Ewok"},
		pages:  pages,
		onFetch: func(title string) {
			if title == "Ewok" {
				cancel()
			}
		},
	}
	e := New(testConfig(), first, store, testLogger)
	e.SetCheckpoint(cm)
	if _, err := e.Run(ctx, speciesBatch, false); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !cm.HasCheckpoint(speciesBatch.Key()) {
		t.Fatal("expected a checkpoint after interruption")
	}

	second := &fakeSource{titles: []string{"Bothan", "Ewok"}, pages: pages}
	e = New(testConfig(), second, store, testLogger)
	e.SetCheckpoint(cm)
	report, err := e.Run(context.Background(), speciesBatch, true)
	if err != nil {
		t.Fatal(err)
	}

	if !report.Resumed {
		t.Error("expected resumed run")
	}
	if len(second.fetched) != 1 || second.fetched[0] != "Ewok" {
		t.Errorf("expected only Ewok to be fetched, got %v", second.fetched)
	}
	if report.Stats["pages_skipped"].(int64) != 1 {
		t.Errorf("expected one skipped page, got %v", report.Stats["pages_skipped"])
	}
	if cm.HasCheckpoint(speciesBatch.Key()) {
		t.Error("checkpoint should be removed after a complete run")
	}
}

func TestRunResumeRetriesFailedPages(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, dir)
	cm := NewCheckpointManager(filepath.Join(dir, "checkpoints"))
	titles := []string{"Bothan", "Gand", "Ewok"}

	ctx, cancel := context.WithCancel(context.Background())
	first := &fakeSource{
		titles: titles,
		pages:  map[string]string{"Bothan": bothanPage, "Ewok": ewokPage},
		onFetch: func(title string) {
			if title == "Ewok" {
				cancel()
			}
		},
	}
	e := New(testConfig(), first, store, testLogger)
	e.SetCheckpoint(cm)
	report, err := e.Run(ctx, speciesBatch, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(report.Failures) != 1 || report.Failures[0].Title != "Gand" {
		t.Fatalf("expected Gand to fail on the first run, got %+v", report.Failures)
	}

	second := &fakeSource{
		titles: titles,
		pages:  map[string]string{"Bothan": bothanPage, "Gand": gandPage, "Ewok": ewokPage},
	}
	e = New(testConfig(), second, store, testLogger)
	e.SetCheckpoint(cm)
	report, err = e.Run(context.Background(), speciesBatch, true)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"Gand", "Ewok"}
	if len(second.fetched) != 2 || second.fetched[0] != want[0] || second.fetched[1] != want[1] {
		t.Errorf("expected %v to be fetched, got %v", want, second.fetched)
	}
	if len(report.Failures) != 0 {
		t.Errorf("expected no failures on resume, got %+v", report.Failures)
	}
	if ok, _ := store.Exists(context.Background(), types.CollectionSpecies, "gand"); !ok {
		t.Error("expected gand to be stored after resume")
	}
}

// --- Pacer Tests ---

func TestPacerSpacesRequests(t *testing.T) {
	p := NewPacer(30*time.Millisecond, false)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("expected at least 60ms for three requests, got %v", elapsed)
	}
}

func TestPacerCancelled(t *testing.T) {
	p := NewPacer(time.Hour, false)
	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// --- Stats Tests ---

func TestStatsSnapshot(t *testing.T) {
	s := NewStats()
	s.PagesFetched.Add(42)
	s.RecordsInserted.Add(40)
	s.PagesFailed.Add(2)

	snap := s.Snapshot()
	if snap["pages_fetched"].(int64) != 42 {
		t.Errorf("expected 42 pages_fetched, got %v", snap["pages_fetched"])
	}
	if snap["records_inserted"].(int64) != 40 {
		t.Errorf("expected 40 records_inserted, got %v", snap["records_inserted"])
	}
}

func TestSessionSeedsReservations(t *testing.T) {
	s := NewSession(speciesBatch, []string{"bothan"})
	if s.RunID == "" {
		t.Error("expected a run id")
	}
	if got := s.Reservations.Reserve("Bothan", ""); got != "bothan-1" {
		t.Errorf("expected bothan-1, got %q", got)
	}
}
