package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/Holocron/internal/config"
	"github.com/IshaanNene/Holocron/internal/extract"
	"github.com/IshaanNene/Holocron/internal/fetcher"
	"github.com/IshaanNene/Holocron/internal/hierarchy"
	"github.com/IshaanNene/Holocron/internal/merge"
	"github.com/IshaanNene/Holocron/internal/pipeline"
	"github.com/IshaanNene/Holocron/internal/storage"
	"github.com/IshaanNene/Holocron/internal/types"
)

// State represents the engine's current lifecycle state.
type State int32

const (
	StateIdle     State = 0
	StateRunning  State = 1
	StateStopping State = 2
	StateStopped  State = 3
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats tracks batch statistics.
type Stats struct {
	PagesFetched     atomic.Int64
	PagesFailed      atomic.Int64
	PagesSkipped     atomic.Int64
	RecordsExtracted atomic.Int64
	RecordsDropped   atomic.Int64
	RecordsInserted  atomic.Int64
	RecordsUpdated   atomic.Int64
	RecordsUnchanged atomic.Int64
	Warnings         atomic.Int64
	StartTime        time.Time
}

// NewStats creates Stats starting now.
func NewStats() *Stats {
	return &Stats{StartTime: time.Now()}
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"pages_fetched":     s.PagesFetched.Load(),
		"pages_failed":      s.PagesFailed.Load(),
		"pages_skipped":     s.PagesSkipped.Load(),
		"records_extracted": s.RecordsExtracted.Load(),
		"records_dropped":   s.RecordsDropped.Load(),
		"records_inserted":  s.RecordsInserted.Load(),
		"records_updated":   s.RecordsUpdated.Load(),
		"records_unchanged": s.RecordsUnchanged.Load(),
		"warnings":          s.Warnings.Load(),
		"elapsed":           time.Since(s.StartTime).Round(time.Millisecond).String(),
	}
}

// Outcome says what happened to one record.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeDryRun    Outcome = "dry-run"
)

// RecordResult is one stored (or, in dry-run mode, would-be stored) record.
type RecordResult struct {
	Slug     string
	Name     string
	Title    string
	Outcome  Outcome
	Changes  []merge.Change
	Warnings []string
}

// PageFailure is a page that was skipped.
type PageFailure struct {
	Title string
	Err   error
}

// Report summarizes a batch.
type Report struct {
	RunID    string
	Batch    fetcher.Batch
	Titles   int
	Resumed  bool
	Records  []RecordResult
	Failures []PageFailure
	Stats    map[string]any
}

// Engine runs one batch: list the index, then fetch, extract, normalize,
// merge and store each page in turn. Pages are processed sequentially and
// a failing page is logged and skipped.
type Engine struct {
	cfg        *config.Config
	source     fetcher.Source
	store      storage.Store
	archive    *storage.Archive
	checkpoint *CheckpointManager
	pacer      *Pacer
	logger     *slog.Logger

	state atomic.Int32
}

// New creates a new Engine reading from source and writing to store.
func New(cfg *config.Config, source fetcher.Source, store storage.Store, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		source: source,
		store:  store,
		pacer:  NewPacer(cfg.Engine.RequestDelay, cfg.Engine.Jitter),
		logger: logger.With("component", "engine"),
	}
}

// SetArchive enables saving every fetched page to a raw archive.
func (e *Engine) SetArchive(a *storage.Archive) {
	e.archive = a
}

// SetCheckpoint enables per-page checkpoints.
func (e *Engine) SetCheckpoint(cm *CheckpointManager) {
	e.checkpoint = cm
}

// GetState returns the current engine state.
func (e *Engine) GetState() State {
	return State(e.state.Load())
}

// Run processes every page of batch. With resume, titles recorded in the
// batch's checkpoint are skipped. Only an empty batch or a cancelled
// context aborts the run.
func (e *Engine) Run(ctx context.Context, batch fetcher.Batch, resume bool) (*Report, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, fmt.Errorf("engine is in state %s, cannot run", e.GetState())
	}
	defer e.state.Store(int32(StateStopped))

	persisted, err := e.store.Slugs(ctx, batch.Collection)
	if err != nil {
		return nil, fmt.Errorf("load existing slugs: %w", err)
	}
	session := NewSession(batch, persisted)
	report := &Report{Batch: batch}

	if resume && e.checkpoint != nil {
		restored, err := e.checkpoint.Load(session)
		if err != nil {
			return nil, err
		}
		report.Resumed = restored
	}
	report.RunID = session.RunID
	log := e.logger.With("run_id", session.RunID, "batch", batch.Key())

	titles, err := e.source.Titles(ctx)
	if err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		return nil, types.ErrEmptyBatch
	}
	if limit := e.cfg.Engine.Limit; limit > 0 && len(titles) > limit {
		titles = titles[:limit]
	}
	report.Titles = len(titles)

	log.Info("batch starting",
		"titles", len(titles),
		"existing", len(persisted),
		"resumed", report.Resumed,
		"dry_run", e.cfg.Engine.DryRun,
		"source", e.source.Type(),
		"store", e.store.Name(),
	)

	proc := pipeline.Default(e.logger, session.Reservations, e.owner(ctx))
	extractor := e.extractor(batch)

	interrupted := func(err error) (*Report, error) {
		e.state.Store(int32(StateStopping))
		log.Warn("batch interrupted", "error", err, "processed", len(session.ProcessedTitles()))
		report.Stats = session.Stats.Snapshot()
		return report, err
	}

	for _, title := range titles {
		if err := ctx.Err(); err != nil {
			return interrupted(err)
		}
		if session.Processed(title) {
			session.Stats.PagesSkipped.Add(1)
			continue
		}

		results, err := e.processPage(ctx, session, proc, extractor, title)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue // reported as an interruption
			}
			session.Stats.PagesFailed.Add(1)
			report.Failures = append(report.Failures, PageFailure{Title: title, Err: err})
			log.Warn("page skipped", "title", title, "error", err)
		} else {
			// Failed titles stay unprocessed so --resume retries them.
			session.MarkProcessed(title)
		}
		report.Records = append(report.Records, results...)

		if e.checkpoint != nil {
			if err := e.checkpoint.Save(session); err != nil {
				log.Error("checkpoint save failed", "error", err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return interrupted(err)
	}

	if e.checkpoint != nil {
		if err := e.checkpoint.Clean(batch.Key()); err != nil {
			log.Warn("checkpoint cleanup failed", "error", err)
		}
	}

	report.Stats = session.Stats.Snapshot()
	log.Info("batch finished", "stats", report.Stats)
	return report, nil
}

// extractFunc turns a page into pipeline items.
type extractFunc func(page *types.SourcePage) ([]*types.Item, error)

func (e *Engine) extractor(batch fetcher.Batch) extractFunc {
	if batch.Collection == types.CollectionStarships {
		builder := hierarchy.NewBuilder(hierarchy.Options{
			FamilyThreshold: e.cfg.Hierarchy.FamilyThreshold,
			Category:        e.cfg.Wiki.ShipType(batch.Category),
			BaseURL:         e.cfg.Wiki.BaseURL,
			License:         e.cfg.Wiki.License,
			Aliases:         e.cfg.Hierarchy.ParentAliases,
			Logger:          e.logger,
		})
		return func(page *types.SourcePage) ([]*types.Item, error) {
			records, err := builder.Build(page)
			if err != nil {
				return nil, err
			}
			items := make([]*types.Item, len(records))
			for i, rec := range records {
				items[i] = types.NewStarshipItem(rec, page)
			}
			return items, nil
		}
	}

	species := extract.NewSpeciesExtractor(e.cfg.Wiki.BaseURL, e.cfg.Wiki.License, e.logger)
	return func(page *types.SourcePage) ([]*types.Item, error) {
		rec, err := species.Extract(page)
		if err != nil {
			return nil, err
		}
		item := types.NewSpeciesItem(rec, page)
		item.ID = pageIDString(page)
		return []*types.Item{item}, nil
	}
}

func (e *Engine) processPage(ctx context.Context, session *Session, proc *pipeline.Pipeline, extractor extractFunc, title string) ([]RecordResult, error) {
	page, ok := session.CachedPage(title)
	if !ok {
		if err := e.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		fetched, err := e.source.Fetch(ctx, title)
		if err != nil {
			return nil, err
		}
		if fetched.IsEmpty() {
			return nil, &types.FetchError{Title: title, Err: types.ErrEmptyContent}
		}
		page = fetched
		session.CachePage(page)
		session.Stats.PagesFetched.Add(1)

		if e.archive != nil {
			if err := e.archive.Save(session.Batch.Collection, page); err != nil {
				e.logger.Warn("archive failed", "title", title, "error", err)
			}
		}
	}

	items, err := extractor(page)
	if err != nil {
		return nil, err
	}

	var results []RecordResult
	for _, item := range items {
		session.Stats.RecordsExtracted.Add(1)
		e.resolveImage(ctx, item)

		processed, err := proc.Process(item)
		if err != nil {
			session.Stats.RecordsDropped.Add(1)
			e.logger.Warn("pipeline rejected record", "title", title, "name", item.Name(), "error", err)
			continue
		}
		if processed == nil {
			session.Stats.RecordsDropped.Add(1)
			continue
		}
		session.Stats.Warnings.Add(int64(len(processed.Warnings)))

		res, err := e.persist(ctx, processed)
		if err != nil {
			return results, err
		}
		res.Title = title
		switch res.Outcome {
		case OutcomeInserted:
			session.Stats.RecordsInserted.Add(1)
		case OutcomeUpdated:
			session.Stats.RecordsUpdated.Add(1)
		case OutcomeUnchanged:
			session.Stats.RecordsUnchanged.Add(1)
		}
		results = append(results, res)
	}
	return results, nil
}

// resolveImage fills a starship's image URL when the source can look up
// uploaded files. A failed lookup is only logged.
func (e *Engine) resolveImage(ctx context.Context, item *types.Item) {
	resolver, ok := e.source.(fetcher.ImageResolver)
	if !ok || item.Starship == nil || item.Starship.ImageFilename == "" || item.Starship.ImageURL != "" {
		return
	}
	u, err := resolver.ImageURL(ctx, item.Starship.ImageFilename)
	if err != nil {
		e.logger.Warn("image lookup failed", "file", item.Starship.ImageFilename, "error", err)
		return
	}
	item.Starship.ImageURL = u
}

// persist merges the item over any stored record with the same slug and
// writes the result.
func (e *Engine) persist(ctx context.Context, item *types.Item) (RecordResult, error) {
	res := RecordResult{Slug: item.Slug(), Name: item.Name(), Warnings: item.Warnings}

	var (
		merged  any
		changes []merge.Change
		isNew   bool
		err     error
	)
	switch {
	case item.Species != nil:
		merged, changes, isNew, err = upsert(ctx, e.store, item.Collection, item.Slug(), item.Species)
	case item.Starship != nil:
		merged, changes, isNew, err = upsert(ctx, e.store, item.Collection, item.Slug(), item.Starship)
	default:
		return res, fmt.Errorf("item %q carries no record", item.Name())
	}
	if err != nil {
		return res, err
	}
	res.Changes = changes

	switch {
	case e.cfg.Engine.DryRun:
		res.Outcome = OutcomeDryRun
		return res, nil
	case isNew:
		res.Outcome = OutcomeInserted
	case len(changes) == 0:
		res.Outcome = OutcomeUnchanged
		return res, nil
	default:
		res.Outcome = OutcomeUpdated
	}

	if err := e.store.Upsert(ctx, item.Collection, item.Slug(), merged); err != nil {
		return res, err
	}
	return res, nil
}

func upsert[T any](ctx context.Context, store storage.Store, coll types.Collection, slug string, extracted *T) (*T, []merge.Change, bool, error) {
	existing := new(T)
	err := store.Get(ctx, coll, slug, existing)
	switch {
	case errors.Is(err, types.ErrNotFound):
		existing = nil
	case err != nil:
		return nil, nil, false, err
	}

	merged, changes, err := merge.Upsert(existing, extracted)
	if err != nil {
		return nil, nil, false, err
	}
	return merged, changes, existing == nil, nil
}

// owner reports whether the record stored at slug is the same entity as
// item, so a re-run keeps the slug it was given before.
func (e *Engine) owner(ctx context.Context) pipeline.OwnerFunc {
	return func(item *types.Item, slug string) bool {
		var key string
		switch item.Collection {
		case types.CollectionSpecies:
			var rec types.SpeciesRecord
			if err := e.store.Get(ctx, item.Collection, slug, &rec); err != nil {
				return false
			}
			key = types.SpeciesIdentity(&rec)
		case types.CollectionStarships:
			var rec types.StarshipRecord
			if err := e.store.Get(ctx, item.Collection, slug, &rec); err != nil {
				return false
			}
			key = types.StarshipIdentity(&rec)
		}
		return key != "" && key == item.IdentityKey()
	}
}

func pageIDString(page *types.SourcePage) string {
	if page.PageID == 0 {
		return ""
	}
	return fmt.Sprint(page.PageID)
}
