package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/Holocron/internal/config"
	"github.com/IshaanNene/Holocron/internal/engine"
	"github.com/IshaanNene/Holocron/internal/fetcher"
	"github.com/IshaanNene/Holocron/internal/storage"
	"github.com/IshaanNene/Holocron/internal/types"
)

// batchFlags are shared by the species and starships commands.
type batchFlags struct {
	resume      bool
	dryRun      bool
	archive     bool
	limit       int
	fetcherType string
	delay       string
	storageType string
	storagePath string
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.resume, "resume", false, "skip titles recorded in the last checkpoint")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "extract and merge without writing to the store")
	cmd.Flags().BoolVar(&f.archive, "archive", false, "save every fetched page to the raw archive")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "process at most n titles (0 = all)")
	cmd.Flags().StringVarP(&f.fetcherType, "fetcher", "f", "", "page source: http, browser, archive")
	cmd.Flags().StringVar(&f.delay, "delay", "", "delay between wiki requests (e.g. 500ms)")
	cmd.Flags().StringVar(&f.storageType, "storage", "", "store: sqlite, mongo, jsonl, multi")
	cmd.Flags().StringVarP(&f.storagePath, "output", "o", "", "store path for sqlite/jsonl")
}

// apply applies command-line flag values to the config.
func (f *batchFlags) apply(cfg *config.Config) {
	if f.dryRun {
		cfg.Engine.DryRun = true
	}
	if f.limit > 0 {
		cfg.Engine.Limit = f.limit
	}
	if f.fetcherType != "" {
		cfg.Fetcher.Type = f.fetcherType
	}
	if f.delay != "" {
		if d, err := time.ParseDuration(f.delay); err == nil {
			cfg.Engine.RequestDelay = d
		}
	}
	if f.storageType != "" {
		cfg.Storage.Type = f.storageType
	}
	if f.storagePath != "" {
		cfg.Storage.Path = f.storagePath
	}
}

// speciesCmd creates the "species" subcommand.
func speciesCmd() *cobra.Command {
	flags := &batchFlags{}
	cmd := &cobra.Command{
		Use:   "species",
		Short: "Scrape the species index into the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.apply)
			if err != nil {
				return err
			}
			batch := fetcher.Batch{
				Collection: types.CollectionSpecies,
				Index:      cfg.Wiki.SpeciesPage,
			}
			return runBatches(cmd.Context(), cfg, flags, []fetcher.Batch{batch})
		},
	}
	flags.register(cmd)
	return cmd
}

// starshipsCmd creates the "starships" subcommand.
func starshipsCmd() *cobra.Command {
	flags := &batchFlags{}
	var category string

	cmd := &cobra.Command{
		Use:   "starships",
		Short: "Scrape starship index pages into the catalog",
		Long: `Scrape starship index pages into the catalog. Without --category every
configured category (starfighters, transports, capital) runs in turn.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.apply)
			if err != nil {
				return err
			}
			batches, err := starshipBatches(cfg, category)
			if err != nil {
				return err
			}
			return runBatches(cmd.Context(), cfg, flags, batches)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&category, "category", "", "starfighters, transports or capital (default: all)")
	return cmd
}

// starshipBatches resolves a category flag to batches, in a stable order.
func starshipBatches(cfg *config.Config, category string) ([]fetcher.Batch, error) {
	if category != "" {
		index, ok := cfg.Wiki.StarshipPages[category]
		if !ok {
			return nil, fmt.Errorf("unknown starship category %q", category)
		}
		return []fetcher.Batch{{Collection: types.CollectionStarships, Index: index, Category: category}}, nil
	}

	var batches []fetcher.Batch
	for _, key := range sortedKeys(cfg.Wiki.StarshipPages) {
		batches = append(batches, fetcher.Batch{
			Collection: types.CollectionStarships,
			Index:      cfg.Wiki.StarshipPages[key],
			Category:   key,
		})
	}
	if len(batches) == 0 {
		return nil, errors.New("no starship index pages configured")
	}
	return batches, nil
}

// runBatches runs each batch against one shared store, stopping at the
// first interruption.
func runBatches(parent context.Context, cfg *config.Config, flags *batchFlags, batches []fetcher.Batch) error {
	logger := setupLogger(cfg.Logging)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close storage", "error", err)
		}
	}()

	var archive *storage.Archive
	if flags.archive && cfg.Fetcher.Type != "archive" {
		archive = storage.NewArchive(cfg.Engine.ArchiveDir, cfg.Wiki.License, logger)
	}
	checkpoints := engine.NewCheckpointManager(cfg.Engine.CheckpointDir)

	for _, batch := range batches {
		report, err := runBatch(ctx, cfg, batch, store, archive, checkpoints, flags.resume, logger)
		if report != nil {
			printReport(report, cfg.Engine.DryRun)
		}
		if err != nil {
			if errors.Is(err, types.ErrEmptyBatch) && len(batches) > 1 {
				logger.Warn("batch skipped", "batch", batch.Key(), "error", err)
				continue
			}
			if errors.Is(err, context.Canceled) {
				fmt.Fprintf(os.Stderr, "\nInterrupted. Re-run with --resume to continue %s.\n", batch.Key())
			}
			return err
		}
	}
	return nil
}

func runBatch(
	ctx context.Context,
	cfg *config.Config,
	batch fetcher.Batch,
	store storage.Store,
	archive *storage.Archive,
	checkpoints *engine.CheckpointManager,
	resume bool,
	logger *slog.Logger,
) (*engine.Report, error) {
	source, err := fetcher.New(cfg, batch, logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	defer source.Close()

	eng := engine.New(cfg, source, store, logger)
	eng.SetCheckpoint(checkpoints)
	if archive != nil {
		eng.SetArchive(archive)
	}

	if resume && !checkpoints.HasCheckpoint(batch.Key()) {
		logger.Info("no checkpoint to resume, starting fresh", "batch", batch.Key())
	}
	return eng.Run(ctx, batch, resume)
}

// printReport renders a batch summary to stdout.
func printReport(r *engine.Report, dryRun bool) {
	fmt.Printf("\n%s — run %s", r.Batch.Key(), r.RunID)
	if r.Resumed {
		fmt.Print(" (resumed)")
	}
	if dryRun {
		fmt.Print(" (dry run, nothing written)")
	}
	fmt.Println()

	if len(r.Records) > 0 {
		rows := make([][]string, 0, len(r.Records))
		for _, rec := range r.Records {
			rows = append(rows, []string{
				rec.Slug,
				rec.Name,
				string(rec.Outcome),
				strconv.Itoa(len(rec.Changes)),
				strconv.Itoa(len(rec.Warnings)),
			})
		}
		fmt.Println(renderTable(
			[]string{"Slug", "Name", "Outcome", "Changes", "Warnings"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
		))
	}

	if len(r.Failures) > 0 {
		rows := make([][]string, 0, len(r.Failures))
		for _, f := range r.Failures {
			rows = append(rows, []string{f.Title, f.Err.Error()})
		}
		fmt.Println(renderTable([]string{"Skipped page", "Reason"}, rows, nil))
	}

	fmt.Println(renderTable(
		[]string{"Stat", "Value"},
		statRows(r.Stats),
		[]columnAlignment{alignLeft, alignRight},
	))
}

// statRows lists a stats snapshot in a fixed order.
func statRows(stats map[string]any) [][]string {
	order := []string{
		"pages_fetched", "pages_failed", "pages_skipped",
		"records_extracted", "records_dropped",
		"records_inserted", "records_updated", "records_unchanged",
		"warnings", "elapsed",
	}
	rows := make([][]string, 0, len(order))
	for _, key := range order {
		if v, ok := stats[key]; ok {
			rows = append(rows, []string{key, fmt.Sprint(v)})
		}
	}
	return rows
}
