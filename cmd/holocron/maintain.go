package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/Holocron/internal/hierarchy"
	"github.com/IshaanNene/Holocron/internal/repair"
	"github.com/IshaanNene/Holocron/internal/storage"
	"github.com/IshaanNene/Holocron/internal/types"
)

// repairCmd creates the "repair" subcommand.
func repairCmd() *cobra.Command {
	var commit bool
	var columns []string

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Find and fix malformed JSON in stored starship columns",
		Long: `Scan the weapons and sensors columns of the SQLite store for values that
are not valid JSON and try to repair them. Nothing is written unless
--commit is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Logging)

			store, err := storage.New(cfg.Storage, logger)
			if err != nil {
				return fmt.Errorf("create storage: %w", err)
			}
			defer store.Close()

			src, err := repairSource(store)
			if err != nil {
				return err
			}

			report, err := repair.NewSweeper(src, commit, logger).Sweep(cmd.Context(), columns...)
			if report != nil {
				printRepairReport(report)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&commit, "commit", false, "write repaired values back")
	cmd.Flags().StringSliceVar(&columns, "column", nil, "columns to sweep (default: weapons, sensors)")
	return cmd
}

// repairSource finds a backend that can list and patch raw JSON columns.
func repairSource(store storage.Store) (repair.Source, error) {
	if src, ok := store.(repair.Source); ok {
		return src, nil
	}
	if multi, ok := store.(*storage.MultiStore); ok {
		for _, b := range multi.Backends() {
			if src, ok := b.(repair.Source); ok {
				return src, nil
			}
		}
	}
	return nil, fmt.Errorf("repair needs a sqlite store, got %s", store.Name())
}

func printRepairReport(r *repair.Report) {
	mode := "dry run"
	if r.Committed {
		mode = "committed"
	}
	fmt.Printf("\nRepair (%s): %d invalid, %d fixed, %d unrepairable\n",
		mode, r.Scanned, len(r.Fixes), len(r.Unrepaired))

	if len(r.Fixes) > 0 {
		rows := make([][]string, 0, len(r.Fixes))
		for _, f := range r.Fixes {
			rows = append(rows, []string{f.Slug, f.Column, f.Strategy})
		}
		fmt.Println(renderTable([]string{"Slug", "Column", "Strategy"}, rows, nil))
	}
	if len(r.Unrepaired) > 0 {
		rows := make([][]string, 0, len(r.Unrepaired))
		for _, row := range r.Unrepaired {
			rows = append(rows, []string{row.Slug, row.Column, truncate(row.Raw, 60)})
		}
		fmt.Println(renderTable([]string{"Slug", "Column", "Raw value"}, rows, nil))
	}
}

// auditCmd creates the "audit" subcommand.
func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Report stored starship variants that look misnamed",
		Long: `List stored variants that name themselves as their own parent, or that
carry a generic name when a craft name exists. Records are never
modified; fix them by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Logging)

			store, err := storage.New(cfg.Storage, logger)
			if err != nil {
				return fmt.Errorf("create storage: %w", err)
			}
			defer store.Close()

			var records []*types.StarshipRecord
			err = store.Each(cmd.Context(), types.CollectionStarships, func(slug string, doc []byte) error {
				var rec types.StarshipRecord
				if err := json.Unmarshal(doc, &rec); err != nil {
					logger.Warn("unreadable starship record", "slug", slug, "error", err)
					return nil
				}
				records = append(records, &rec)
				return nil
			})
			if err != nil && !errors.Is(err, types.ErrNotFound) {
				return fmt.Errorf("read starships: %w", err)
			}

			findings := hierarchy.AuditVariants(records)
			fmt.Printf("\nAudited %d starships: %d flagged\n", len(records), len(findings))
			if len(findings) == 0 {
				return nil
			}

			rows := make([][]string, 0, len(findings))
			for _, f := range findings {
				rows = append(rows, []string{f.Slug, f.Name, f.Craft, f.Parent, f.Reason})
			}
			fmt.Println(renderTable([]string{"Slug", "Name", "Craft", "Parent", "Reason"}, rows, nil))
			return nil
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
