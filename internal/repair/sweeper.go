package repair

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// DefaultColumns are the JSON columns swept when none are named.
var DefaultColumns = []string{"weapons", "sensors"}

// Row is one persisted JSON column value that failed validation.
type Row struct {
	Slug   string
	Column string
	Raw    string
}

// Source lists rows whose JSON is invalid and writes repaired values back.
type Source interface {
	InvalidRows(ctx context.Context, column string) ([]Row, error)
	UpdateColumn(ctx context.Context, slug, column, value string) error
}

// Fix records one successful repair.
type Fix struct {
	Slug     string
	Column   string
	Strategy string
}

// Report summarizes a sweep.
type Report struct {
	Scanned    int
	Fixes      []Fix
	Unrepaired []Row
	Committed  bool
}

// Sweeper repairs invalid JSON columns. Without commit it only reports
// what it would write.
type Sweeper struct {
	src    Source
	commit bool
	logger *slog.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(src Source, commit bool, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		src:    src,
		commit: commit,
		logger: logger.With("component", "repair"),
	}
}

// Sweep repairs every invalid row in the given columns (DefaultColumns
// when none are given). A row is written back only when repair succeeds.
func (s *Sweeper) Sweep(ctx context.Context, columns ...string) (*Report, error) {
	if len(columns) == 0 {
		columns = DefaultColumns
	}

	report := &Report{Committed: s.commit}
	for _, column := range columns {
		rows, err := s.src.InvalidRows(ctx, column)
		if err != nil {
			return report, fmt.Errorf("list invalid %s: %w", column, err)
		}

		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Scanned++

			res := Repair(row.Raw)
			if !res.OK {
				s.logger.Warn("unrepairable json", "slug", row.Slug, "column", row.Column)
				report.Unrepaired = append(report.Unrepaired, row)
				continue
			}

			if s.commit {
				canonical, err := json.Marshal(res.Value)
				if err != nil {
					return report, fmt.Errorf("encode repaired %s/%s: %w", row.Slug, row.Column, err)
				}
				if err := s.src.UpdateColumn(ctx, row.Slug, row.Column, string(canonical)); err != nil {
					return report, fmt.Errorf("write repaired %s/%s: %w", row.Slug, row.Column, err)
				}
			}

			s.logger.Info("repaired json",
				"slug", row.Slug,
				"column", row.Column,
				"strategy", res.Strategy,
				"committed", s.commit,
			)
			report.Fixes = append(report.Fixes, Fix{Slug: row.Slug, Column: row.Column, Strategy: res.Strategy})
		}
	}
	return report, nil
}
