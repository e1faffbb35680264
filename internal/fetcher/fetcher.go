package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/Holocron/internal/config"
	"github.com/IshaanNene/Holocron/internal/storage"
	"github.com/IshaanNene/Holocron/internal/types"
)

// Source is the interface for all page source implementations. A source
// is bound to one batch: Titles lists the pages of its index.
type Source interface {
	// Titles returns the page titles linked from the batch index.
	Titles(ctx context.Context) ([]string, error)

	// Fetch retrieves one page by title.
	Fetch(ctx context.Context, title string) (*types.SourcePage, error)

	// Close releases any resources held by the source.
	Close() error

	// Type returns the source type identifier.
	Type() string
}

// ImageResolver is implemented by sources that can turn an uploaded file
// name into a download URL.
type ImageResolver interface {
	ImageURL(ctx context.Context, filename string) (string, error)
}

// Batch identifies what a source reads: the target collection, the wiki
// page that indexes it and, for starships, the category stamped on records.
type Batch struct {
	Collection types.Collection
	Index      string
	Category   string
}

// Key names the batch in checkpoints and logs.
func (b Batch) Key() string {
	if b.Category != "" {
		return string(b.Collection) + "-" + b.Category
	}
	return string(b.Collection)
}

// New creates the source selected by cfg.Fetcher.Type.
func New(cfg *config.Config, batch Batch, logger *slog.Logger) (Source, error) {
	switch cfg.Fetcher.Type {
	case "http":
		return NewMediaWikiSource(cfg, batch.Index, logger), nil
	case "browser":
		return NewBrowserSource(cfg, batch.Index, logger)
	case "archive":
		archive := storage.NewArchive(cfg.Engine.ArchiveDir, cfg.Wiki.License, logger)
		return NewArchiveSource(archive, batch.Collection), nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type: %s", cfg.Fetcher.Type)
	}
}
