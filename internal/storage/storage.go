package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/IshaanNene/Holocron/internal/config"
	"github.com/IshaanNene/Holocron/internal/types"
)

// Store is the interface for all catalog backends. Records are addressed by
// collection and slug; the stored document is the record's JSON form.
type Store interface {
	// Exists reports whether a record is stored under slug.
	Exists(ctx context.Context, coll types.Collection, slug string) (bool, error)

	// Get decodes the record stored under slug into out. It returns
	// types.ErrNotFound when no record exists.
	Get(ctx context.Context, coll types.Collection, slug string, out any) error

	// Upsert inserts or replaces the record stored under slug.
	Upsert(ctx context.Context, coll types.Collection, slug string, record any) error

	// Slugs lists every stored slug in the collection.
	Slugs(ctx context.Context, coll types.Collection) ([]string, error)

	// Each calls fn with every stored document, ordered by slug.
	Each(ctx context.Context, coll types.Collection, fn func(slug string, doc []byte) error) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New opens the backend named by cfg.Type.
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	if cfg.Type != "multi" {
		return open(cfg.Type, cfg, logger)
	}

	backends := make([]Store, 0, len(cfg.Backends))
	for _, name := range cfg.Backends {
		s, err := open(name, cfg, logger)
		if err != nil {
			for _, opened := range backends {
				_ = opened.Close()
			}
			return nil, err
		}
		backends = append(backends, s)
	}
	return NewMultiStore(backends, logger), nil
}

func open(kind string, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch kind {
	case "sqlite":
		return NewSQLiteStore(cfg.Path, logger)
	case "mongo":
		return NewMongoStore(cfg.MongoURI, cfg.MongoDatabase, logger)
	case "jsonl":
		return NewFileStore(jsonlPath(cfg.Path), logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", kind)
	}
}

// jsonlPath swaps the configured path's extension for .jsonl so a sqlite
// and a jsonl backend can share one storage.path.
func jsonlPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".jsonl"
}

func checkCollection(backend string, coll types.Collection) error {
	switch coll {
	case types.CollectionSpecies, types.CollectionStarships:
		return nil
	}
	return &types.StorageError{Backend: backend, Op: "collection", Err: fmt.Errorf("unknown collection %q", coll)}
}
