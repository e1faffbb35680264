package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/IshaanNene/Holocron/internal/extract"
	"github.com/IshaanNene/Holocron/internal/types"
)

// Archive stores raw fetched pages as one JSON file per page under
// {dir}/{collection}/{title}.json, so a batch can be replayed offline.
type Archive struct {
	dir     string
	license string
	logger  *slog.Logger
}

// NewArchive creates an archive rooted at dir.
func NewArchive(dir, license string, logger *slog.Logger) *Archive {
	return &Archive{
		dir:     dir,
		license: license,
		logger:  logger.With("component", "archive"),
	}
}

// Path returns the file a page title is archived under.
func (a *Archive) Path(coll types.Collection, title string) string {
	return filepath.Join(a.dir, string(coll), extract.SafeFilename(title)+".json")
}

// Save writes the page to disk (temp file, then rename).
func (a *Archive) Save(coll types.Collection, page *types.SourcePage) error {
	final := a.Path(coll, page.Title)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	tmp := final + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(page.Archive(a.license)); err != nil {
		f.Close()
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close archive file: %w", err)
	}

	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("rename archive file: %w", err)
	}
	a.logger.Debug("page archived", "title", page.Title, "path", final)
	return nil
}

// Load reads an archived page. It returns types.ErrPageMissing when the
// title was never archived.
func (a *Archive) Load(coll types.Collection, title string) (*types.SourcePage, error) {
	return a.read(a.Path(coll, title))
}

func (a *Archive) read(path string) (*types.SourcePage, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, types.ErrPageMissing
	}
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	var archived types.ArchivedPage
	if err := json.Unmarshal(data, &archived); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", filepath.Base(path), err)
	}
	return archived.Page(), nil
}

// Titles lists the archived page titles of a collection, sorted.
func (a *Archive) Titles(coll types.Collection) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(a.dir, string(coll)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}

	var titles []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		page, err := a.read(filepath.Join(a.dir, string(coll), e.Name()))
		if err != nil {
			a.logger.Warn("unreadable archive entry", "file", e.Name(), "error", err)
			continue
		}
		titles = append(titles, page.Title)
	}
	sort.Strings(titles)
	return titles, nil
}
