package fetcher

import (
	"context"
	"fmt"

	"github.com/IshaanNene/Holocron/internal/storage"
	"github.com/IshaanNene/Holocron/internal/types"
)

// ArchiveSource replays pages saved by an earlier batch, without network
// access.
type ArchiveSource struct {
	archive    *storage.Archive
	collection types.Collection
}

// NewArchiveSource reads the collection's pages from archive.
func NewArchiveSource(archive *storage.Archive, coll types.Collection) *ArchiveSource {
	return &ArchiveSource{archive: archive, collection: coll}
}

func (s *ArchiveSource) Type() string { return "archive" }

func (s *ArchiveSource) Titles(_ context.Context) ([]string, error) {
	titles, err := s.archive.Titles(s.collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrEmptyBatch, err)
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: no archived %s pages", types.ErrEmptyBatch, s.collection)
	}
	return titles, nil
}

func (s *ArchiveSource) Fetch(_ context.Context, title string) (*types.SourcePage, error) {
	page, err := s.archive.Load(s.collection, title)
	if err != nil {
		return nil, &types.FetchError{Title: title, Err: err}
	}
	if page.IsEmpty() {
		return nil, &types.FetchError{Title: title, Err: types.ErrEmptyContent}
	}
	return page, nil
}

func (s *ArchiveSource) Close() error { return nil }
