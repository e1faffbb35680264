package engine

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/IshaanNene/Holocron/internal/fetcher"
	"github.com/IshaanNene/Holocron/internal/identity"
	"github.com/IshaanNene/Holocron/internal/types"
)

// Session is the only state shared across the pages of one batch: slug
// reservations, fetched pages, processed titles and counters.
type Session struct {
	RunID        string
	Batch        fetcher.Batch
	Reservations *identity.Reservations
	Stats        *Stats

	mu        sync.Mutex
	pages     map[string]*types.SourcePage
	processed map[string]bool
}

// NewSession starts a batch session. persisted seeds the reservations
// with the slugs already in the store.
func NewSession(batch fetcher.Batch, persisted []string) *Session {
	fallback := "species"
	if batch.Collection == types.CollectionStarships {
		fallback = "starship"
	}
	return &Session{
		RunID:        uuid.NewString(),
		Batch:        batch,
		Reservations: identity.NewReservations(fallback, persisted...),
		Stats:        NewStats(),
		pages:        make(map[string]*types.SourcePage),
		processed:    make(map[string]bool),
	}
}

// CachePage remembers a fetched page for the rest of the batch.
func (s *Session) CachePage(page *types.SourcePage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page.Title] = page
}

// CachedPage returns a page fetched earlier in the batch.
func (s *Session) CachedPage(title string) (*types.SourcePage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[title]
	return p, ok
}

// MarkProcessed records that a title needs no further work this batch.
func (s *Session) MarkProcessed(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[title] = true
}

// Processed reports whether a title was already handled.
func (s *Session) Processed(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[title]
}

// ProcessedTitles returns the handled titles, sorted.
func (s *Session) ProcessedTitles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.processed))
	for t := range s.processed {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
