package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/IshaanNene/Holocron/internal/types"
)

// --- JSONL Storage ---

// fileEntry is one line of the JSONL export.
type fileEntry struct {
	Collection types.Collection `json:"collection"`
	Slug       string           `json:"slug"`
	Record     json.RawMessage  `json:"record"`
}

// FileStore keeps the catalog as newline-delimited JSON (one record per
// line). The file is loaded into memory on open and rewritten atomically
// on Flush and Close.
type FileStore struct {
	path    string
	records map[types.Collection]map[string]json.RawMessage
	dirty   bool
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewFileStore opens the JSONL file at path, loading any existing records.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	s := &FileStore{
		path: path,
		records: map[types.Collection]map[string]json.RawMessage{
			types.CollectionSpecies:   {},
			types.CollectionStarships: {},
		},
		logger: logger.With("component", "jsonl_storage"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open jsonl: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e fileEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return &types.StorageError{Backend: "jsonl", Op: "load", Err: fmt.Errorf("line %d: %w", line, err)}
		}
		if coll, ok := s.records[e.Collection]; ok {
			coll[e.Slug] = e.Record
		}
	}
	if err := scanner.Err(); err != nil {
		return &types.StorageError{Backend: "jsonl", Op: "load", Err: err}
	}

	s.logger.Debug("jsonl loaded", "path", s.path, "species", len(s.records[types.CollectionSpecies]),
		"starships", len(s.records[types.CollectionStarships]))
	return nil
}

func (s *FileStore) Name() string { return "jsonl" }

func (s *FileStore) Exists(_ context.Context, coll types.Collection, slug string) (bool, error) {
	if err := checkCollection(s.Name(), coll); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[coll][slug]
	return ok, nil
}

func (s *FileStore) Get(_ context.Context, coll types.Collection, slug string, out any) error {
	if err := checkCollection(s.Name(), coll); err != nil {
		return err
	}
	s.mu.Lock()
	raw, ok := s.records[coll][slug]
	s.mu.Unlock()
	if !ok {
		return types.ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &types.StorageError{Backend: "jsonl", Op: "get", Err: err}
	}
	return nil
}

func (s *FileStore) Upsert(_ context.Context, coll types.Collection, slug string, record any) error {
	if err := checkCollection(s.Name(), coll); err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return &types.StorageError{Backend: "jsonl", Op: "upsert", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[coll][slug] = raw
	s.dirty = true
	return nil
}

func (s *FileStore) Slugs(_ context.Context, coll types.Collection) ([]string, error) {
	if err := checkCollection(s.Name(), coll); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.records[coll]), nil
}

func (s *FileStore) Each(_ context.Context, coll types.Collection, fn func(slug string, doc []byte) error) error {
	if err := checkCollection(s.Name(), coll); err != nil {
		return err
	}
	s.mu.Lock()
	slugs := sortedKeys(s.records[coll])
	docs := make([]json.RawMessage, len(slugs))
	for i, slug := range slugs {
		docs[i] = s.records[coll][slug]
	}
	s.mu.Unlock()

	for i, slug := range slugs {
		if err := fn(slug, docs[i]); err != nil {
			return err
		}
	}
	return nil
}

// Flush rewrites the file if anything changed since the last flush.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	count := 0
	for _, coll := range []types.Collection{types.CollectionSpecies, types.CollectionStarships} {
		for _, slug := range sortedKeys(s.records[coll]) {
			if err := enc.Encode(fileEntry{Collection: coll, Slug: slug, Record: s.records[coll][slug]}); err != nil {
				f.Close()
				return fmt.Errorf("encode JSONL: %w", err)
			}
			count++
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write JSONL: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close JSONL: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename JSONL: %w", err)
	}

	s.dirty = false
	s.logger.Info("JSONL written", "path", s.path, "records", count)
	return nil
}

func (s *FileStore) Close() error {
	return s.Flush()
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
