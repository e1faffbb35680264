package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/IshaanNene/Holocron/internal/repair"
	"github.com/IshaanNene/Holocron/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS species (
	slug       TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	doc        TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS starships (
	slug       TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	parent     TEXT NOT NULL DEFAULT '',
	weapons    TEXT,
	sensors    TEXT,
	doc        TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// jsonColumns are the starship columns that carry a JSON copy of a record
// field alongside the full document.
var jsonColumns = map[string]bool{"weapons": true, "sensors": true}

// SQLiteStore keeps each collection in its own table. Starship weapons and
// sensors are mirrored into text columns so they can be audited and
// repaired in place.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

var _ repair.Source = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and takes an
// exclusive lock beside it. A second store on the same path fails with
// types.ErrLocked.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, &types.StorageError{Backend: "sqlite", Op: "open", Err: types.ErrLocked}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		path:   path,
		lock:   lock,
		logger: logger.With("component", "sqlite_storage"),
	}, nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) wrap(op string, err error) error {
	return &types.StorageError{Backend: "sqlite", Op: op, Err: err}
}

func (s *SQLiteStore) Exists(ctx context.Context, coll types.Collection, slug string) (bool, error) {
	if err := checkCollection(s.Name(), coll); err != nil {
		return false, err
	}
	query, args, err := sq.Select("1").From(string(coll)).Where(sq.Eq{"slug": slug}).Limit(1).ToSql()
	if err != nil {
		return false, s.wrap("exists", err)
	}
	var one int
	switch err := s.db.QueryRowContext(ctx, query, args...).Scan(&one); {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, s.wrap("exists", err)
	}
	return true, nil
}

func (s *SQLiteStore) Get(ctx context.Context, coll types.Collection, slug string, out any) error {
	if err := checkCollection(s.Name(), coll); err != nil {
		return err
	}
	query, args, err := sq.Select("doc").From(string(coll)).Where(sq.Eq{"slug": slug}).ToSql()
	if err != nil {
		return s.wrap("get", err)
	}
	var doc string
	switch err := s.db.QueryRowContext(ctx, query, args...).Scan(&doc); {
	case errors.Is(err, sql.ErrNoRows):
		return types.ErrNotFound
	case err != nil:
		return s.wrap("get", err)
	}
	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return s.wrap("get", fmt.Errorf("decode %s/%s: %w", coll, slug, err))
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, coll types.Collection, slug string, record any) error {
	if err := checkCollection(s.Name(), coll); err != nil {
		return err
	}
	doc, err := json.Marshal(record)
	if err != nil {
		return s.wrap("upsert", fmt.Errorf("encode %s/%s: %w", coll, slug, err))
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return s.wrap("upsert", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	ins := sq.Insert(string(coll))
	switch coll {
	case types.CollectionStarships:
		ins = ins.Columns("slug", "name", "parent", "weapons", "sensors", "doc", "updated_at").
			Values(slug, stringField(fields, "name"), stringField(fields, "parent"),
				rawField(fields, "weapons"), rawField(fields, "sensors"), string(doc), now).
			Suffix(`ON CONFLICT(slug) DO UPDATE SET name = excluded.name, parent = excluded.parent,
				weapons = excluded.weapons, sensors = excluded.sensors,
				doc = excluded.doc, updated_at = excluded.updated_at`)
	default:
		ins = ins.Columns("slug", "name", "doc", "updated_at").
			Values(slug, stringField(fields, "name"), string(doc), now).
			Suffix(`ON CONFLICT(slug) DO UPDATE SET name = excluded.name,
				doc = excluded.doc, updated_at = excluded.updated_at`)
	}

	query, args, err := ins.ToSql()
	if err != nil {
		return s.wrap("upsert", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return s.wrap("upsert", err)
	}
	s.logger.Debug("record stored", "collection", coll, "slug", slug)
	return nil
}

func (s *SQLiteStore) Slugs(ctx context.Context, coll types.Collection) ([]string, error) {
	if err := checkCollection(s.Name(), coll); err != nil {
		return nil, err
	}
	query, args, err := sq.Select("slug").From(string(coll)).OrderBy("slug").ToSql()
	if err != nil {
		return nil, s.wrap("slugs", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("slugs", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, s.wrap("slugs", err)
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

func (s *SQLiteStore) Each(ctx context.Context, coll types.Collection, fn func(slug string, doc []byte) error) error {
	if err := checkCollection(s.Name(), coll); err != nil {
		return err
	}
	query, args, err := sq.Select("slug", "doc").From(string(coll)).OrderBy("slug").ToSql()
	if err != nil {
		return s.wrap("each", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return s.wrap("each", err)
	}
	defer rows.Close()

	for rows.Next() {
		var slug, doc string
		if err := rows.Scan(&slug, &doc); err != nil {
			return s.wrap("each", err)
		}
		if err := fn(slug, []byte(doc)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// InvalidRows lists starships whose column holds text that is not valid
// JSON.
func (s *SQLiteStore) InvalidRows(ctx context.Context, column string) ([]repair.Row, error) {
	if !jsonColumns[column] {
		return nil, s.wrap("invalid_rows", fmt.Errorf("column %q is not repairable", column))
	}
	query, args, err := sq.Select("slug", column).
		From(string(types.CollectionStarships)).
		Where(sq.And{
			sq.NotEq{column: nil},
			sq.NotEq{column: ""},
			sq.Expr("json_valid(" + column + ") = 0"),
		}).
		OrderBy("slug").
		ToSql()
	if err != nil {
		return nil, s.wrap("invalid_rows", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("invalid_rows", err)
	}
	defer rows.Close()

	var out []repair.Row
	for rows.Next() {
		r := repair.Row{Column: column}
		if err := rows.Scan(&r.Slug, &r.Raw); err != nil {
			return nil, s.wrap("invalid_rows", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateColumn writes repaired JSON to a starship column and patches the
// same field inside the stored document.
func (s *SQLiteStore) UpdateColumn(ctx context.Context, slug, column, value string) error {
	if !jsonColumns[column] {
		return s.wrap("update_column", fmt.Errorf("column %q is not repairable", column))
	}
	query, args, err := sq.Update(string(types.CollectionStarships)).
		Set(column, value).
		Set("doc", sq.Expr("json_set(doc, ?, json(?))", "$."+column, value)).
		Set("updated_at", time.Now().UTC().Format(time.RFC3339)).
		Where(sq.Eq{"slug": slug}).
		ToSql()
	if err != nil {
		return s.wrap("update_column", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return s.wrap("update_column", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.logger.Info("sqlite storage closing", "path", s.path)
	err := s.db.Close()
	if unlockErr := s.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}

func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := fields[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// rawField returns the field's JSON text, or nil so the column stays NULL.
func rawField(fields map[string]json.RawMessage, key string) any {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	return string(raw)
}
