package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loykin/schedctl/internal/registry"
)

// DB implements registry.Registry for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the SQLite database file. Use ":memory:" for in-memory.
type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases coherent
	d.SetMaxOpenConns(1)
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scheduler_handle(
			name TEXT PRIMARY KEY,
			handle TEXT NOT NULL,
			started_unix INTEGER NOT NULL,
			proc_start INTEGER NOT NULL,
			updated_unix INTEGER NOT NULL
		);`)
	return err
}

func (s *DB) Save(ctx context.Context, rec registry.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduler_handle(name, handle, started_unix, proc_start, updated_unix)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			handle=excluded.handle,
			started_unix=excluded.started_unix,
			proc_start=excluded.proc_start,
			updated_unix=excluded.updated_unix;`,
		rec.Name, rec.Handle, unixOrZero(rec.StartedAt), rec.ProcStart, time.Now().Unix())
	return err
}

func (s *DB) Load(ctx context.Context, name string) (registry.Record, error) {
	var rec registry.Record
	var started int64
	err := s.db.QueryRowContext(ctx, `
		SELECT name, handle, started_unix, proc_start
		FROM scheduler_handle WHERE name=?;`, name).
		Scan(&rec.Name, &rec.Handle, &started, &rec.ProcStart)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Record{}, registry.ErrNotFound
	}
	if err != nil {
		return registry.Record{}, err
	}
	if started > 0 {
		rec.StartedAt = time.Unix(started, 0).UTC()
	}
	return rec, nil
}

func (s *DB) Clear(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduler_handle WHERE name=?;`, name)
	return err
}

func (s *DB) Close() error { return s.db.Close() }

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
