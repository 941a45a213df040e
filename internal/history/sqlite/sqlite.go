package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loykin/schedctl/internal/history"
)

const schema = `
CREATE TABLE IF NOT EXISTS scheduler_history(
	occurred_ms INTEGER NOT NULL,
	event       TEXT NOT NULL,
	name        TEXT NOT NULL,
	handle      TEXT NOT NULL DEFAULT '',
	mode        TEXT NOT NULL DEFAULT '',
	error       TEXT
);
CREATE INDEX IF NOT EXISTS scheduler_history_name_time ON scheduler_history(name, occurred_ms);`

// Sink appends lifecycle events to a SQLite table and can list them back.
type Sink struct {
	db *sql.DB
}

// New opens (and creates) the database behind dsn:
// "sqlite:///path/to/file.db", "sqlite://:memory:", a bare path or ":memory:".
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one connection: :memory: databases are per connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Sink{db: db}, nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduler_history(occurred_ms, event, name, handle, mode, error) VALUES(?, ?, ?, ?, ?, ?)`,
		e.OccurredAt.UTC().UnixMilli(), string(e.Type), e.Name, e.Handle, e.Mode, nullable(e.Error))
	return err
}

func (s *Sink) Recent(ctx context.Context, name string, limit int) ([]history.Event, error) {
	if limit <= 0 {
		limit = history.DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT occurred_ms, event, name, handle, mode, COALESCE(error, '')
		   FROM scheduler_history WHERE name = ?
		  ORDER BY occurred_ms DESC, rowid DESC LIMIT ?`, name, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []history.Event{}
	for rows.Next() {
		var (
			ms int64
			e  history.Event
			t  string
		)
		if err := rows.Scan(&ms, &t, &e.Name, &e.Handle, &e.Mode, &e.Error); err != nil {
			return nil, err
		}
		e.Type = history.EventType(t)
		e.OccurredAt = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
