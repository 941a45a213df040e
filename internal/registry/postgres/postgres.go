package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/schedctl/internal/registry"
)

type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scheduler_handle(
			name TEXT PRIMARY KEY,
			handle TEXT NOT NULL,
			started_at TIMESTAMPTZ NULL,
			proc_start BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`)
	return err
}

func (p *DB) Save(ctx context.Context, rec registry.Record) error {
	var started any
	if !rec.StartedAt.IsZero() {
		started = rec.StartedAt.UTC()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO scheduler_handle(name, handle, started_at, proc_start, updated_at)
		VALUES($1,$2,$3,$4,$5)
		ON CONFLICT(name) DO UPDATE SET
			handle=EXCLUDED.handle,
			started_at=EXCLUDED.started_at,
			proc_start=EXCLUDED.proc_start,
			updated_at=EXCLUDED.updated_at;`,
		rec.Name, rec.Handle, started, rec.ProcStart, time.Now().UTC())
	return err
}

func (p *DB) Load(ctx context.Context, name string) (registry.Record, error) {
	var rec registry.Record
	var started sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT name, handle, started_at, proc_start
		FROM scheduler_handle WHERE name=$1;`, name).
		Scan(&rec.Name, &rec.Handle, &started, &rec.ProcStart)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Record{}, registry.ErrNotFound
	}
	if err != nil {
		return registry.Record{}, err
	}
	if started.Valid {
		rec.StartedAt = started.Time.UTC()
	}
	return rec, nil
}

func (p *DB) Clear(ctx context.Context, name string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM scheduler_handle WHERE name=$1;`, name)
	return err
}

func (p *DB) Close() error { return p.db.Close() }
