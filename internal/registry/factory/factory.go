package factory

import (
	"context"
	"errors"
	"strings"

	"github.com/loykin/schedctl/internal/registry"
	pg "github.com/loykin/schedctl/internal/registry/postgres"
	sq "github.com/loykin/schedctl/internal/registry/sqlite"
)

type schemaRegistry interface {
	registry.Registry
	EnsureSchema(ctx context.Context) error
}

// NewFromDSN selects a registry implementation based on DSN and prepares its schema.
// Supported:
//   - postgres: DSN starting with "postgres://" or "postgresql://"
//   - sqlite:   "sqlite://<path>"
//   - file:     "file://<path>" or a bare filepath (handle file)
func NewFromDSN(ctx context.Context, dsn string) (registry.Registry, error) {
	d := strings.TrimSpace(dsn)
	ld := strings.ToLower(d)
	if ld == "" {
		return nil, errors.New("empty DSN")
	}
	var r schemaRegistry
	var err error
	switch {
	case strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://"):
		r, err = pg.New(d)
	case strings.HasPrefix(ld, "sqlite://"):
		r, err = sq.New(d[len("sqlite://"):])
	case strings.HasPrefix(ld, "file://"):
		return newFile(d[len("file://"):])
	default:
		return newFile(d)
	}
	if err != nil {
		return nil, err
	}
	if err := r.EnsureSchema(ctx); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func newFile(path string) (registry.Registry, error) {
	f, err := registry.NewFile(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
