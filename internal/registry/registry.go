package registry

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load when no handle is persisted for a name.
var ErrNotFound = errors.New("registry: no record")

// Record is the persisted handle of the managed scheduler.
// Handle is a pid in process mode and a container name in container mode.
// ProcStart is the OS start time (unix seconds) of the pid, zero when unknown.
type Record struct {
	Name      string
	Handle    string
	StartedAt time.Time
	ProcStart int64
}

// Registry keeps at most one current Record per name. Save replaces any
// previous record for the same name.
type Registry interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, name string) (Record, error)
	Clear(ctx context.Context, name string) error
	Close() error
}
