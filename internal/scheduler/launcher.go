package scheduler

import (
	"context"

	"github.com/loykin/schedctl/internal/registry"
)

// Modes select how the scheduler is launched and probed.
const (
	ModeProcess   = "process"
	ModeContainer = "container"
)

// Spawned describes a launched scheduler. Output returns the diagnostics
// captured for it so far; it may be nil.
type Spawned struct {
	Handle    string
	ProcStart int64
	Output    func() string
}

func (s Spawned) output() string {
	if s.Output == nil {
		return ""
	}
	return s.Output()
}

// Launcher starts and stops the scheduler through a process or container manager.
type Launcher interface {
	// Launch spawns a new instance. On error the returned Spawned may still
	// carry output for diagnostics.
	Launch(ctx context.Context) (Spawned, error)
	// Stop asks the manager to stop the instance described by rec. The
	// returned output is the manager's combined stdout/stderr, if any.
	Stop(ctx context.Context, rec registry.Record) (string, error)
	Mode() string
}
