package detector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/loykin/schedctl/internal/registry"
)

// HandleDetector detects a directly spawned scheduler via the pid persisted in the registry.
type HandleDetector struct {
	Registry registry.Registry
	Name     string
}

func (d HandleDetector) Alive(ctx context.Context) (bool, error) {
	if d.Registry == nil {
		return false, errors.New("handle detector: no registry")
	}
	rec, err := d.Registry.Load(ctx, d.Name)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(rec.Handle))
	if err != nil {
		return false, fmt.Errorf("invalid pid %q: %w", rec.Handle, err)
	}
	if rec.ProcStart > 0 {
		cur := ProcStartUnix(pid)
		if cur > 0 && cur != rec.ProcStart {
			return false, nil // PID reused; not our process
		}
	}
	return pidAlive(pid), nil
}

func (d HandleDetector) Describe() string { return "handle:" + d.Name }

// ProcStartUnix returns the OS start time of pid as Unix seconds, or 0 when unavailable.
func ProcStartUnix(pid int) int64 { return getProcStartUnix(pid) }
