package detector

import "context"

// Detector is a strategy that determines if the managed scheduler is running.
// Implementations may check a persisted pid, a container name or a custom script.
// It must be safe for concurrent use.
type Detector interface {
	// Alive returns true if the scheduler is detected as running.
	Alive(ctx context.Context) (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}
