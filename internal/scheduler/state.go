package scheduler

import "fmt"

// State is the controller's in-memory view of the scheduler lifecycle.
// It is never persisted.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopFailed
	StateStartFailed
)

var stateNames = [...]string{"stopped", "starting", "running", "stop_failed", "start_failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", string(b))
}
