package scheduler

import (
	"errors"
	"strings"
)

// ErrNotAlive is the cause of a StartError when the liveness probe fails after the grace interval.
var ErrNotAlive = errors.New("scheduler not running after grace interval")

// StartError reports a failed start together with whatever the spawn wrote
// to stdout/stderr.
type StartError struct {
	Handle string
	Output string
	Err    error
}

func (e *StartError) Error() string {
	var b strings.Builder
	b.WriteString("start failed")
	if e.Handle != "" {
		b.WriteString(" (handle " + e.Handle + ")")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		b.WriteString("\noutput:\n" + out)
	}
	return b.String()
}

func (e *StartError) Unwrap() error { return e.Err }

// StopError reports a stop the manager did not accept.
type StopError struct {
	Handle string
	Output string
	Err    error
}

func (e *StopError) Error() string {
	msg := "stop failed"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\noutput:\n" + out
	}
	return msg
}

func (e *StopError) Unwrap() error { return e.Err }
