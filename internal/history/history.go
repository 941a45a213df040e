package history

import (
	"context"
	"errors"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart       EventType = "start"
	EventStartFailed EventType = "start_failed"
	EventStop        EventType = "stop"
	EventStopFailed  EventType = "stop_failed"
)

// Event represents a scheduler lifecycle transition exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Name       string    `json:"name"`
	Handle     string    `json:"handle,omitempty"`
	Mode       string    `json:"mode,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Reader is implemented by sinks that can list the events they stored.
type Reader interface {
	// Recent returns up to limit events for name, newest first.
	Recent(ctx context.Context, name string, limit int) ([]Event, error)
}

// DefaultRecentLimit caps Recent when the caller passes limit <= 0.
const DefaultRecentLimit = 50

// Fanout delivers each event to every sink. A failing sink does not stop
// delivery to the others; all errors are joined.
type Fanout []Sink

func (f Fanout) Send(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that implements io.Closer.
func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// FirstReader returns the first sink that can be queried, or nil.
func (f Fanout) FirstReader() Reader {
	for _, s := range f {
		if r, ok := s.(Reader); ok {
			return r
		}
	}
	return nil
}
