package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/schedctl/internal/detector"
	"github.com/loykin/schedctl/internal/history"
	"github.com/loykin/schedctl/internal/metrics"
	"github.com/loykin/schedctl/internal/registry"
)

// DefaultGrace is the wait between spawn and the confirming liveness probe.
const DefaultGrace = 2 * time.Second

// Options wires a Controller. Launcher, Registry and Detector are required.
type Options struct {
	Name     string
	Launcher Launcher
	Registry registry.Registry
	Detector detector.Detector
	History  history.Sink // optional
	Logger   *slog.Logger
	Grace    time.Duration // 0 selects DefaultGrace; negative disables the wait
}

// StartResult is returned by a successful Start.
type StartResult struct {
	Started bool   `json:"started"`
	Handle  string `json:"handle"`
}

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	State     State     `json:"state"`
	Running   bool      `json:"running"`
	Handle    string    `json:"handle,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Mode      string    `json:"mode"`
}

// Controller is the single authority over the scheduler lifecycle.
// Start and Stop are serialized; Status and Snapshot share a read lock and
// never overlap a Start or Stop.
type Controller struct {
	mu       sync.RWMutex
	name     string
	launcher Launcher
	reg      registry.Registry
	det      detector.Detector
	hist     history.Sink
	log      *slog.Logger
	grace    time.Duration
	state    State
}

func New(o Options) (*Controller, error) {
	if o.Launcher == nil || o.Registry == nil || o.Detector == nil {
		return nil, errors.New("scheduler: launcher, registry and detector are required")
	}
	if o.Name == "" {
		o.Name = "scheduler"
	}
	if o.Grace == 0 {
		o.Grace = DefaultGrace
	}
	lg := o.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Controller{
		name:     o.Name,
		launcher: o.Launcher,
		reg:      o.Registry,
		det:      o.Detector,
		hist:     o.History,
		log:      lg.With("component", "scheduler", "mode", o.Launcher.Mode()),
		grace:    o.Grace,
		state:    StateStopped,
	}, nil
}

// Mode reports the launcher mode (process or container).
func (c *Controller) Mode() string { return c.launcher.Mode() }

// Name is the worker name used in registry and history records.
func (c *Controller) Name() string { return c.name }

// History returns a sink that can list past lifecycle events, or nil when
// none of the configured sinks is queryable.
func (c *Controller) History() history.Reader {
	switch h := c.hist.(type) {
	case history.Fanout:
		return h.FirstReader()
	case history.Reader:
		return h
	}
	return nil
}

// Start launches the scheduler unless it is already alive. Starting over a
// stale handle is allowed; the new handle replaces it.
func (c *Controller) Start(ctx context.Context) (StartResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.probe(ctx) {
		rec, _ := c.reg.Load(ctx, c.name)
		c.setState(StateRunning)
		metrics.IncStart("already_running")
		c.log.Debug("start skipped, already running", "handle", rec.Handle)
		return StartResult{Started: false, Handle: rec.Handle}, nil
	}

	c.setState(StateStarting)
	began := time.Now()
	sp, err := c.launcher.Launch(ctx)
	if err != nil {
		return StartResult{}, c.failStart(ctx, sp, err)
	}
	rec := registry.Record{Name: c.name, Handle: sp.Handle, StartedAt: time.Now().UTC(), ProcStart: sp.ProcStart}
	if err := c.reg.Save(ctx, rec); err != nil {
		return StartResult{}, c.failStart(ctx, sp, fmt.Errorf("persist handle: %w", err))
	}
	if err := c.wait(ctx); err != nil {
		return StartResult{}, c.failStart(ctx, sp, err)
	}
	if !c.probe(ctx) {
		return StartResult{}, c.failStart(ctx, sp, ErrNotAlive)
	}

	c.setState(StateRunning)
	metrics.IncStart("started")
	metrics.ObserveStartDuration(c.launcher.Mode(), time.Since(began))
	c.emit(ctx, history.EventStart, sp.Handle, nil)
	c.log.Info("scheduler started", "handle", sp.Handle)
	return StartResult{Started: true, Handle: sp.Handle}, nil
}

func (c *Controller) failStart(ctx context.Context, sp Spawned, cause error) error {
	c.setState(StateStartFailed)
	metrics.IncStart("failed")
	serr := &StartError{Handle: sp.Handle, Output: sp.output(), Err: cause}
	c.emit(ctx, history.EventStartFailed, sp.Handle, cause)
	c.log.Error("scheduler start failed", "handle", sp.Handle, "err", cause)
	return serr
}

// Stop asks the manager to stop the scheduler. The manager's outcome alone
// decides success; liveness is not re-checked.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.reg.Load(ctx, c.name)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			c.log.Warn("registry load failed before stop", "err", err)
		}
		rec = registry.Record{Name: c.name}
	}
	out, err := c.launcher.Stop(ctx, rec)
	if err != nil {
		c.setState(StateStopFailed)
		metrics.IncStop("failed")
		c.emit(ctx, history.EventStopFailed, rec.Handle, err)
		c.log.Error("scheduler stop failed", "handle", rec.Handle, "err", err)
		return &StopError{Handle: rec.Handle, Output: out, Err: err}
	}
	if err := c.reg.Clear(ctx, c.name); err != nil {
		c.log.Warn("registry clear failed after stop", "err", err)
	}
	c.setState(StateStopped)
	metrics.IncStop("ok")
	c.emit(ctx, history.EventStop, rec.Handle, nil)
	c.log.Info("scheduler stopped", "handle", rec.Handle)
	return nil
}

// Status reports whether the scheduler is alive. Probe errors degrade to false.
func (c *Controller) Status(ctx context.Context) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.probe(ctx)
}

// Snapshot returns state, liveness and the persisted handle. A scheduler
// found alive while the controller believes it stopped (for example after a
// service restart) is reported as running.
func (c *Controller) Snapshot(ctx context.Context) Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Snapshot{State: c.state, Running: c.probe(ctx), Mode: c.launcher.Mode()}
	if rec, err := c.reg.Load(ctx, c.name); err == nil {
		s.Handle = rec.Handle
		s.StartedAt = rec.StartedAt
	}
	if s.Running && s.State == StateStopped {
		s.State = StateRunning
	}
	return s
}

func (c *Controller) probe(ctx context.Context) bool {
	alive, err := c.det.Alive(ctx)
	if err != nil {
		c.log.Debug("liveness probe failed", "probe", c.det.Describe(), "err", err)
		alive = false
	}
	metrics.ObserveProbe(alive)
	return alive
}

func (c *Controller) wait(ctx context.Context) error {
	if c.grace <= 0 {
		return nil
	}
	t := time.NewTimer(c.grace)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// setState must be called with the write lock held.
func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	metrics.RecordStateTransition(c.state.String(), s.String())
	c.state = s
}

func (c *Controller) emit(ctx context.Context, typ history.EventType, handle string, cause error) {
	if c.hist == nil {
		return
	}
	e := history.Event{Type: typ, OccurredAt: time.Now().UTC(), Name: c.name, Handle: handle, Mode: c.launcher.Mode()}
	if cause != nil {
		e.Error = cause.Error()
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.hist.Send(hctx, e); err != nil {
		c.log.Warn("history sink failed", "event", string(typ), "err", err)
	}
}
