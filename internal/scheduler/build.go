package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loykin/schedctl/internal/config"
	"github.com/loykin/schedctl/internal/detector"
	"github.com/loykin/schedctl/internal/history"
	histfactory "github.com/loykin/schedctl/internal/history/factory"
	"github.com/loykin/schedctl/internal/registry"
	regfactory "github.com/loykin/schedctl/internal/registry/factory"
)

// FromConfig assembles a Controller for the configured mode: the registry
// from scheduler.registry, the launcher and probe for scheduler.mode, and
// the history sinks.
func FromConfig(ctx context.Context, cfg *config.Config, lg *slog.Logger) (*Controller, error) {
	if lg == nil {
		lg = slog.Default()
	}
	sc := cfg.Scheduler
	reg, err := regfactory.NewFromDSN(ctx, sc.Registry)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	var hist history.Sink
	if len(cfg.History.Sinks) > 0 {
		fan, err := histfactory.NewFanout(cfg.History.Sinks)
		if err != nil {
			_ = reg.Close()
			return nil, fmt.Errorf("history: %w", err)
		}
		hist = fan
	}
	closeAll := func() {
		_ = reg.Close()
		if c, ok := hist.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}

	launcher, det, err := buildMode(cfg, reg, lg)
	if err != nil {
		closeAll()
		return nil, err
	}
	c, err := New(Options{
		Name:     sc.Name,
		Launcher: launcher,
		Registry: reg,
		Detector: det,
		History:  hist,
		Logger:   lg,
		Grace:    sc.Grace,
	})
	if err != nil {
		closeAll()
		return nil, err
	}
	return c, nil
}

func buildMode(cfg *config.Config, reg registry.Registry, lg *slog.Logger) (Launcher, detector.Detector, error) {
	sc := cfg.Scheduler
	var (
		l   Launcher
		det detector.Detector
	)
	switch sc.Mode {
	case ModeProcess:
		e, err := cfg.SchedulerEnv()
		if err != nil {
			return nil, nil, err
		}
		l = &ProcessLauncher{
			Name:         sc.Name,
			Command:      sc.Command,
			WorkDir:      sc.WorkDir,
			Env:          e,
			StopCommand:  sc.StopCommand,
			StopTimeout:  sc.StopTimeout,
			Output:       cfg.SchedulerFileConfig(),
			CaptureBytes: sc.CaptureBytes,
			Logger:       lg,
		}
		det = detector.HandleDetector{Registry: reg, Name: sc.Name}
	case ModeContainer:
		cc := sc.Container
		l = &ContainerLauncher{
			CLI:       cc.CLI,
			Name:      cc.Name,
			StartArgs: cc.StartArgs,
			StopArgs:  cc.StopArgs,
			WorkDir:   sc.WorkDir,
			LogTail:   cc.LogTail,
			Logger:    lg,
		}
		if cc.Probe == config.ProbeAPI {
			ed, err := detector.NewEngineDetector(cc.DockerHost, cc.Name)
			if err != nil {
				return nil, nil, fmt.Errorf("docker engine probe: %w", err)
			}
			det = ed
		} else {
			det = detector.ContainerNameDetector{CLI: cc.CLI, Name: cc.Name}
		}
	default:
		return nil, nil, fmt.Errorf("unknown scheduler mode %q", sc.Mode)
	}
	if sc.ProbeCommand != "" {
		det = detector.CommandDetector{Command: sc.ProbeCommand}
	}
	return l, det, nil
}

// Close releases the registry and history sinks.
func (c *Controller) Close() error {
	var errs []error
	if err := c.reg.Close(); err != nil {
		errs = append(errs, err)
	}
	if cl, ok := c.hist.(interface{ Close() error }); ok {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
