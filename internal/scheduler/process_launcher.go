package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/schedctl/internal/detector"
	"github.com/loykin/schedctl/internal/env"
	"github.com/loykin/schedctl/internal/logger"
	"github.com/loykin/schedctl/internal/registry"
)

// DefaultStopTimeout is how long Stop waits after SIGTERM before SIGKILL.
const DefaultStopTimeout = 10 * time.Second

// ProcessLauncher spawns the scheduler as a direct child process.
type ProcessLauncher struct {
	Name    string
	Command string
	WorkDir string
	Env     *env.Env // nil inherits the service environment unchanged
	// StopCommand, when set, replaces signalling; its exit status decides.
	StopCommand  string
	StopTimeout  time.Duration
	Output       logger.FileConfig // scheduler stdout/stderr destinations
	CaptureBytes int
	Logger       *slog.Logger
}

func (l *ProcessLauncher) Mode() string { return ModeProcess }

func (l *ProcessLauncher) log() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Launch starts the command in its own process group. The child is not bound
// to ctx; a goroutine reaps it and closes its log writers on exit.
func (l *ProcessLauncher) Launch(_ context.Context) (Spawned, error) {
	cmd := buildCommand(l.Command)
	if l.WorkDir != "" {
		cmd.Dir = l.WorkDir
	}
	if l.Env != nil {
		cmd.Env = l.Env.Merge(nil)
	}
	configureSysProcAttr(cmd)

	capture := newTailBuffer(l.CaptureBytes)
	sp := Spawned{Output: capture.String}
	outW, errW, err := l.Output.Writers(l.Name)
	if err != nil {
		return sp, fmt.Errorf("open scheduler log: %w", err)
	}
	cmd.Stdout = tee(outW, capture)
	if errW == outW {
		cmd.Stderr = cmd.Stdout
	} else {
		cmd.Stderr = tee(errW, capture)
	}

	if err := cmd.Start(); err != nil {
		closeWriters(outW, errW)
		return sp, fmt.Errorf("spawn %q: %w", l.Command, err)
	}
	pid := cmd.Process.Pid
	sp.Handle = strconv.Itoa(pid)
	sp.ProcStart = detector.ProcStartUnix(pid)
	l.log().Info("scheduler spawned", "pid", pid, "command", l.Command)

	go func() {
		werr := cmd.Wait()
		closeWriters(outW, errW)
		l.log().Info("scheduler exited", "pid", pid, "err", werr)
	}()
	return sp, nil
}

// Stop terminates the recorded process. A missing, stale or unparseable
// handle means there is nothing to stop and is reported as success.
func (l *ProcessLauncher) Stop(ctx context.Context, rec registry.Record) (string, error) {
	if strings.TrimSpace(l.StopCommand) != "" {
		cmd := buildCommandContext(ctx, l.StopCommand)
		if l.WorkDir != "" {
			cmd.Dir = l.WorkDir
		}
		e := l.Env
		if e == nil {
			e = env.New()
		}
		cmd.Env = e.Merge([]string{"SCHEDULER_HANDLE=" + rec.Handle})
		out, err := cmd.CombinedOutput()
		if err != nil {
			return string(out), fmt.Errorf("stop command %q: %w", l.StopCommand, err)
		}
		return string(out), nil
	}

	pid, err := strconv.Atoi(strings.TrimSpace(rec.Handle))
	if err != nil || pid <= 0 {
		l.log().Debug("no usable handle to stop", "handle", rec.Handle)
		return "", nil
	}
	if rec.ProcStart > 0 {
		if cur := detector.ProcStartUnix(pid); cur > 0 && cur != rec.ProcStart {
			l.log().Debug("handle refers to a recycled pid", "pid", pid)
			return "", nil
		}
	}
	if err := terminate(pid); err != nil {
		if errors.Is(err, errNoProcess) {
			return "", nil
		}
		return "", fmt.Errorf("signal pid %d: %w", pid, err)
	}
	timeout := l.StopTimeout
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	if waitGone(ctx, pid, timeout) {
		return "", nil
	}
	l.log().Warn("scheduler ignored SIGTERM, killing", "pid", pid, "timeout", timeout)
	if err := forceKill(pid); err != nil && !errors.Is(err, errNoProcess) {
		return "", fmt.Errorf("kill pid %d: %w", pid, err)
	}
	if waitGone(ctx, pid, 2*time.Second) {
		return "", nil
	}
	return "", fmt.Errorf("pid %d still alive after kill", pid)
}

func waitGone(ctx context.Context, pid int, d time.Duration) bool {
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()
	for {
		if processGone(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return processGone(pid)
		case <-deadline.C:
			return processGone(pid)
		case <-tick.C:
		}
	}
}

func closeWriters(outW, errW io.WriteCloser) {
	if outW != nil {
		_ = outW.Close()
	}
	if errW != nil && errW != outW {
		_ = errW.Close()
	}
}
