package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/schedctl/internal/detector"
	"github.com/loykin/schedctl/internal/registry"
)

// DefaultStartArgs is "start <name>": the started container keeps the exact
// name the detectors look for.
func DefaultStartArgs(name string) []string { return []string{"start", name} }

// DefaultStopArgs is "stop <name>".
func DefaultStopArgs(name string) []string { return []string{"stop", name} }

// ContainerLauncher drives the scheduler container through a manager CLI.
// The handle is the fixed container name.
type ContainerLauncher struct {
	CLI       string
	Name      string
	StartArgs []string
	StopArgs  []string
	WorkDir   string
	LogTail   int // lines of container logs attached to a failed start
	Logger    *slog.Logger
}

func (l *ContainerLauncher) Mode() string { return ModeContainer }

func (l *ContainerLauncher) cli() string {
	if strings.TrimSpace(l.CLI) == "" {
		return detector.DefaultCLI
	}
	return l.CLI
}

func (l *ContainerLauncher) log() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *ContainerLauncher) run(ctx context.Context, args []string) (string, error) {
	// #nosec G204
	cmd := exec.CommandContext(ctx, l.cli(), args...)
	if l.WorkDir != "" {
		cmd.Dir = l.WorkDir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w", l.cli(), strings.Join(args, " "), err)
	}
	return string(out), nil
}

func (l *ContainerLauncher) Launch(ctx context.Context) (Spawned, error) {
	args := l.StartArgs
	if len(args) == 0 {
		args = DefaultStartArgs(l.Name)
	}
	out, err := l.run(ctx, args)
	sp := Spawned{Handle: l.Name, Output: func() string { return l.diagnostics(out) }}
	if err != nil {
		return sp, err
	}
	l.log().Info("scheduler container started", "name", l.Name)
	return sp, nil
}

// diagnostics appends the container's recent logs to the manager output.
func (l *ContainerLauncher) diagnostics(managerOut string) string {
	tail := l.LogTail
	if tail <= 0 {
		tail = 100
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logs, err := l.run(ctx, []string{"logs", "--tail", strconv.Itoa(tail), l.Name})
	if err != nil && strings.TrimSpace(logs) == "" {
		return managerOut
	}
	return strings.TrimRight(managerOut, "\n") + "\n" + logs
}

// Stop runs the configured stop invocation; its exit status alone decides.
func (l *ContainerLauncher) Stop(ctx context.Context, _ registry.Record) (string, error) {
	args := l.StopArgs
	if len(args) == 0 {
		args = DefaultStopArgs(l.Name)
	}
	return l.run(ctx, args)
}
