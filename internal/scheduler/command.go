package scheduler

import (
	"context"
	"os/exec"
	"strings"
)

// splitCommand decides how a configured command line is executed.
// It avoids invoking a shell when not necessary, and it also respects
// an explicit shell invocation already present in the command string
// (e.g., "sh -c 'echo hi'"), avoiding double-wrapping with another shell.
func splitCommand(cmdStr string) (string, []string) {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return shellPath, []string{shellFlag, noopScript}
	}
	if after, ok := parseExplicitShell(cmdStr); ok {
		return shellPath, []string{shellFlag, after}
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		return shellPath, []string{shellFlag, cmdStr}
	}
	parts := strings.Fields(cmdStr)
	return parts[0], parts[1:]
}

// buildCommand returns a command that is not tied to any request context,
// so the spawned scheduler outlives the call that started it.
func buildCommand(cmdStr string) *exec.Cmd {
	name, args := splitCommand(cmdStr)
	// #nosec G204
	return exec.Command(name, args...)
}

func buildCommandContext(ctx context.Context, cmdStr string) *exec.Cmd {
	name, args := splitCommand(cmdStr)
	// #nosec G204
	return exec.CommandContext(ctx, name, args...)
}

// parseExplicitShell detects "sh -c <ARG>" or "/bin/sh -c <ARG>" at the start
// of cmdStr and returns ARG with one pair of surrounding quotes stripped.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if !strings.HasPrefix(trim, p) {
			continue
		}
		after := trim[len(p):]
		if n := len(after); n >= 2 {
			if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
				after = after[1 : n-1]
			}
		}
		return after, true
	}
	return "", false
}
