//go:build !windows

package scheduler

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
)

const (
	shellPath  = "/bin/sh"
	shellFlag  = "-c"
	noopScript = ":"
)

var errNoProcess = errors.New("no such process")

// configureSysProcAttr puts the child in its own process group so the whole
// tree can be signalled on stop.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends SIGTERM to the process group of pid, falling back to the
// pid alone when it does not lead a group.
func terminate(pid int) error { return signalTree(pid, syscall.SIGTERM) }

func forceKill(pid int) error { return signalTree(pid, syscall.SIGKILL) }

func signalTree(pid int, sig syscall.Signal) error {
	err := syscall.Kill(-pid, sig)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ESRCH) {
		err = syscall.Kill(pid, sig)
		if err == nil {
			return nil
		}
		if errors.Is(err, syscall.ESRCH) {
			return errNoProcess
		}
	}
	return err
}

// processGone reports whether pid no longer exists. A zombie counts as gone.
func processGone(pid int) bool {
	if err := syscall.Kill(pid, 0); err != nil {
		return errors.Is(err, syscall.ESRCH)
	}
	return runtime.GOOS == "linux" && isZombieLinux(pid)
}

// isZombieLinux returns true if /proc/<pid>/status reports a zombie state (Z) on Linux.
func isZombieLinux(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
