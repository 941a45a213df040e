//go:build windows

package scheduler

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

const (
	shellPath  = "cmd"
	shellFlag  = "/c"
	noopScript = "rem"
)

const createNewProcessGroup = 0x00000200

var errNoProcess = errors.New("no such process")

func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// Windows has no SIGTERM; both steps terminate the process.
func terminate(pid int) error { return forceKill(pid) }

func forceKill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return errNoProcess
	}
	if err := p.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return errNoProcess
		}
		return err
	}
	return nil
}

func processGone(pid int) bool {
	h, err := syscall.OpenProcess(syscall.PROCESS_QUERY_INFORMATION|syscall.SYNCHRONIZE, false, uint32(pid))
	if err != nil {
		return true
	}
	defer func() { _ = syscall.CloseHandle(h) }()
	ev, _ := syscall.WaitForSingleObject(h, 0)
	return ev == syscall.WAIT_OBJECT_0
}
