//go:build windows

package procutil

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// Configure configures the command to run without showing a console window.
func Configure(cmd *exec.Cmd) *exec.Cmd {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW | windows.CREATE_NEW_PROCESS_GROUP,
	}
	return cmd
}

// Terminate always reports ErrGracefulUnsupported: a windowless process has
// no console to receive a control event.
func Terminate(p *os.Process) error {
	if p == nil {
		return os.ErrInvalid
	}
	return ErrGracefulUnsupported
}

// Kill terminates the process.
func Kill(p *os.Process) error {
	if p == nil {
		return os.ErrInvalid
	}
	err := p.Kill()
	if err == os.ErrProcessDone {
		return nil
	}
	return err
}
