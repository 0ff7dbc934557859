// Package vpn provides VPN connection management functionality.
// This file contains the process abstraction the Supervisor launches
// the WireSock client through.
package vpn

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"

	"github.com/yllada/wiresock-manager/common"
	"github.com/yllada/wiresock-manager/procutil"
)

// Process is a running client owned by the Supervisor.
type Process interface {
	// PID returns the operating system process id.
	PID() int
	// Output returns the merged stdout/stderr stream. Closing it
	// unblocks a pending read.
	Output() io.ReadCloser
	// Wait blocks until the process exits and reports its exit code
	// (-1 when killed by a signal). It is called exactly once.
	Wait() (int, error)
	// Terminate requests a graceful stop.
	Terminate() error
	// Kill stops the process immediately.
	Kill() error
}

// Spawner starts client processes.
type Spawner interface {
	// LookPath locates the client binary without starting it.
	LookPath(binary string) (string, error)
	// Spawn starts binary with args.
	Spawn(binary string, args []string) (Process, error)
}

// ExecSpawner starts real processes with os/exec.
type ExecSpawner struct{}

// LookPath resolves binary like exec.LookPath.
func (ExecSpawner) LookPath(binary string) (string, error) {
	if binary == "" {
		return "", exec.ErrNotFound
	}
	return exec.LookPath(binary)
}

// Spawn starts binary with stdout and stderr merged into one pipe and no
// console window.
func (ExecSpawner) Spawn(binary string, args []string) (Process, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}

	cmd := exec.Command(binary, args...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	procutil.Configure(cmd)

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, err
	}
	// The child holds its own copy of the write end.
	pw.Close()

	return &execProcess{cmd: cmd, output: pr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	output *os.File
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Output() io.ReadCloser {
	return p.output
}

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if p.cmd.ProcessState == nil {
		return -1, err
	}
	return p.cmd.ProcessState.ExitCode(), err
}

func (p *execProcess) Terminate() error {
	return procutil.Terminate(p.cmd.Process)
}

func (p *execProcess) Kill() error {
	return procutil.Kill(p.cmd.Process)
}

// clientArgs builds the WireSock client command line for a config file.
func clientArgs(configPath string) []string {
	return []string{"run", "-config", configPath}
}

// classifySpawnError maps a lookup or start failure to ErrBinaryNotFound
// or ErrSpawn.
func classifySpawnError(binary string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %v", common.ErrBinaryNotFound, binary, err)
	}
	return fmt.Errorf("%w: %s: %v", common.ErrSpawn, binary, err)
}
