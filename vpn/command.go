// Package vpn provides VPN connection management functionality.
// This file contains the commands front-ends send and the Controller that
// executes them against a Supervisor.
package vpn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yllada/wiresock-manager/common"
)

// CommandKind identifies a user action.
type CommandKind int

const (
	CommandConnect CommandKind = iota
	CommandDisconnect
	CommandQuit
)

// String returns the command name.
func (k CommandKind) String() string {
	switch k {
	case CommandConnect:
		return "connect"
	case CommandDisconnect:
		return "disconnect"
	case CommandQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Command is a symbolic request from a front-end.
type Command struct {
	Kind    CommandKind
	Profile string
}

// ConnectCommand returns a command connecting the named profile.
func ConnectCommand(profile string) Command {
	return Command{Kind: CommandConnect, Profile: profile}
}

// DisconnectCommand returns a command stopping the active connection.
func DisconnectCommand() Command {
	return Command{Kind: CommandDisconnect}
}

// QuitCommand returns a command that disconnects and ends the session.
func QuitCommand() Command {
	return Command{Kind: CommandQuit}
}

func (c Command) String() string {
	if c.Kind == CommandConnect {
		return fmt.Sprintf("%s %q", c.Kind, c.Profile)
	}
	return c.Kind.String()
}

// Result is the outcome of one executed command.
type Result struct {
	Command Command
	Err     error
}

// UsageRecorder is notified after a profile connects successfully.
type UsageRecorder interface {
	MarkUsed(name string) error
}

// Controller executes commands. Commands may run concurrently: a
// Disconnect does not wait for a pending Connect.
type Controller struct {
	sup   *Supervisor
	usage UsageRecorder

	quit     chan struct{}
	quitOnce sync.Once
}

// NewController creates a Controller. usage may be nil.
func NewController(sup *Supervisor, usage UsageRecorder) *Controller {
	return &Controller{
		sup:   sup,
		usage: usage,
		quit:  make(chan struct{}),
	}
}

// Execute runs one command and returns its error.
func (c *Controller) Execute(ctx context.Context, cmd Command) error {
	common.LogDebug("Executing command: %s", cmd)

	switch cmd.Kind {
	case CommandConnect:
		if err := c.sup.Connect(ctx, cmd.Profile); err != nil {
			return err
		}
		if c.usage != nil {
			if err := c.usage.MarkUsed(cmd.Profile); err != nil {
				common.LogWarn("Could not record use of %q: %v", cmd.Profile, err)
			}
		}
		return nil

	case CommandDisconnect:
		return c.sup.Disconnect()

	case CommandQuit:
		err := c.sup.Disconnect()
		c.quitOnce.Do(func() { close(c.quit) })
		if errors.Is(err, common.ErrNotConnected) {
			return nil
		}
		return err

	default:
		return fmt.Errorf("unknown command %d", cmd.Kind)
	}
}

// Serve executes commands from cmds, each in its own goroutine, and
// reports results until cmds closes or ctx is done. The results channel
// is closed after every started command has finished.
func (c *Controller) Serve(ctx context.Context, cmds <-chan Command) <-chan Result {
	results := make(chan Result)

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(results)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case cmd, ok := <-cmds:
				if !ok {
					return
				}
				wg.Add(1)
				common.SafeGo("command "+cmd.Kind.String(), func() {
					defer wg.Done()
					err := c.Execute(ctx, cmd)
					select {
					case results <- Result{Command: cmd, Err: err}:
					case <-ctx.Done():
					}
				})
			}
		}
	}()

	return results
}

// Done is closed once a Quit command has been executed.
func (c *Controller) Done() <-chan struct{} {
	return c.quit
}
