package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yllada/wiresock-manager/app"
	"github.com/yllada/wiresock-manager/common"
	"github.com/yllada/wiresock-manager/tui"
	"github.com/yllada/wiresock-manager/vpn"
)

// settleTimeout bounds the wait for the final Disconnected event after an
// attempt ends, so client output is printed before the result.
const settleTimeout = 2 * time.Second

// attemptEnd summarizes how a watched attempt finished.
type attemptEnd struct {
	exitCode int
}

// watchAttempt prints client output from events and reports the first
// Disconnected event on the returned channel.
func (c *CLI) watchAttempt(events <-chan vpn.Event) <-chan attemptEnd {
	ended := make(chan attemptEnd, 1)
	common.SafeGo("connect output", func() {
		exitCode := -1
		for ev := range events {
			switch {
			case ev.Kind == vpn.EventOutput:
				c.out.Muted("  %s", ev.Line)
			case ev.Phase == common.PhaseFailed:
				exitCode = ev.ExitCode
			case ev.Phase == common.PhaseDisconnected:
				select {
				case ended <- attemptEnd{exitCode: exitCode}:
				default:
				}
			}
		}
	})
	return ended
}

func waitEnded(ended <-chan attemptEnd) {
	select {
	case <-ended:
	case <-time.After(settleTimeout):
	}
}

// startedAttempt reports whether err comes from an attempt that got as far
// as Connecting, and so ends with a Disconnected event.
func startedAttempt(err error) bool {
	var launchErr *common.LaunchError
	return errors.As(err, &launchErr) ||
		errors.Is(err, common.ErrSpawn) ||
		errors.Is(err, common.ErrCancelled) ||
		errors.Is(err, context.Canceled)
}

func (c *CLI) newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect [profile]",
		Short: "Connect a profile in the foreground",
		Long: `Start the WireSock client for a profile and stay attached to it, printing
its output. Ctrl+C disconnects. Without a profile name the default profile is used.

Exit codes: 0 after a requested disconnect, 2 for an unknown profile or missing
client, 3 if the client exits during startup or the connection is lost, 5 if
another wiresock-manager already owns the data directory.`,
		Example: `  wiresock-manager connect Office
  wiresock-manager connect`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withApp(ctx, func(a *app.Application) error {
				name := a.Profiles().DefaultProfile()
				if len(args) == 1 {
					name = args[0]
				}
				if name == "" {
					return &ExitError{
						Message: "No profile given and no default profile set",
						Hint:    "Pass a profile name or set one with 'wiresock-manager profiles default <name>'",
						Code:    ExitUsage,
					}
				}
				return c.connectForeground(ctx, a, name)
			})
		},
	}
}

func (c *CLI) connectForeground(ctx context.Context, a *app.Application, name string) error {
	events, unsubscribe := a.Supervisor().Subscribe()
	defer unsubscribe()
	ended := c.watchAttempt(events)

	c.out.Info("Connecting to %s...", name)
	if err := a.Controller().Execute(ctx, vpn.ConnectCommand(name)); err != nil {
		if startedAttempt(err) {
			waitEnded(ended)
		}
		var launchErr *common.LaunchError
		if errors.As(err, &launchErr) {
			// The output was already streamed above.
			e := classify(err)
			e.Details = nil
			return e
		}
		return err
	}

	st := a.Supervisor().Status()
	c.out.Success("Connected to %s (PID %d)", name, st.PID)
	c.out.Muted("Press Ctrl+C to disconnect")

	select {
	case <-ctx.Done():
		err := a.Controller().Execute(context.WithoutCancel(ctx), vpn.DisconnectCommand())
		if err != nil && !errors.Is(err, common.ErrNotConnected) {
			return err
		}
		waitEnded(ended)
		c.out.Success("Disconnected from %s after %s", name, time.Since(st.StartedAt).Round(time.Second))
		return nil

	case end := <-ended:
		return &ExitError{
			Message: fmt.Sprintf("Connection to %q lost", name),
			Cause:   fmt.Errorf("client exited with code %d", end.exitCode),
			Hint:    "Check the client output above or run with -v for details",
			Code:    ExitLaunch,
		}
	}
}

func (c *CLI) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open the interactive terminal UI",
		Long: `Open a full-screen terminal UI listing the profiles and the live connection
state. If autostart is on, the default profile connects as the UI opens.
Quitting the UI disconnects.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTTY(); err != nil {
				return err
			}

			ctx := cmd.Context()
			return c.withApp(ctx, func(a *app.Application) error {
				events, unsubscribe := a.Supervisor().Subscribe()
				defer unsubscribe()
				initial := a.Supervisor().Status()

				common.SafeGo("autostart", func() {
					name, err := a.Autostart(ctx)
					if err != nil {
						common.LogWarn("Autostart of %q failed: %v", name, err)
					}
				})

				return tui.Run(ctx, a.Controller(), a.Profiles(), events, initial)
			})
		},
	}
}
