// Package cli provides the command-line interface for WireSock Manager.
// Profiles and settings are managed with subcommands; "connect" runs a
// connection in the foreground and "run" opens the interactive terminal UI.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yllada/wiresock-manager/app"
	"github.com/yllada/wiresock-manager/common"
	"github.com/yllada/wiresock-manager/config"
	"github.com/yllada/wiresock-manager/vpn"
)

// BuildInfo identifies the binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// CLI holds what every command shares.
type CLI struct {
	out     *Writer
	build   BuildInfo
	appOpts []app.Option

	cfg *config.Config
}

// New creates a CLI writing to out. appOpts are passed to every
// Application the commands create.
func New(out *Writer, build BuildInfo, appOpts ...app.Option) *CLI {
	return &CLI{out: out, build: build, appOpts: appOpts}
}

// Main runs the CLI with the process arguments and returns the exit code.
func Main(build BuildInfo) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return New(DefaultWriter(), build).Execute(ctx, os.Args[1:])
}

// Execute runs the command line args and returns the exit code.
func (c *CLI) Execute(ctx context.Context, args []string) int {
	defer common.CloseLogger()

	root := c.Command()
	root.SetArgs(args)
	root.SetOut(c.out.Out)
	root.SetErr(c.out.Err)

	if err := root.ExecuteContext(ctx); err != nil {
		return c.handleError(err)
	}
	return ExitSuccess
}

// handleError prints err and returns its exit code.
func (c *CLI) handleError(err error) int {
	msg := err.Error()
	if strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag") ||
		strings.Contains(msg, "accepts ") ||
		strings.Contains(msg, "required flag") {
		c.out.Failure("%s", msg)
		c.out.Info("Run 'wiresock-manager --help' for usage")
		return ExitUsage
	}

	e := classify(err)
	c.out.Failure("%s", e.Error())
	for _, line := range e.Details {
		c.out.Muted("  %s", line)
	}
	if e.Hint != "" {
		c.out.Info("%s", e.Hint)
	}
	common.LogDebug("Command failed: %v", err)
	return e.Code
}

// Command builds the root command.
func (c *CLI) Command() *cobra.Command {
	var (
		logLevel string
		verbose  bool
		noColor  bool
	)

	root := &cobra.Command{
		Use:   "wiresock-manager",
		Short: "Manage WireSock VPN profiles and connections",
		Long: `WireSock Manager keeps a set of named WireSock profiles and runs the
WireSock client for one of them at a time.

Get started:
  wiresock-manager profiles import Office ~/office.conf
  wiresock-manager connect Office
  wiresock-manager run`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				c.out.SetNoColor(true)
			}

			cfg, err := config.Load()
			if err != nil {
				return &ExitError{
					Message: "Invalid configuration",
					Cause:   err,
					Hint:    "Check config.yaml and WIRESOCK_MANAGER_* environment variables",
					Code:    ExitConfig,
				}
			}
			c.cfg = cfg

			level := cfg.LogLevel()
			if logLevel != "" {
				if level, err = common.ParseLogLevel(logLevel); err != nil {
					return usageError("%v", err)
				}
			}
			if verbose {
				level = common.LevelDebug
			}

			// Console logging would corrupt the terminal UI.
			quiet := !verbose || cmd.Name() == "run"
			if err := common.InitLogger(common.LogConfig{
				Level:      level,
				EnableFile: cfg.Log.File,
				Dir:        cfg.Log.Dir,
				Quiet:      quiet,
			}); err != nil {
				c.out.Warning("Could not initialize file logging: %v", err)
			}
			common.LogDebug("Running %q with config %q", cmd.CommandPath(), cfg.ConfigFileUsed())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr at debug level")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(c.newProfilesCmd())
	root.AddCommand(c.newSettingsCmd())
	root.AddCommand(c.newConnectCmd())
	root.AddCommand(c.newRunCmd())
	root.AddCommand(c.newHistoryCmd())
	root.AddCommand(c.newConfigCmd())
	root.AddCommand(c.newVersionCmd())

	return root
}

// store opens the profile store.
func (c *CLI) store() (*vpn.ProfileStore, error) {
	return vpn.NewProfileStore(c.cfg.DataDir)
}

// withApp builds and starts an Application for the duration of fn. The
// subscribers outlive cancellation of ctx so the final events are recorded.
func (c *CLI) withApp(ctx context.Context, fn func(a *app.Application) error) error {
	a, err := app.New(ctx, c.cfg, c.appOpts...)
	if err != nil {
		return err
	}
	a.Start(context.WithoutCancel(ctx))

	runErr := fn(a)
	if err := a.Close(); err != nil {
		common.LogWarn("Shutdown: %v", err)
	}
	return runErr
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.out.Print("%s %s\n", common.AppName, c.build.Version)
			if c.build.Commit != "" && c.build.Commit != "unknown" {
				c.out.Print("  Commit: %s\n", c.build.Commit)
			}
			if c.build.Date != "" && c.build.Date != "unknown" {
				c.out.Print("  Built:  %s\n", c.build.Date)
			}
			return nil
		},
	}
}

// parseOnOff accepts the usual spellings of a boolean switch.
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "no", "0", "disable", "disabled":
		return false, nil
	}
	return false, usageError("expected on or off, got %q", s)
}

var errNoTTY = errors.New("not a terminal")

func requireTTY() error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return &ExitError{
			Message: "The terminal UI needs an interactive terminal",
			Cause:   errNoTTY,
			Hint:    "Use 'wiresock-manager connect <profile>' in scripts",
			Code:    ExitUsage,
		}
	}
	return nil
}
