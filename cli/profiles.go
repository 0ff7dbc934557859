package cli

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile"},
		Short:   "Manage WireSock profiles",
		Long: `Profiles map a name to a WireSock configuration file. Imported files are
copied into the data directory, so the original can be moved or deleted.`,
	}

	cmd.AddCommand(c.newProfilesListCmd())
	cmd.AddCommand(c.newProfilesImportCmd())
	cmd.AddCommand(c.newProfilesEditCmd())
	cmd.AddCommand(c.newProfilesRenameCmd())
	cmd.AddCommand(c.newProfilesDeleteCmd())
	cmd.AddCommand(c.newProfilesDefaultCmd())

	return cmd
}

func (c *CLI) newProfilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List profiles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}

			profiles := store.List()
			if len(profiles) == 0 {
				c.out.Muted("No profiles imported.")
				c.out.Info("Import one with 'wiresock-manager profiles import <name> <file.conf>'")
				return nil
			}

			def := store.DefaultProfile()
			rows := make([]string, 0, len(profiles))
			for _, p := range profiles {
				marker := ""
				if p.Name == def {
					marker = "*"
				}
				lastUsed := "never"
				if !p.LastUsed.IsZero() {
					lastUsed = p.LastUsed.Local().Format("2006-01-02 15:04")
				}
				rows = append(rows, fmt.Sprintf("%s\t%s\t%s\t%s", p.Name, p.ConfigFile, marker, lastUsed))
			}
			c.out.Table("NAME\tFILE\tDEFAULT\tLAST USED", rows)
			return nil
		},
	}
}

func (c *CLI) newProfilesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "import <name> <file.conf>",
		Short:   "Import a WireSock configuration file",
		Example: `  wiresock-manager profiles import Office ~/Downloads/office.conf`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}
			if err := store.Import(args[0], args[1]); err != nil {
				return err
			}
			c.out.Success("Imported profile %q", args[0])
			return nil
		},
	}
}

func (c *CLI) newProfilesEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <name>",
		Short: "Open a profile's managed file in an editor",
		Long: `Open the managed copy of a profile in $VISUAL or $EDITOR, falling back to
notepad on Windows and vi elsewhere. Changes apply on the next connect.`,
		Example: `  EDITOR=nano wiresock-manager profiles edit Office`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}
			path, err := store.Resolve(args[0])
			if err != nil {
				return err
			}

			editor := editorCommand()
			bin, err := exec.LookPath(editor[0])
			if err != nil {
				return &ExitError{
					Message: fmt.Sprintf("Editor %q not found", editor[0]),
					Cause:   err,
					Hint:    "Set VISUAL or EDITOR to an installed editor",
					Code:    ExitNotFound,
				}
			}

			ed := exec.CommandContext(cmd.Context(), bin, append(editor[1:], path)...)
			ed.Stdin = os.Stdin
			ed.Stdout = c.out.Out
			ed.Stderr = c.out.Err
			if err := ed.Run(); err != nil {
				return &ExitError{
					Message: fmt.Sprintf("Editor %s failed", editor[0]),
					Cause:   err,
					Code:    ExitGeneral,
				}
			}
			c.out.Success("Edited profile %q", args[0])
			return nil
		},
	}
}

// editorCommand returns the user's editor split into program and arguments.
func editorCommand() []string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(os.Getenv(env)); len(fields) > 0 {
			return fields
		}
	}
	if runtime.GOOS == "windows" {
		return []string{"notepad"}
	}
	return []string{"vi"}
}

func (c *CLI) newProfilesRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}
			if err := store.Rename(args[0], args[1]); err != nil {
				return err
			}
			c.out.Success("Renamed %q to %q", args[0], args[1])
			return nil
		},
	}
}

func (c *CLI) newProfilesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a profile and its managed file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			c.out.Success("Deleted profile %q", args[0])
			return nil
		},
	}
}

func (c *CLI) newProfilesDefaultCmd() *cobra.Command {
	var clearDefault bool

	cmd := &cobra.Command{
		Use:   "default [name]",
		Short: "Show or set the profile connected on startup",
		Example: `  wiresock-manager profiles default Office
  wiresock-manager profiles default --clear`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}

			switch {
			case clearDefault:
				if len(args) > 0 {
					return usageError("--clear takes no profile name")
				}
				if err := store.SetDefaultProfile(""); err != nil {
					return err
				}
				c.out.Success("Default profile cleared")

			case len(args) == 1:
				if err := store.SetDefaultProfile(args[0]); err != nil {
					return err
				}
				c.out.Success("Default profile set to %q", args[0])
				if !store.Autostart() {
					c.out.Muted("Autostart is off; enable it with 'wiresock-manager settings autostart on'")
				}

			default:
				if def := store.DefaultProfile(); def != "" {
					c.out.Println(def)
				} else {
					c.out.Muted("No default profile set.")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearDefault, "clear", false, "clear the default profile")
	return cmd
}
