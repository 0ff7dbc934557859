package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yllada/wiresock-manager/common"
	"github.com/yllada/wiresock-manager/vpn"
)

func (c *CLI) newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change persisted settings",
		Long: `Settings are stored next to the profiles in settings.yaml: the WireSock
client location, startup behaviour and the interface language.`,
	}

	cmd.AddCommand(c.newSettingsShowCmd())
	cmd.AddCommand(c.newSettingsBinaryCmd())
	cmd.AddCommand(c.newSettingsAutostartCmd())
	cmd.AddCommand(c.newSettingsLanguageCmd())
	cmd.AddCommand(c.newSettingsCheckCmd())

	return cmd
}

func (c *CLI) newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}

			binary := store.BinaryPath()
			found := "not found"
			if _, err := (vpn.ExecSpawner{}).LookPath(binary); err == nil {
				found = "found"
			}
			def := store.DefaultProfile()
			if def == "" {
				def = "(none)"
			}
			autostart := "off"
			if store.Autostart() {
				autostart = "on"
			}
			lang := store.Language()
			if lang == "" {
				lang = "(system)"
			}
			configFile := c.cfg.ConfigFileUsed()
			if configFile == "" {
				configFile = "(defaults)"
			}

			c.out.Print("Client binary:   %s (%s)\n", binary, found)
			c.out.Print("Default profile: %s\n", def)
			c.out.Print("Autostart:       %s\n", autostart)
			c.out.Print("Language:        %s\n", lang)
			c.out.Print("Data directory:  %s\n", c.cfg.DataDir)
			c.out.Print("Settings file:   %s\n", store.SettingsFile())
			c.out.Print("Config file:     %s\n", configFile)
			return nil
		},
	}
}

func (c *CLI) newSettingsBinaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "binary <path>",
		Short:   "Set the WireSock client location",
		Example: `  wiresock-manager settings binary /opt/wiresock/bin/wiresock-client`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}
			if err := store.SetBinaryPath(args[0]); err != nil {
				return err
			}
			c.out.Success("Client binary set to %s", store.BinaryPath())
			return nil
		},
	}
}

func (c *CLI) newSettingsAutostartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "autostart <on|off>",
		Short: "Connect the default profile when the terminal UI starts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			store, err := c.store()
			if err != nil {
				return err
			}
			if err := store.SetAutostart(enabled); err != nil {
				return err
			}

			if enabled {
				c.out.Success("Autostart enabled")
				if store.DefaultProfile() == "" {
					c.out.Warning("No default profile set; use 'wiresock-manager profiles default <name>'")
				}
			} else {
				c.out.Success("Autostart disabled")
			}
			return nil
		},
	}
}

func (c *CLI) newSettingsLanguageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "language <code>",
		Short: "Store the interface language code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}
			if err := store.SetLanguage(args[0]); err != nil {
				return err
			}
			c.out.Success("Language set to %q", store.Language())
			return nil
		},
	}
}

func (c *CLI) newSettingsCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the WireSock client can be started",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}

			binary := store.BinaryPath()
			path, err := (vpn.ExecSpawner{}).LookPath(binary)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", common.ErrBinaryNotFound, binary, err)
			}
			c.out.Success("WireSock client found at %s", path)

			if n := len(store.List()); n == 0 {
				c.out.Warning("No profiles imported")
			} else {
				c.out.Muted("%d profiles available in %s", n, store.ConfigsDir())
			}
			common.LogDebug("Client check passed for %s", path)
			return nil
		},
	}
}
