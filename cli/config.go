package cli

import (
	"sort"

	"github.com/spf13/cobra"
)

func (c *CLI) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the runtime configuration",
		Long: `Runtime options come from config.yaml in the configuration directory and
WIRESOCK_MANAGER_* environment variables, for example
WIRESOCK_MANAGER_SUPERVISOR_GRACE_INTERVAL=2s.`,
	}

	cmd.AddCommand(c.newConfigListCmd())
	cmd.AddCommand(c.newConfigPathCmd())

	return cmd
}

func (c *CLI) newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := flatten("", c.cfg.All())

			keys := make([]string, 0, len(settings))
			for key := range settings {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			for _, key := range keys {
				c.out.Print("%s = %v\n", key, settings[key])
			}
			return nil
		},
	}
}

func (c *CLI) newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path := c.cfg.ConfigFileUsed(); path != "" {
				c.out.Println(path)
				return nil
			}
			c.out.Muted("No config file; using defaults and environment.")
			return nil
		},
	}
}

// flatten turns nested settings into dotted keys.
func flatten(prefix string, m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}
