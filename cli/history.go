package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/yllada/wiresock-manager/common"
	"github.com/yllada/wiresock-manager/history"
)

func (c *CLI) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past connection attempts",
		Long: `Every connection attempt is recorded with its profile, timing, outcome and
the last line the client printed. Disable recording with history.enabled=false.`,
	}

	cmd.AddCommand(c.newHistoryListCmd())
	cmd.AddCommand(c.newHistoryPruneCmd())

	return cmd
}

func (c *CLI) openHistory(ctx context.Context) (*history.Store, error) {
	return history.Open(ctx, filepath.Join(c.cfg.DataDir, common.HistoryFileName))
}

func (c *CLI) newHistoryListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent attempts, newest first",
		Example: `  wiresock-manager history list -n 5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			hs, err := c.openHistory(ctx)
			if err != nil {
				return err
			}
			defer hs.Close()

			entries, err := hs.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				c.out.Muted("No connection attempts recorded.")
				return nil
			}

			rows := make([]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s\t%s",
					shortID(e.ID),
					e.Profile,
					e.StartedAt.Local().Format("2006-01-02 15:04:05"),
					formatDuration(e.Duration()),
					e.Outcome,
					formatExitCode(e.ExitCode),
					common.Truncate(e.LastLine, 60),
				))
			}
			c.out.Table("ID\tPROFILE\tSTARTED\tCONNECTED FOR\tOUTCOME\tEXIT\tLAST OUTPUT", rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of attempts to show (0 for all)")
	return cmd
}

func (c *CLI) newHistoryPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return usageError("--keep must not be negative, got %d", keep)
			}
			ctx := cmd.Context()
			hs, err := c.openHistory(ctx)
			if err != nil {
				return err
			}
			defer hs.Close()

			n, err := hs.Prune(ctx, keep)
			if err != nil {
				return err
			}
			c.out.Success("Removed %d attempts", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "number of newest attempts to keep")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func formatExitCode(code int) string {
	if code < 0 {
		return "-"
	}
	return strconv.Itoa(code)
}
