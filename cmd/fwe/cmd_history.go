package main

import (
	"errors"
	"fmt"

	"fwe/cmd/fwe/ui"
	"fwe/internal/history"

	"github.com/spf13/cobra"
)

func (c *cli) newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long:  `Show outcome totals and the most recent runs from the workspace run history.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := history.FromContext(cmd.Context())
			if store == nil {
				return errors.New("run history is disabled (history.enabled is false or the database could not be opened)")
			}
			if limit <= 0 {
				limit = c.cfg.History.RecentLimit
			}

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read run history: %w", err)
			}
			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to read run history: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderHistory(ui.DefaultStyles(), stats, records))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of recent runs to show (default: history.recent_limit)")
	return cmd
}
