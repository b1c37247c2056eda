package main

import (
	"time"

	"fwe/cmd/fwe/dashboard"
	"fwe/internal/logging"

	"github.com/spf13/cobra"
)

func (c *cli) newDashboardCmd() *cobra.Command {
	var (
		api     string
		timeout time.Duration
		noAuto  bool
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive scenario dashboard",
		Long: `Open a terminal dashboard with scenario inputs and live results.

Edits re-run the scenario after a short debounce; only the most recent run's
result is ever shown. Out-of-range posture and duration values are clamped.
Logs go to <workspace>/.fwe/logs while the dashboard owns the terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, source, err := c.newClient(api, timeout)
			if err != nil {
				return err
			}

			d := c.cfg.Dashboard
			return dashboard.Run(cmd.Context(), dashboard.Options{
				Sender:          client,
				Endpoint:        client.Endpoint(),
				EndpointSource:  source,
				AutoRun:         d.AutoRun && !noAuto,
				Debounce:        c.cfg.GetDebounce(),
				AbortSuperseded: d.AbortSuperseded,
				History:         c.store,
				HistoryLimit:    c.cfg.History.RecentLimit,
				Logger:          c.log.Get(logging.CategoryDashboard),
			})
		},
	}

	cmd.Flags().StringVar(&api, "api", "", "Service base URL (overrides FWE_API_BASE and config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-request timeout (default: api.timeout from config)")
	cmd.Flags().BoolVar(&noAuto, "no-auto-run", false, "Only run on Enter")

	return cmd
}
