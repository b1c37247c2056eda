package main

import (
	"fmt"
	"strings"
	"time"

	"fwe/cmd/fwe/ui"
	"fwe/internal/battery"
	"fwe/internal/history"
	"fwe/internal/logging"

	"github.com/spf13/cobra"
)

func (c *cli) newBatteryCmd() *cobra.Command {
	var (
		host     string
		timeout  time.Duration
		failFast bool
	)

	cmd := &cobra.Command{
		Use:   "battery [file]",
		Short: "Run a YAML scenario battery and check the results",
		Long: `Run every scenario in a battery file in order and check each result
against its expected bounds. Expectation keys may name a KPI, a diagnostic or
an operability metric (Delivery, Payments, PRC Friction, Insurance, HedgeOps).

The default file is <workspace>/.fwe/battery.yaml.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := battery.DefaultBatteryPath(c.workspace)
			if len(args) == 1 {
				path = args[0]
			}
			b, err := battery.LoadBattery(path)
			if err != nil {
				return fmt.Errorf("failed to load battery: %w", err)
			}

			client, _, err := c.newClient(host, timeout)
			if err != nil {
				return err
			}

			logger := c.log.Get(logging.CategoryBattery)
			timer := logging.StartTimer(logger, "battery")
			results, err := battery.RunBattery(cmd.Context(), b, client, battery.Options{
				FailFast: failFast,
				Logger:   logger,
			})
			timer.Stop()
			if err != nil {
				return err
			}

			table := ui.NewSimpleTable("Scenario Battery", []string{"ID", "Outcome", "Result", "Elapsed", "Details"})
			for _, r := range results {
				c.record(cmd.Context(), history.SourceBattery, client.Endpoint(), r.Outcome)
				status := "PASS"
				if !r.Success {
					status = "FAIL"
				}
				table.AddRow(
					r.CaseID,
					string(history.ClassifyOutcome(r.Outcome.Err)),
					status,
					r.Duration.Round(time.Millisecond).String(),
					strings.Join(r.Failures, "; "),
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table.View(ui.DefaultStyles()))

			passed, failed := battery.Summary(results)
			fmt.Fprintf(cmd.OutOrStdout(), "%d passed, %d failed\n", passed, failed)
			if failed > 0 || len(results) < len(b.Scenarios) {
				return fmt.Errorf("battery failed: %d of %d scenarios did not pass", len(b.Scenarios)-passed, len(b.Scenarios))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Service base URL (default: FWE_API_BASE, config, then http://localhost:8081)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-request timeout (default: api.timeout from config)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first failing scenario")

	return cmd
}
