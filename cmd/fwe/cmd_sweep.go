// This file implements `fwe sweep`, which runs one scenario per Posture
// Index step and prints the results side by side.
package main

import (
	"fmt"
	"strconv"

	"fwe/cmd/fwe/ui"
	"fwe/internal/diagnostics"
	"fwe/internal/history"
	"fwe/internal/logging"
	"fwe/internal/run"
	"fwe/internal/scenario"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// sweepPoints returns steps evenly spaced values from from to to inclusive.
// The last point is exactly to.
func sweepPoints(from, to float64, steps int) []float64 {
	if steps <= 1 {
		return []float64{from}
	}
	points := make([]float64, steps)
	for i := range points {
		points[i] = from + (to-from)*float64(i)/float64(steps-1)
	}
	points[steps-1] = to
	return points
}

func (c *cli) newSweepCmd() *cobra.Command {
	var (
		flags    scenarioFlags
		from, to float64
		steps    int
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a scenario across a range of Posture Index values",
		Long: `Run the same scenario for evenly spaced Posture Index values and print a
comparison table, one row per PI in ascending sweep order.

Every point is validated before anything is sent. Points run concurrently,
bounded by --parallel (default: sweep.parallel from config).`,
		Example: `  fwe sweep --ci 2 --weeks 12
  fwe sweep --from -0.5 --to 0.5 --steps 11 --ci 1 --weeks 26 --parallel 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("invalid --steps %d: must be at least 1", steps)
			}
			if parallel <= 0 {
				parallel = c.cfg.GetSweepParallel()
			}

			builder := scenario.NewBuilder(scenario.PolicyStrict)
			points := sweepPoints(from, to, steps)
			requests := make([]scenario.Request, len(points))
			for i, pi := range points {
				raw, err := scenario.ParseForm(flags.form(strconv.FormatFloat(pi, 'f', -1, 64)))
				if err != nil {
					return err
				}
				if requests[i], err = builder.Build(raw); err != nil {
					return fmt.Errorf("sweep point %d: %w", i+1, err)
				}
			}

			client, _, err := c.newClient(flags.host, flags.timeout)
			if err != nil {
				return err
			}

			logger := c.log.Get(logging.CategorySweep)
			timer := logging.StartTimer(logger, "sweep")
			outcomes := make([]run.Outcome, len(requests))

			var g errgroup.Group
			g.SetLimit(parallel)
			for i, req := range requests {
				g.Go(func() error {
					ctrl := run.New(client, run.WithLogger(c.log.Get(logging.CategoryRun)))
					outcomes[i], _ = ctrl.RunOnce(cmd.Context(), req)
					return nil
				})
			}
			_ = g.Wait()
			timer.StopWithThreshold(c.cfg.GetTimeout())

			failed := 0
			for _, o := range outcomes {
				c.record(cmd.Context(), history.SourceSweep, client.Endpoint(), o)
				if o.Err != nil {
					failed++
					logger.Warn("sweep point failed",
						zap.Stringer("request", o.Request),
						zap.Error(o.Err))
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), sweepTable(outcomes).View(ui.DefaultStyles()))
			if failed > 0 {
				return fmt.Errorf("%d of %d sweep points failed", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&from, "from", -1, "First Posture Index")
	cmd.Flags().Float64Var(&to, "to", 1, "Last Posture Index")
	cmd.Flags().IntVar(&steps, "steps", 5, "Number of PI values")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "Concurrent requests (default: sweep.parallel from config)")
	flags.register(cmd)

	return cmd
}

// sweepTable renders one row per outcome, in the order given.
func sweepTable(outcomes []run.Outcome) *ui.SimpleTable {
	headers := []string{"PI", "Days of Supply", "Logistics Delay"}
	for _, m := range diagnostics.Normalize(nil) {
		headers = append(headers, m.Label)
	}
	headers = append(headers, "Status")

	t := ui.NewSimpleTable("PI Sweep", headers)
	for _, o := range outcomes {
		row := []string{fmt.Sprintf("%.2f", o.Request.PI())}
		if o.Err != nil {
			for i := 1; i < len(headers)-1; i++ {
				row = append(row, diagnostics.Placeholder)
			}
			row = append(row, string(history.ClassifyOutcome(o.Err)))
			t.AddRow(row...)
			continue
		}
		row = append(row,
			kpiCell(o.Response, scenario.KPIDaysOfSupply),
			kpiCell(o.Response, scenario.KPILogisticsDelay))
		for _, m := range diagnostics.Normalize(o.Response.Diagnostics) {
			row = append(row, m.Display())
		}
		row = append(row, "ok")
		t.AddRow(row...)
	}
	return t
}

func kpiCell(resp scenario.Response, key string) string {
	v, ok := resp.KPI(key)
	if !ok {
		return diagnostics.Placeholder
	}
	return diagnostics.DisplayValue(v)
}
