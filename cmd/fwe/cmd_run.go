// This file implements the single-shot `fwe run` command.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"fwe/internal/history"
	"fwe/internal/logging"
	"fwe/internal/run"
	"fwe/internal/scenario"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// scenarioFlags are the request flags shared by run and sweep.
type scenarioFlags struct {
	ci      string
	weeks   string
	pop     string
	budget  string
	seed    string
	demand  string
	host    string
	timeout time.Duration
}

func (f *scenarioFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ci, "ci", "", "Conflict Intensity (0-3)")
	cmd.Flags().StringVar(&f.weeks, "weeks", "", "Duration in weeks (1-52)")
	cmd.Flags().StringVar(&f.pop, "pop", "5.9", "Population in millions")
	cmd.Flags().StringVar(&f.budget, "budget", "500", "Budget in millions of USD")
	cmd.Flags().StringVar(&f.seed, "seed", "", "Random seed (optional)")
	cmd.Flags().StringVar(&f.demand, "demand", "", "Calorie demand per capita per day (optional)")
	cmd.Flags().StringVar(&f.host, "host", "", "Service base URL (default: FWE_API_BASE, config, then http://localhost:8081)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per-request timeout (default: api.timeout from config)")
	_ = cmd.MarkFlagRequired("ci")
	_ = cmd.MarkFlagRequired("weeks")
}

func (f *scenarioFlags) form(pi string) scenario.FormInput {
	return scenario.FormInput{
		PI:          pi,
		CI:          f.ci,
		DWeeks:      f.weeks,
		PopulationM: f.pop,
		BudgetMUSD:  f.budget,
		Seed:        f.seed,
		Demand:      f.demand,
	}
}

func (c *cli) newRunCmd() *cobra.Command {
	var (
		flags  scenarioFlags
		pi     string
		format string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scenario and print the result",
		Long: `Run one scenario against the FWE model service.

Input is validated locally first; out-of-range values are rejected and never
sent. On success the KPIs, diagnostics and any notes are printed.`,
		Example: `  fwe run --pi 0.3 --ci 2 --weeks 12
  fwe run --pi -0.5 --ci 1 --weeks 8 --seed 42 --host http://model:8081`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("invalid --format %q: must be text or json", format)
			}

			raw, err := scenario.ParseForm(flags.form(pi))
			if err != nil {
				return err
			}
			req, err := scenario.NewBuilder(scenario.PolicyStrict).Build(raw)
			if err != nil {
				return err
			}

			client, _, err := c.newClient(flags.host, flags.timeout)
			if err != nil {
				return err
			}

			ctrl := run.New(client, run.WithLogger(c.log.Get(logging.CategoryRun)))
			o, runErr := ctrl.RunOnce(cmd.Context(), req)
			c.record(cmd.Context(), history.SourceCLI, client.Endpoint(), o)
			if runErr != nil {
				return runErr
			}

			if format == "json" {
				return printJSON(cmd.OutOrStdout(), o.Response)
			}
			printResponse(cmd.OutOrStdout(), o.Response)
			return nil
		},
	}

	cmd.Flags().StringVar(&pi, "pi", "", "Posture Index (-1 to 1)")
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("pi")

	return cmd
}

// record stores o in the run history carried by ctx, if any. Failures are
// logged and never fail the command.
func (c *cli) record(ctx context.Context, source history.Source, endpoint string, o run.Outcome) {
	store := history.FromContext(ctx)
	if store == nil {
		return
	}
	if _, err := store.Record(ctx, source, endpoint, o); err != nil {
		c.log.Get(logging.CategoryHistory).Warn("failed to record run",
			zap.Uint64("token", uint64(o.Token)),
			zap.Error(err))
	}
}

// printResponse writes the KPIs, diagnostics and notes of resp in the plain
// text format.
func printResponse(w io.Writer, resp scenario.Response) {
	fmt.Fprintln(w, "KPIs:")
	for _, k := range scenario.SortedKeys(resp.KPIs) {
		fmt.Fprintf(w, "  %s: %s\n", k, formatNumber(resp.KPIs[k]))
	}
	fmt.Fprintln(w, "Diagnostics:")
	for _, k := range scenario.SortedKeys(resp.Diagnostics) {
		fmt.Fprintf(w, "  %s: %s\n", k, formatNumber(resp.Diagnostics[k]))
	}
	if len(resp.Notes) > 0 {
		fmt.Fprintln(w, "Notes:")
		for _, n := range resp.Notes {
			fmt.Fprintf(w, " - %s\n", n)
		}
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
