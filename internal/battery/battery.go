// Package battery runs YAML-defined scenario suites against the model
// service and checks each result against expected bounds. Batteries are run
// manually or from CI to catch model regressions.
package battery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fwe/internal/diagnostics"
	"fwe/internal/run"
	"fwe/internal/scenario"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Battery is a collection of scenario cases.
type Battery struct {
	Version   int    `yaml:"version"`
	Scenarios []Case `yaml:"scenarios"`
}

// Case is a single scenario with the bounds its result must satisfy.
type Case struct {
	ID          string        `yaml:"id"`
	PI          float64       `yaml:"pi"`
	CI          int           `yaml:"ci"`
	Weeks       int           `yaml:"weeks"`
	PopulationM *float64      `yaml:"population_m,omitempty"`
	BudgetMUSD  *float64      `yaml:"budget_musd,omitempty"`
	Seed        *int64        `yaml:"seed,omitempty"`
	Demand      *int          `yaml:"demand,omitempty"`
	Expect      []Expectation `yaml:"expect,omitempty"`
}

// Expectation bounds one value of the result. Key is a KPI key, a
// diagnostic key or an operability metric label, looked up in that order.
type Expectation struct {
	Key string   `yaml:"key"`
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`
}

// Result captures the outcome of one case.
type Result struct {
	CaseID   string
	Success  bool
	Outcome  run.Outcome
	Failures []string
	Duration time.Duration
}

// Options configures RunBattery.
type Options struct {
	// FailFast stops after the first failing case.
	FailFast bool
	Logger   *zap.Logger
}

// LoadBattery reads a YAML battery file from disk.
func LoadBattery(path string) (*Battery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Battery
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse battery YAML: %w", err)
	}
	return &b, nil
}

// DefaultBatteryPath returns the canonical battery path for a workspace.
func DefaultBatteryPath(workspace string) string {
	return filepath.Join(workspace, ".fwe", "battery.yaml")
}

// Requests validates every case under the strict policy and returns the
// requests in case order. Nothing is sent if any case is invalid.
func (b *Battery) Requests() ([]scenario.Request, error) {
	builder := scenario.NewBuilder(scenario.PolicyStrict)
	seen := make(map[string]bool, len(b.Scenarios))
	reqs := make([]scenario.Request, 0, len(b.Scenarios))

	for i, c := range b.Scenarios {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("scenario %d: missing id", i+1)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("scenario %q: duplicate id", c.ID)
		}
		seen[c.ID] = true

		for _, e := range c.Expect {
			if e.Key == "" {
				return nil, fmt.Errorf("scenario %q: expectation without key", c.ID)
			}
			if e.Min == nil && e.Max == nil {
				return nil, fmt.Errorf("scenario %q: expectation %q has no bounds", c.ID, e.Key)
			}
		}

		req, err := builder.Build(c.raw())
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", c.ID, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func (c Case) raw() scenario.RawInput {
	return scenario.RawInput{
		PI:                 c.PI,
		CI:                 c.CI,
		DWeeks:             c.Weeks,
		PopulationM:        c.PopulationM,
		BudgetMUSD:         c.BudgetMUSD,
		Seed:               c.Seed,
		DemandCalPerCapDay: c.Demand,
	}
}

// RunBattery executes all cases in order, one controller per case. It
// returns an error only when the battery itself is invalid; failing cases
// are reported through their Result.
func RunBattery(ctx context.Context, b *Battery, sender run.Sender, opts Options) ([]Result, error) {
	if b == nil || len(b.Scenarios) == 0 {
		return nil, errors.New("battery has no scenarios")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reqs, err := b.Requests()
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(reqs))
	for i, req := range reqs {
		c := b.Scenarios[i]
		start := time.Now()

		ctrl := run.New(sender, run.WithLogger(logger))
		o, runErr := ctrl.RunOnce(ctx, req)

		res := Result{CaseID: c.ID, Outcome: o}
		if runErr != nil {
			res.Failures = []string{runErr.Error()}
		} else {
			res.Failures = Check(o.Response, c.Expect)
		}
		res.Success = len(res.Failures) == 0
		res.Duration = time.Since(start)
		results = append(results, res)

		logger.Debug("battery case finished",
			zap.String("id", c.ID),
			zap.Bool("success", res.Success),
			zap.Duration("duration", res.Duration))

		if !res.Success && opts.FailFast {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	return results, nil
}

// Check returns one message per expectation resp does not meet.
func Check(resp scenario.Response, expect []Expectation) []string {
	var failures []string
	for _, e := range expect {
		v, ok := lookup(resp, e.Key)
		if !ok {
			failures = append(failures, fmt.Sprintf("%s: missing from result", e.Key))
			continue
		}
		if e.Min != nil && !(v >= *e.Min) {
			failures = append(failures, fmt.Sprintf("%s = %s, want >= %g", e.Key, diagnostics.DisplayValue(v), *e.Min))
		}
		if e.Max != nil && !(v <= *e.Max) {
			failures = append(failures, fmt.Sprintf("%s = %s, want <= %g", e.Key, diagnostics.DisplayValue(v), *e.Max))
		}
	}
	return failures
}

func lookup(resp scenario.Response, key string) (float64, bool) {
	if v, ok := resp.KPI(key); ok {
		return v, true
	}
	if v, ok := resp.Diagnostic(key); ok {
		return v, true
	}
	for _, m := range diagnostics.Normalize(resp.Diagnostics) {
		if m.Label == key {
			return m.Value, true
		}
	}
	return 0, false
}

// Summary counts passed and failed cases.
func Summary(results []Result) (passed, failed int) {
	for _, r := range results {
		if r.Success {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}
