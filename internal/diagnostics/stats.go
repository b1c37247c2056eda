package diagnostics

import (
	"fmt"

	"fwe/internal/scenario"
)

// Bar is one KPI bar. Missing KPIs are plotted as zero.
type Bar struct {
	Name  string
	Value float64
}

// KPIBars returns the headline KPI bars.
func KPIBars(kpis map[string]float64) []Bar {
	return []Bar{
		{Name: "Days of Supply (cal)", Value: FormatKpi(kpis, scenario.KPIDaysOfSupply, 0)},
		{Name: "Logistics Delay (d)", Value: FormatKpi(kpis, scenario.KPILogisticsDelay, 0)},
	}
}

// Stat is a headline figure. Unlike bars, a missing value is shown as
// Placeholder rather than zero.
type Stat struct {
	Title   string
	Display string
	Known   bool
}

type statRule struct {
	title  string
	source func(kpis, diag map[string]float64) (float64, bool)
	format func(float64) string
}

func fromDiag(key string) func(_, diag map[string]float64) (float64, bool) {
	return func(_, diag map[string]float64) (float64, bool) {
		v, ok := diag[key]
		return v, ok
	}
}

func fromKPI(key string) func(kpis, _ map[string]float64) (float64, bool) {
	return func(kpis, _ map[string]float64) (float64, bool) {
		v, ok := kpis[key]
		return v, ok
	}
}

var statRules = []statRule{
	{"Delivery Reliability (M_deliv)", fromDiag(scenario.DiagDelivery), func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) }},
	{"Insurance Uplift (Δins)", fromDiag(scenario.DiagInsurance), func(v float64) string { return fmt.Sprintf("+%.0f%%", v*100) }},
	{"PRC Friction (×)", fromDiag(scenario.DiagPRCFriction), func(v float64) string { return fmt.Sprintf("%.2f×", v) }},
	{"Margin Multiplier", fromDiag(scenario.DiagMargin), func(v float64) string { return fmt.Sprintf("%.2f×", v) }},
	{"Days of Supply", fromKPI(scenario.KPIDaysOfSupply), func(v float64) string { return fmt.Sprintf("%.1f", v) }},
	{"Logistics Delay (d)", fromKPI(scenario.KPILogisticsDelay), func(v float64) string { return fmt.Sprintf("%.1f", v) }},
}

// Stats returns the six headline figures of a run. Either map may be nil.
func Stats(kpis, diag map[string]float64) []Stat {
	out := make([]Stat, 0, len(statRules))
	for _, r := range statRules {
		v, ok := r.source(kpis, diag)
		s := Stat{Title: r.title, Display: Placeholder, Known: ok}
		if ok {
			s.Display = r.format(v)
		}
		out = append(out, s)
	}
	return out
}
