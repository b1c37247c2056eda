// Package diagnostics turns raw KPI and diagnostic values into presentation
// metrics that can be compared on a shared 0–100 axis.
//
// Values are nominally in [0, 100] but are never clamped; pathological input
// produces out-of-range values and division by zero yields +Inf, which
// DisplayValue renders as "—".
package diagnostics

import (
	"math"
	"strconv"

	"fwe/internal/scenario"
)

// Metric labels in display order.
const (
	LabelDelivery    = "Delivery"
	LabelPayments    = "Payments"
	LabelPRCFriction = "PRC Friction"
	LabelInsurance   = "Insurance"
	LabelHedgeOps    = "HedgeOps"
)

// Placeholder is shown for unknown or unbounded values.
const Placeholder = "—"

// Metric is one axis of the operability comparison (higher is better).
type Metric struct {
	Label string
	Value float64
}

// Display returns the metric value formatted for output.
func (m Metric) Display() string { return DisplayValue(m.Value) }

// Normalize derives the five operability metrics from diagnostics. Each rule
// substitutes its own default for a missing key.
//
// Payments defaults M_margin to 0, which yields 125 rather than a value on
// the 0–100 scale. This matches the model dashboard and is kept until the
// model owners confirm the intended default.
func Normalize(diag map[string]float64) []Metric {
	deliv := lookup(diag, scenario.DiagDelivery, 0)
	paymentsMargin := lookup(diag, scenario.DiagMargin, 0)
	prcFric := lookup(diag, scenario.DiagPRCFriction, 1)
	insurance := lookup(diag, scenario.DiagInsurance, 0)
	hedgeMargin := lookup(diag, scenario.DiagMargin, 1)

	return []Metric{
		{Label: LabelDelivery, Value: deliv * 100},
		{Label: LabelPayments, Value: 100 - (paymentsMargin-1)*25},
		{Label: LabelPRCFriction, Value: ratio(100, prcFric)},
		{Label: LabelInsurance, Value: ratio(100, 1+insurance)},
		{Label: LabelHedgeOps, Value: ratio(100, hedgeMargin)},
	}
}

// FormatKpi returns the raw KPI value for key, or fallback when absent. It
// performs no scaling.
func FormatKpi(kpis map[string]float64, key string, fallback float64) float64 {
	if v, ok := kpis[key]; ok {
		return v
	}
	return fallback
}

// DisplayValue formats v with one decimal, or Placeholder when v is not a
// finite number.
func DisplayValue(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return Placeholder
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func lookup(m map[string]float64, key string, def float64) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

// ratio divides with a zero guard: x/0 is +Inf regardless of the sign of
// zero or numerator.
func ratio(num, den float64) float64 {
	if den == 0 {
		return math.Inf(1)
	}
	return num / den
}
