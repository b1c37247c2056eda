package diagnostics

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricValue(t *testing.T, metrics []Metric, label string) float64 {
	t.Helper()
	for _, m := range metrics {
		if m.Label == label {
			return m.Value
		}
	}
	t.Fatalf("metric %q not found", label)
	return 0
}

func TestNormalize_OrderAndLabels(t *testing.T) {
	got := Normalize(nil)
	labels := make([]string, len(got))
	for i, m := range got {
		labels[i] = m.Label
	}
	assert.Equal(t, []string{LabelDelivery, LabelPayments, LabelPRCFriction, LabelInsurance, LabelHedgeOps}, labels)
}

func TestNormalize_Delivery(t *testing.T) {
	got := Normalize(map[string]float64{"M_deliv": 0.8})
	assert.InDelta(t, 80, metricValue(t, got, LabelDelivery), 1e-9)
}

func TestNormalize_Defaults(t *testing.T) {
	got := Normalize(map[string]float64{})
	want := []Metric{
		{LabelDelivery, 0},
		{LabelPayments, 125}, // M_margin defaults to 0 here, off the 0–100 scale
		{LabelPRCFriction, 100},
		{LabelInsurance, 100},
		{LabelHedgeOps, 100},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_ModelOutput(t *testing.T) {
	diag := map[string]float64{
		"M_deliv":    0.62,
		"M_margin":   1.8,
		"M_prc_fric": 1.16,
		"delta_ins":  0.45,
	}
	want := []Metric{
		{LabelDelivery, 62},
		{LabelPayments, 80},
		{LabelPRCFriction, 100 / 1.16},
		{LabelInsurance, 100 / 1.45},
		{LabelHedgeOps, 100 / 1.8},
	}
	if diff := cmp.Diff(want, Normalize(diag), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_NoClamping(t *testing.T) {
	got := Normalize(map[string]float64{"M_deliv": 1.7, "M_margin": 9})
	assert.InDelta(t, 170, metricValue(t, got, LabelDelivery), 1e-9)
	assert.InDelta(t, -100, metricValue(t, got, LabelPayments), 1e-9)
}

func TestNormalize_ZeroDivision(t *testing.T) {
	got := Normalize(map[string]float64{"M_prc_fric": 0, "M_margin": 0, "delta_ins": -1})

	for _, label := range []string{LabelPRCFriction, LabelHedgeOps, LabelInsurance} {
		v := metricValue(t, got, label)
		assert.True(t, math.IsInf(v, 1), "%s = %v", label, v)
	}
	for _, m := range got {
		if m.Label == LabelHedgeOps {
			assert.Equal(t, Placeholder, m.Display())
		}
	}
	// Payments with an explicit zero margin is finite.
	assert.InDelta(t, 125, metricValue(t, got, LabelPayments), 1e-9)
}

func TestFormatKpi(t *testing.T) {
	kpis := map[string]float64{"days_of_supply_calories": 12.4}
	assert.Equal(t, 12.4, FormatKpi(kpis, "days_of_supply_calories", 0))
	assert.Equal(t, 0.0, FormatKpi(kpis, "mean_logistics_delay_days", 0))
	assert.Equal(t, -1.0, FormatKpi(kpis, "missing", -1))
	assert.Equal(t, 0.0, FormatKpi(nil, "days_of_supply_calories", 0))
}

func TestDisplayValue(t *testing.T) {
	assert.Equal(t, "80.0", DisplayValue(80))
	assert.Equal(t, "86.2", DisplayValue(86.2069))
	assert.Equal(t, Placeholder, DisplayValue(math.Inf(1)))
	assert.Equal(t, Placeholder, DisplayValue(math.NaN()))
}

func TestKPIBars(t *testing.T) {
	bars := KPIBars(map[string]float64{"mean_logistics_delay_days": 9.5})
	require.Len(t, bars, 2)
	assert.Equal(t, Bar{Name: "Days of Supply (cal)", Value: 0}, bars[0])
	assert.Equal(t, Bar{Name: "Logistics Delay (d)", Value: 9.5}, bars[1])
}

func TestStats(t *testing.T) {
	stats := Stats(
		map[string]float64{"days_of_supply_calories": 10.04},
		map[string]float64{"M_deliv": 0.9, "delta_ins": 0.25, "M_prc_fric": 1.2},
	)
	require.Len(t, stats, 6)

	got := map[string]string{}
	for _, s := range stats {
		got[s.Title] = s.Display
	}
	assert.Equal(t, "90.0%", got["Delivery Reliability (M_deliv)"])
	assert.Equal(t, "+25%", got["Insurance Uplift (Δins)"])
	assert.Equal(t, "1.20×", got["PRC Friction (×)"])
	assert.Equal(t, Placeholder, got["Margin Multiplier"])
	assert.Equal(t, "10.0", got["Days of Supply"])
	assert.Equal(t, Placeholder, got["Logistics Delay (d)"])

	for _, s := range Stats(nil, nil) {
		assert.False(t, s.Known)
		assert.Equal(t, Placeholder, s.Display)
	}
}
