package scenario

import "sort"

// Response is the outcome of one scenario evaluation. Both maps are sparse:
// a missing key means unknown, not zero.
type Response struct {
	KPIs        map[string]float64 `json:"kpis"`
	Diagnostics map[string]float64 `json:"diagnostics"`
	Notes       []string           `json:"notes,omitempty"`
}

// Well-known KPI keys emitted by the FWE model.
const (
	KPIDaysOfSupply   = "days_of_supply_calories"
	KPILogisticsDelay = "mean_logistics_delay_days"
)

// Well-known diagnostic keys emitted by the FWE model.
const (
	DiagDelivery    = "M_deliv"
	DiagMargin      = "M_margin"
	DiagPRCFriction = "M_prc_fric"
	DiagInsurance   = "delta_ins"
)

// KPI looks up a KPI value.
func (r Response) KPI(key string) (float64, bool) {
	v, ok := r.KPIs[key]
	return v, ok
}

// Diagnostic looks up a diagnostic value.
func (r Response) Diagnostic(key string) (float64, bool) {
	v, ok := r.Diagnostics[key]
	return v, ok
}

// SortedKeys returns the keys of m in lexical order so output is stable.
func SortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
