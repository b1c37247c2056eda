// Package scenario defines the request and response contract of the FWE
// scenario evaluation service and the builder that turns raw operator or
// dashboard input into a well-formed Request.
package scenario

import (
	"encoding/json"
	"fmt"
	"math"
)

// Domain bounds and defaults for scenario inputs.
const (
	MinPI     = -1.0
	MaxPI     = 1.0
	MinWeeks  = 1
	MaxWeeks  = 52
	MaxCI     = 3
	DefaultPI = 0.0

	DefaultCI          = 2
	DefaultWeeks       = 12
	DefaultPopulationM = 5.9
	DefaultBudgetMUSD  = 500.0
)

// ConflictLabels names each conflict intensity level.
var ConflictLabels = [MaxCI + 1]string{
	"none",
	"coercive crisis",
	"limited kinetic",
	"major conflict",
}

// Request is a validated scenario request. The zero value is not a valid
// request; build one with Builder.Build.
type Request struct {
	pi          float64
	ci          int
	weeks       int
	populationM float64
	budgetMUSD  float64
	seed        *int64
	demand      *int
}

// PI returns the posture index in [-1, 1].
func (r Request) PI() float64 { return r.pi }

// CI returns the conflict intensity in {0,1,2,3}.
func (r Request) CI() int { return r.ci }

// DWeeks returns the scenario duration in weeks.
func (r Request) DWeeks() int { return r.weeks }

// PopulationM returns the population in millions.
func (r Request) PopulationM() float64 { return r.populationM }

// BudgetMUSD returns the procurement budget in millions of USD.
func (r Request) BudgetMUSD() float64 { return r.budgetMUSD }

// Seed returns the deterministic-run hint, if any.
func (r Request) Seed() (int64, bool) {
	if r.seed == nil {
		return 0, false
	}
	return *r.seed, true
}

// DemandCalPerCapDay returns the per-capita calorie demand override, if any.
func (r Request) DemandCalPerCapDay() (int, bool) {
	if r.demand == nil {
		return 0, false
	}
	return *r.demand, true
}

// Equal reports whether two requests carry the same fields.
func (r Request) Equal(o Request) bool {
	if r.pi != o.pi || r.ci != o.ci || r.weeks != o.weeks ||
		r.populationM != o.populationM || r.budgetMUSD != o.budgetMUSD {
		return false
	}
	if (r.seed == nil) != (o.seed == nil) || (r.seed != nil && *r.seed != *o.seed) {
		return false
	}
	if (r.demand == nil) != (o.demand == nil) || (r.demand != nil && *r.demand != *o.demand) {
		return false
	}
	return true
}

// String renders the request for logs and history listings.
func (r Request) String() string {
	s := fmt.Sprintf("PI=%.2f CI=%d weeks=%d pop=%.1fM budget=$%.0fM", r.pi, r.ci, r.weeks, r.populationM, r.budgetMUSD)
	if r.seed != nil {
		s += fmt.Sprintf(" seed=%d", *r.seed)
	}
	if r.demand != nil {
		s += fmt.Sprintf(" demand=%d", *r.demand)
	}
	return s
}

// wireRequest is the JSON body of POST /run-scenario. Optional fields are
// pointers so absent values are omitted rather than sent as null.
type wireRequest struct {
	PI          float64  `json:"PI"`
	CI          int      `json:"CI"`
	DWeeks      int      `json:"D_weeks"`
	Demand      *int     `json:"demand_cal_per_cap_day,omitempty"`
	PopulationM *float64 `json:"population_m,omitempty"`
	BudgetMUSD  *float64 `json:"budget_musd,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
}

// MarshalJSON encodes the request in the service wire format.
func (r Request) MarshalJSON() ([]byte, error) {
	pop, budget := r.populationM, r.budgetMUSD
	return json.Marshal(wireRequest{
		PI:          r.pi,
		CI:          r.ci,
		DWeeks:      r.weeks,
		Demand:      r.demand,
		PopulationM: &pop,
		BudgetMUSD:  &budget,
		Seed:        r.seed,
	})
}

// DecodeRequest parses a wire-format body and validates it strictly, the way
// a conforming service would.
func DecodeRequest(data []byte) (Request, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	raw := RawInput{
		PI:                 w.PI,
		CI:                 w.CI,
		DWeeks:             w.DWeeks,
		PopulationM:        w.PopulationM,
		BudgetMUSD:         w.BudgetMUSD,
		Seed:               w.Seed,
		DemandCalPerCapDay: w.Demand,
	}
	return NewBuilder(PolicyStrict).Build(raw)
}

// Policy selects how the builder treats out-of-range posture and duration.
type Policy int

const (
	// PolicyStrict rejects every out-of-domain value. Used by the CLI where
	// input is operator-authored.
	PolicyStrict Policy = iota
	// PolicyClamp pulls PI and D_weeks back into range, matching the bounded
	// sliders of the dashboard. Everything else is still rejected.
	PolicyClamp
)

func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyClamp:
		return "clamp"
	default:
		return "unknown"
	}
}

// RawInput is unvalidated scenario input. Nil optional fields take the
// service defaults.
type RawInput struct {
	PI                 float64
	CI                 int
	DWeeks             int
	PopulationM        *float64
	BudgetMUSD         *float64
	Seed               *int64
	DemandCalPerCapDay *int
}

// Builder validates RawInput into a Request.
type Builder struct {
	policy Policy
}

// NewBuilder returns a builder applying the given policy.
func NewBuilder(policy Policy) Builder {
	return Builder{policy: policy}
}

// Policy returns the builder's range policy.
func (b Builder) Policy() Policy { return b.policy }

// Build validates raw and returns the request or a *ValidationError.
func (b Builder) Build(raw RawInput) (Request, error) {
	req := Request{
		ci:          raw.CI,
		populationM: DefaultPopulationM,
		budgetMUSD:  DefaultBudgetMUSD,
	}

	pi, err := b.posture(raw.PI)
	if err != nil {
		return Request{}, err
	}
	req.pi = pi

	if raw.CI < 0 || raw.CI > MaxCI {
		return Request{}, &ValidationError{Kind: InvalidEnum, Field: FieldCI, Value: float64(raw.CI)}
	}

	weeks, err := b.duration(raw.DWeeks)
	if err != nil {
		return Request{}, err
	}
	req.weeks = weeks

	if raw.PopulationM != nil {
		p := *raw.PopulationM
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return Request{}, &ValidationError{Kind: OutOfRange, Field: FieldPopulation, Value: p}
		}
		req.populationM = p
	}

	if raw.BudgetMUSD != nil {
		v := *raw.BudgetMUSD
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return Request{}, &ValidationError{Kind: OutOfRange, Field: FieldBudget, Value: v}
		}
		req.budgetMUSD = v
	}

	if raw.Seed != nil {
		seed := *raw.Seed
		req.seed = &seed
	}

	if raw.DemandCalPerCapDay != nil {
		d := *raw.DemandCalPerCapDay
		if d <= 0 {
			return Request{}, &ValidationError{Kind: OutOfRange, Field: FieldDemand, Value: float64(d)}
		}
		req.demand = &d
	}

	return req, nil
}

func (b Builder) posture(pi float64) (float64, error) {
	if pi >= MinPI && pi <= MaxPI {
		return pi, nil
	}
	if b.policy == PolicyClamp && !math.IsNaN(pi) {
		return math.Max(MinPI, math.Min(MaxPI, pi)), nil
	}
	return 0, &ValidationError{Kind: OutOfRange, Field: FieldPI, Value: pi}
}

func (b Builder) duration(weeks int) (int, error) {
	if weeks >= MinWeeks && weeks <= MaxWeeks {
		return weeks, nil
	}
	if b.policy == PolicyClamp {
		return max(MinWeeks, min(MaxWeeks, weeks)), nil
	}
	return 0, &ValidationError{Kind: OutOfRange, Field: FieldWeeks, Value: float64(weeks)}
}
