package dashboard

import (
	"math"
	"strconv"
	"strings"

	"fwe/cmd/fwe/ui"
	"fwe/internal/scenario"

	"github.com/charmbracelet/bubbles/textinput"
)

type field int

const (
	fieldPI field = iota
	fieldCI
	fieldWeeks
	fieldPopulation
	fieldBudget
	fieldSeed
	fieldDemand
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldPI:         "Posture (PI)",
	fieldCI:         "Conflict (CI)",
	fieldWeeks:      "Weeks",
	fieldPopulation: "Population M",
	fieldBudget:     "Budget $M",
	fieldSeed:       "Seed",
	fieldDemand:     "Demand cal",
}

// stepper describes a field that behaves like a slider under ↑/↓.
type stepper struct {
	step, lo, hi float64
	decimals     int
}

var steppers = map[field]stepper{
	fieldPI:    {step: 0.05, lo: scenario.MinPI, hi: scenario.MaxPI, decimals: 2},
	fieldCI:    {step: 1, lo: 0, hi: scenario.MaxCI, decimals: 0},
	fieldWeeks: {step: 1, lo: scenario.MinWeeks, hi: scenario.MaxWeeks, decimals: 0},
}

func newInputs(styles ui.Styles) []textinput.Model {
	defaults := [fieldCount]string{
		fieldPI:         "0.00",
		fieldCI:         strconv.Itoa(scenario.DefaultCI),
		fieldWeeks:      strconv.Itoa(scenario.DefaultWeeks),
		fieldPopulation: strconv.FormatFloat(scenario.DefaultPopulationM, 'f', -1, 64),
		fieldBudget:     strconv.FormatFloat(scenario.DefaultBudgetMUSD, 'f', -1, 64),
	}
	placeholders := [fieldCount]string{
		fieldSeed:   "random",
		fieldDemand: "model default",
	}

	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = "│ "
		ti.CharLimit = 16
		ti.Width = 16
		ti.SetValue(defaults[i])
		ti.Placeholder = placeholders[i]
		ti.PromptStyle = styles.Muted
		ti.TextStyle = styles.Body
		inputs[i] = ti
	}
	inputs[fieldPI].Focus()
	return inputs
}

// formInput collects the text of every field.
func formInput(inputs []textinput.Model) scenario.FormInput {
	return scenario.FormInput{
		PI:          inputs[fieldPI].Value(),
		CI:          inputs[fieldCI].Value(),
		DWeeks:      inputs[fieldWeeks].Value(),
		PopulationM: inputs[fieldPopulation].Value(),
		BudgetMUSD:  inputs[fieldBudget].Value(),
		Seed:        inputs[fieldSeed].Value(),
		Demand:      inputs[fieldDemand].Value(),
	}
}

// stepValue nudges a slider field by delta steps and reports whether the
// field is a slider. Unparseable text restarts from the low end.
func stepValue(f field, text string, delta int) (string, bool) {
	s, ok := steppers[f]
	if !ok {
		return text, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) {
		v = s.lo
	}
	v += float64(delta) * s.step
	v = math.Max(s.lo, math.Min(s.hi, v))
	if s.decimals > 0 {
		p := math.Pow(10, float64(s.decimals))
		v = math.Round(v*p) / p
	}
	return strconv.FormatFloat(v, 'f', s.decimals, 64), true
}

// fieldHint is the read-out shown next to a field.
func fieldHint(f field, text string) string {
	switch f {
	case fieldPI:
		if v, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return strconv.FormatFloat(v, 'f', 2, 64)
		}
	case fieldCI:
		if v, err := strconv.Atoi(strings.TrimSpace(text)); err == nil && v >= 0 && v <= scenario.MaxCI {
			return scenario.ConflictLabels[v]
		}
	case fieldWeeks:
		if v, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
			return strconv.Itoa(v) + " wk"
		}
	}
	return ""
}
