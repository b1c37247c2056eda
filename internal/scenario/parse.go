package scenario

import (
	"strconv"
	"strings"
)

// FormInput is scenario input as typed into text fields. Empty optional
// fields are treated as absent.
type FormInput struct {
	PI          string
	CI          string
	DWeeks      string
	PopulationM string
	BudgetMUSD  string
	Seed        string
	Demand      string
}

// ParseForm converts text fields into RawInput, reporting InvalidNumber for
// text that does not parse.
func ParseForm(f FormInput) (RawInput, error) {
	var raw RawInput
	var err error

	if raw.PI, err = parseFloat(FieldPI, f.PI); err != nil {
		return RawInput{}, err
	}
	if raw.CI, err = parseInt(FieldCI, f.CI); err != nil {
		return RawInput{}, err
	}
	if raw.DWeeks, err = parseInt(FieldWeeks, f.DWeeks); err != nil {
		return RawInput{}, err
	}
	if raw.PopulationM, err = optionalFloat(FieldPopulation, f.PopulationM); err != nil {
		return RawInput{}, err
	}
	if raw.BudgetMUSD, err = optionalFloat(FieldBudget, f.BudgetMUSD); err != nil {
		return RawInput{}, err
	}
	if s := strings.TrimSpace(f.Seed); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return RawInput{}, &ValidationError{Kind: InvalidNumber, Field: FieldSeed, Text: f.Seed}
		}
		raw.Seed = &seed
	}
	if s := strings.TrimSpace(f.Demand); s != "" {
		d, err := parseInt(FieldDemand, s)
		if err != nil {
			return RawInput{}, err
		}
		raw.DemandCalPerCapDay = &d
	}
	return raw, nil
}

func parseFloat(field, text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, &ValidationError{Kind: InvalidNumber, Field: field, Text: text}
	}
	return v, nil
}

func parseInt(field, text string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, &ValidationError{Kind: InvalidNumber, Field: field, Text: text}
	}
	return v, nil
}

func optionalFloat(field, text string) (*float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	v, err := parseFloat(field, text)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
