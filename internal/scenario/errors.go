package scenario

import (
	"errors"
	"fmt"
	"strconv"
)

// ValidationKind classifies a rejected input.
type ValidationKind int

const (
	OutOfRange ValidationKind = iota
	InvalidEnum
	InvalidNumber
)

func (k ValidationKind) String() string {
	switch k {
	case OutOfRange:
		return "OutOfRange"
	case InvalidEnum:
		return "InvalidEnum"
	case InvalidNumber:
		return "InvalidNumber"
	default:
		return "Unknown"
	}
}

// Field names as they appear on the wire.
const (
	FieldPI         = "PI"
	FieldCI         = "CI"
	FieldWeeks      = "D_weeks"
	FieldPopulation = "population_m"
	FieldBudget     = "budget_musd"
	FieldSeed       = "seed"
	FieldDemand     = "demand_cal_per_cap_day"
)

// ValidationError is a local, pre-flight rejection. It is never sent to the
// service and never retried.
type ValidationError struct {
	Kind  ValidationKind
	Field string
	Value float64
	Text  string // original text when the value could not be parsed
}

func (e *ValidationError) Error() string {
	shown := e.Text
	if shown == "" {
		shown = strconv.FormatFloat(e.Value, 'g', -1, 64)
	}
	switch e.Kind {
	case OutOfRange:
		return fmt.Sprintf("invalid %s: %s is out of range (%s)", e.Field, shown, fieldDomain(e.Field))
	case InvalidEnum:
		return fmt.Sprintf("invalid %s: %s is not one of %s", e.Field, shown, fieldDomain(e.Field))
	default:
		return fmt.Sprintf("invalid %s: %q is not a valid number", e.Field, shown)
	}
}

func fieldDomain(field string) string {
	switch field {
	case FieldPI:
		return "-1..+1"
	case FieldCI:
		return "{0,1,2,3}"
	case FieldWeeks:
		return "1..52"
	case FieldPopulation:
		return "> 0"
	case FieldBudget:
		return ">= 0"
	case FieldDemand:
		return "> 0"
	default:
		return "integer"
	}
}

// IsValidation reports whether err is a ValidationError of the given kind.
func IsValidation(err error, kind ValidationKind) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Kind == kind
}
