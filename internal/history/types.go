package history

import (
	"errors"
	"time"

	"fwe/internal/scenario"
	"fwe/internal/transport"
)

// Outcome classifies how a recorded run ended.
type Outcome string

const (
	OutcomeSucceeded        Outcome = "succeeded"
	OutcomeTimeout          Outcome = "timeout"
	OutcomeServerRejected   Outcome = "server_rejected"
	OutcomeBadResponseShape Outcome = "bad_response_shape"
	OutcomeUnreachable      Outcome = "unreachable"
	OutcomeCanceled         Outcome = "canceled"
	OutcomeError            Outcome = "error"
)

// ClassifyOutcome maps a run error onto an Outcome.
func ClassifyOutcome(err error) Outcome {
	if err == nil {
		return OutcomeSucceeded
	}
	var te *transport.Error
	if !errors.As(err, &te) {
		return OutcomeError
	}
	switch te.Kind {
	case transport.Timeout:
		return OutcomeTimeout
	case transport.ServerRejected:
		return OutcomeServerRejected
	case transport.BadResponseShape:
		return OutcomeBadResponseShape
	case transport.Unreachable:
		return OutcomeUnreachable
	case transport.Canceled:
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}

// Source names the surface a run came from.
type Source string

const (
	SourceCLI       Source = "cli"
	SourceSweep     Source = "sweep"
	SourceDashboard Source = "dashboard"
	SourceBattery   Source = "battery"
)

// Record is one persisted run.
type Record struct {
	ID          string
	Timestamp   time.Time
	Source      Source
	Endpoint    string
	Request     scenario.Request
	Outcome     Outcome
	Status      int // HTTP status for server_rejected
	Elapsed     time.Duration
	KPIs        map[string]float64
	Diagnostics map[string]float64
	Notes       []string
	Error       string
}

// Stats holds run counters broken down by outcome and source.
type Stats struct {
	Total       int
	ByOutcome   map[Outcome]int
	BySource    map[Source]int
	MeanElapsed time.Duration
}

// SuccessRate returns the fraction of succeeded runs, or 0 when empty.
func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.ByOutcome[OutcomeSucceeded]) / float64(s.Total)
}
