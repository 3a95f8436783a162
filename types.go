package main

import (
	"errors"
	"fmt"
)

// NumBrackets is the number of income brackets tracked by the population
// models, matching the five brackets of the progressive schedule.
const NumBrackets = 5

// InvalidInputError reports an input rejected before any computation:
// negative income, too few parts, malformed schedules. The failed call
// produces no partial result.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func isInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

// NumericalInstabilityError reports an integrator that could not reach the
// configured tolerance within its step budget. Fatal for the call; the
// caller must retry with adjusted parameters.
type NumericalInstabilityError struct {
	Op     string
	Time   float64
	Detail string
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("%s unstable at t=%.4f: %s", e.Op, e.Time, e.Detail)
}

// WarningKind classifies non-fatal conditions attached to otherwise valid
// results.
type WarningKind int

const (
	// WarnConservation: total population drifted beyond tolerance during
	// an ODE run.
	WarnConservation WarningKind = iota
	// WarnNonErgodic: the generator matrix has no unique stationary
	// distribution; the reported one is an iterative estimate.
	WarnNonErgodic
)

func (k WarningKind) String() string {
	switch k {
	case WarnConservation:
		return "conservation violation"
	case WarnNonErgodic:
		return "non-ergodic chain"
	default:
		return "unknown"
	}
}

// Warning accompanies a valid result. The core never logs; hosts decide
// how to surface these.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Detail string      `json:"detail"`
}

func (w Warning) String() string {
	return w.Kind.String() + ": " + w.Detail
}

// ModelParams are the economic parameters shared by the ODE and Markov
// population models.
type ModelParams struct {
	Growth       float64 `yaml:"growth" json:"growth"`               // real economic growth g
	Inflation    float64 `yaml:"inflation" json:"inflation"`         // inflation pi
	MobilityUp   float64 `yaml:"mobility_up" json:"mobility_up"`     // upward mobility alpha
	MobilityDown float64 `yaml:"mobility_down" json:"mobility_down"` // downward mobility beta
	TaxShock     float64 `yaml:"tax_shock" json:"tax_shock"`         // shock term tau, damps upward drift
}

// Validate rejects parameter sets the rate equations are not defined for.
func (p ModelParams) Validate() error {
	if p.MobilityUp < 0 {
		return &InvalidInputError{Field: "mobility_up", Reason: "must be non-negative"}
	}
	if p.MobilityDown < 0 {
		return &InvalidInputError{Field: "mobility_down", Reason: "must be non-negative"}
	}
	if p.TaxShock < 0 {
		return &InvalidInputError{Field: "tax_shock", Reason: "must be non-negative"}
	}
	return nil
}

// TimeSpan is a closed integration interval.
type TimeSpan struct {
	Start float64 `yaml:"start" json:"start"`
	End   float64 `yaml:"end" json:"end"`
}

func (s TimeSpan) Validate() error {
	if s.End <= s.Start {
		return &InvalidInputError{Field: "time_span", Reason: "end must be after start"}
	}
	return nil
}

// PopulationState is the population count per bracket at one instant.
type PopulationState []float64

// Total returns the summed population across brackets.
func (s PopulationState) Total() float64 {
	var total float64
	for _, n := range s {
		total += n
	}
	return total
}

// Proportions returns the state normalized to sum to 1 (zeros if empty).
func (s PopulationState) Proportions() PopulationState {
	total := s.Total()
	out := make(PopulationState, len(s))
	if total <= 0 {
		return out
	}
	for i, n := range s {
		out[i] = n / total
	}
	return out
}

// Clone returns an independent copy of the state.
func (s PopulationState) Clone() PopulationState {
	out := make(PopulationState, len(s))
	copy(out, s)
	return out
}

// ValidateInitialState checks a model's starting distribution.
func ValidateInitialState(state PopulationState) error {
	if len(state) != NumBrackets {
		return &InvalidInputError{Field: "initial_state", Reason: fmt.Sprintf("expected %d brackets", NumBrackets)}
	}
	total := 0.0
	for _, n := range state {
		if n < 0 {
			return &InvalidInputError{Field: "initial_state", Reason: "negative population count"}
		}
		total += n
	}
	if total <= 0 {
		return &InvalidInputError{Field: "initial_state", Reason: "total population must be positive"}
	}
	return nil
}

// Trajectory is the time series produced by a population model run.
// States[k] is the population vector at Times[k]. Warnings carry non-fatal
// conditions detected during the run.
type Trajectory struct {
	Times      []float64         `json:"times"`
	States     []PopulationState `json:"states"`
	Indicators []IndicatorPoint  `json:"indicators,omitempty"`
	Warnings   []Warning         `json:"warnings,omitempty"`
}

// Final returns the last state of the trajectory.
func (tr *Trajectory) Final() PopulationState {
	if len(tr.States) == 0 {
		return nil
	}
	return tr.States[len(tr.States)-1]
}

// IndicatorPoint holds the derived economic indicators at one checkpoint.
type IndicatorPoint struct {
	Time            float64 `json:"time"`
	TotalPopulation float64 `json:"total_population"`
	MeanIncome      float64 `json:"mean_income"`
	FiscalReceipts  float64 `json:"fiscal_receipts"`
	UpwardMobility  float64 `json:"upward_mobility"`
	TopBracketShare float64 `json:"top_bracket_share"`
	Gini            float64 `json:"gini"`
}

// IncomeBand is a population bracket's income range, derived from the
// schedule thresholds with the top band closed at a configured ceiling.
type IncomeBand struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Mean returns the band midpoint, the representative income of the band.
func (b IncomeBand) Mean() float64 {
	return (b.Lower + b.Upper) / 2
}

// IncomeBands derives the population model's income bands from a tax
// schedule: one band per bracket, the unbounded top bracket closed at
// topIncome so it has a finite representative income.
func IncomeBands(schedule BracketSchedule, topIncome float64) []IncomeBand {
	bands := make([]IncomeBand, len(schedule))
	for i, b := range schedule {
		upper := b.Upper
		if i == len(schedule)-1 {
			upper = topIncome
		}
		bands[i] = IncomeBand{Lower: b.Lower, Upper: upper}
	}
	return bands
}
