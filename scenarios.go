package main

import (
	"context"
)

// ModelKind selects which population model a scenario runs on.
type ModelKind string

const (
	ModelODE    ModelKind = "ode"
	ModelMarkov ModelKind = "markov"
)

// ScenarioInput bundles everything a comparison run needs.
type ScenarioInput struct {
	Kind      ModelKind       `json:"model"`
	Schedule  BracketSchedule `json:"schedule"`
	Policy    TaxPolicy       `json:"policy"`
	TopIncome float64         `json:"top_income"`
	Initial   PopulationState `json:"initial"`
	Span      TimeSpan        `json:"span"`
	Params    ModelParams     `json:"params"`
	Points    int             `json:"points"`
}

// simulate runs the selected model over the input.
func simulate(ctx context.Context, in ScenarioInput, schedule BracketSchedule, params ModelParams) (*Trajectory, error) {
	switch in.Kind {
	case ModelMarkov:
		model, err := NewMarkovModel(schedule, in.Policy, in.TopIncome)
		if err != nil {
			return nil, err
		}
		return model.Simulate(ctx, in.Initial, in.Span, params, in.Points)
	case ModelODE, "":
		model, err := NewODEModel(schedule, in.Policy, in.TopIncome)
		if err != nil {
			return nil, err
		}
		return model.Integrate(ctx, in.Initial, in.Span, params, in.Points)
	default:
		return nil, &InvalidInputError{Field: "model", Reason: "unknown model kind"}
	}
}

// ShockScenario compares a baseline run against one with the top marginal
// rate raised by DeltaTau (capped at 60%).
type ShockScenario struct {
	DeltaTau float64     `json:"delta_tau"`
	Baseline *Trajectory `json:"baseline"`
	Shocked  *Trajectory `json:"shocked"`
}

// RunTaxShock runs the baseline and top-rate-shocked variants of the same
// population model.
func RunTaxShock(ctx context.Context, in ScenarioInput, deltaTau float64) (*ShockScenario, error) {
	if deltaTau < 0 {
		return nil, &InvalidInputError{Field: "delta_tau", Reason: "must be non-negative"}
	}

	baseline, err := simulate(ctx, in, in.Schedule, in.Params)
	if err != nil {
		return nil, err
	}
	shocked, err := simulate(ctx, in, ShockedSchedule(in.Schedule, deltaTau), in.Params)
	if err != nil {
		return nil, err
	}

	return &ShockScenario{DeltaTau: deltaTau, Baseline: baseline, Shocked: shocked}, nil
}

// RedistributionScenario compares a baseline run against one where
// redistribution boosts upward mobility by the factor (1+Rho).
type RedistributionScenario struct {
	Rho           float64     `json:"rho"`
	Baseline      *Trajectory `json:"baseline"`
	Redistributed *Trajectory `json:"redistributed"`
}

// RunRedistribution runs the baseline and redistribution variants of the
// same population model.
func RunRedistribution(ctx context.Context, in ScenarioInput, rho float64) (*RedistributionScenario, error) {
	if rho < 0 {
		return nil, &InvalidInputError{Field: "rho", Reason: "must be non-negative"}
	}

	baseline, err := simulate(ctx, in, in.Schedule, in.Params)
	if err != nil {
		return nil, err
	}

	boosted := in.Params
	boosted.MobilityUp *= 1 + rho
	redistributed, err := simulate(ctx, in, in.Schedule, boosted)
	if err != nil {
		return nil, err
	}

	return &RedistributionScenario{Rho: rho, Baseline: baseline, Redistributed: redistributed}, nil
}
