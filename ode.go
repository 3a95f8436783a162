package main

import (
	"context"
	"fmt"
	"math"
)

// ConservationTolerance is the relative total-population drift beyond
// which an ODE run is flagged with a ConservationViolationWarning.
const ConservationTolerance = 1e-3

// DefaultTopIncome closes the unbounded top bracket for the population
// models, giving it a finite representative income.
const DefaultTopIncome = 300000

// ODEModel evolves the bracket population distribution as a coupled system
// of rate equations. Every term of the right-hand side is a flow between
// two brackets proportional to the source bracket's population, so the
// total population is conserved exactly and empty brackets have no
// outflow.
type ODEModel struct {
	Schedule BracketSchedule
	Policy   TaxPolicy
	Bands    []IncomeBand
	Settings SolverSettings

	effort []float64 // fiscal effort rate per band, precomputed
}

// NewODEModel builds an ODE model over the bands derived from the
// schedule, with the top bracket closed at topIncome (DefaultTopIncome
// when 0).
func NewODEModel(schedule BracketSchedule, policy TaxPolicy, topIncome float64) (*ODEModel, error) {
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	if len(schedule) != NumBrackets {
		return nil, &InvalidInputError{Field: "schedule", Reason: fmt.Sprintf("population models need %d brackets", NumBrackets)}
	}
	if topIncome <= 0 {
		topIncome = DefaultTopIncome
	}

	m := &ODEModel{
		Schedule: schedule,
		Policy:   policy,
		Bands:    IncomeBands(schedule, topIncome),
		Settings: DefaultSolverSettings(),
	}
	m.effort = make([]float64, len(m.Bands))
	for i, band := range m.Bands {
		m.effort[i] = fiscalEffort(band.Mean(), schedule, policy)
	}
	return m, nil
}

// fiscalEffort is the net tax burden relative to income for a single-part
// household at the band's representative income, with décote and
// plafonnement applied.
func fiscalEffort(income float64, schedule BracketSchedule, policy TaxPolicy) float64 {
	if income <= 0 {
		return 0
	}
	result, err := ComputeTax(Household{Income: income, Parts: 1, ApplyRebate: true, ApplyCap: true}, schedule, policy)
	if err != nil {
		return 0
	}
	return result.NetTax / income
}

// mobilityRate is the pairwise transition intensity between two bands,
// saturating in the income ratio: alpha scales upward moves, beta downward.
func mobilityRate(incomeFrom, incomeTo, alpha, beta float64) float64 {
	if incomeFrom <= 0 || incomeTo <= 0 {
		return 0
	}
	if incomeTo > incomeFrom {
		ratio := incomeTo / incomeFrom
		return alpha * (1 - math.Exp(-ratio+1))
	}
	if incomeTo < incomeFrom {
		ratio := incomeFrom / incomeTo
		return beta * (1 - math.Exp(-ratio+1))
	}
	return 0
}

// rateFunc builds the right-hand side dN/dt for fixed parameters.
//
// Two kinds of flow:
//   - pairwise mobility between bands, with the tax shock tau damping
//     upward moves and amplifying downward ones;
//   - a growth drift g+pi-0.1*effort-tau expressed as a flow toward the
//     adjacent band (upward when positive, downward when negative), never
//     a source term, so sum(dN/dt) = 0 at every instant.
func (m *ODEModel) rateFunc(params ModelParams) RateFunc {
	n := len(m.Bands)
	means := make([]float64, n)
	for i, band := range m.Bands {
		means[i] = band.Mean()
	}
	upScale := 1 / (1 + params.TaxShock)
	downScale := 1 + params.TaxShock

	return func(t float64, y []float64) []float64 {
		dydt := make([]float64, n)
		for i := 0; i < n; i++ {
			if y[i] == 0 {
				continue
			}
			// Pairwise mobility flows out of band i.
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				rate := mobilityRate(means[i], means[j], params.MobilityUp, params.MobilityDown)
				if j > i {
					rate *= upScale
				} else {
					rate *= downScale
				}
				flow := rate * y[i]
				dydt[i] -= flow
				dydt[j] += flow
			}

			// Growth drift toward the adjacent band.
			drift := params.Growth + params.Inflation - 0.1*m.effort[i] - params.TaxShock
			if drift > 0 && i < n-1 {
				flow := drift * y[i]
				dydt[i] -= flow
				dydt[i+1] += flow
			} else if drift < 0 && i > 0 {
				flow := -drift * y[i]
				dydt[i] -= flow
				dydt[i-1] += flow
			}
		}
		return dydt
	}
}

// Integrate evolves the initial distribution over the span, sampling
// numPoints evenly spaced checkpoints (100 when numPoints < 2). The
// returned trajectory carries indicators per checkpoint and a
// conservation warning if total population drifted beyond tolerance.
func (m *ODEModel) Integrate(ctx context.Context, initial PopulationState, span TimeSpan, params ModelParams, numPoints int) (*Trajectory, error) {
	if err := ValidateInitialState(initial); err != nil {
		return nil, err
	}
	if err := span.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if numPoints < 2 {
		numPoints = 100
	}

	checkpoints := linspace(span.Start, span.End, numPoints)
	states, err := IntegrateRK45(ctx, m.rateFunc(params), initial, checkpoints, m.Settings)
	if err != nil {
		return nil, err
	}

	traj := &Trajectory{Times: checkpoints, States: make([]PopulationState, len(states))}
	for i, s := range states {
		traj.States[i] = PopulationState(s)
	}
	traj.Indicators = ComputeIndicators(traj, m.Bands, m.Schedule, m.Policy, params)

	traj.Warnings = append(traj.Warnings, conservationWarnings(traj, initial.Total())...)

	return traj, nil
}

// conservationWarnings flags the first checkpoint where total population
// drifted from initialTotal by more than ConservationTolerance.
func conservationWarnings(traj *Trajectory, initialTotal float64) []Warning {
	for i, state := range traj.States {
		drift := math.Abs(state.Total()-initialTotal) / initialTotal
		if drift > ConservationTolerance {
			return []Warning{{
				Kind:   WarnConservation,
				Detail: fmt.Sprintf("population drifted %.4f%% at t=%.2f", drift*100, traj.Times[i]),
			}}
		}
	}
	return nil
}

// linspace returns n evenly spaced values from start to end inclusive.
func linspace(start, end float64, n int) []float64 {
	out := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	out[n-1] = end
	return out
}
