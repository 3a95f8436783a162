package main

import (
	"context"
	"math"
)

// RateFunc is the right-hand side of a first-order ODE system y' = f(t, y).
type RateFunc func(t float64, y []float64) []float64

// SolverSettings control the adaptive integrator.
type SolverSettings struct {
	RelTol   float64 `yaml:"rtol" json:"rtol"`
	AbsTol   float64 `yaml:"atol" json:"atol"`
	MaxSteps int     `yaml:"max_steps" json:"max_steps"`
}

// DefaultSolverSettings match the tolerances the model was validated with.
func DefaultSolverSettings() SolverSettings {
	return SolverSettings{RelTol: 1e-6, AbsTol: 1e-8, MaxSteps: 100000}
}

// Dormand-Prince 5(4) coefficients. The first b row is the 5th-order
// solution, bAlt the embedded 4th-order one used for error estimation.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	dpB    = [7]float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84, 0}
	dpBAlt = [7]float64{5179.0 / 57600, 0, 7571.0 / 16695, 393.0 / 640, -92097.0 / 339200, 187.0 / 2100, 1.0 / 40}
)

// IntegrateRK45 integrates y' = f(t, y) from checkpoints[0] through each
// subsequent checkpoint with an adaptive Dormand-Prince 5(4) scheme,
// returning the solution at every checkpoint (including the initial one).
//
// The context is checked between accepted steps; cancellation aborts the
// run with ctx.Err(). Exceeding the step budget or underflowing the step
// size returns a NumericalInstabilityError.
func IntegrateRK45(ctx context.Context, f RateFunc, y0 []float64, checkpoints []float64, settings SolverSettings) ([][]float64, error) {
	if len(checkpoints) < 2 {
		return nil, &InvalidInputError{Field: "checkpoints", Reason: "need at least start and end times"}
	}
	for i := 1; i < len(checkpoints); i++ {
		if checkpoints[i] <= checkpoints[i-1] {
			return nil, &InvalidInputError{Field: "checkpoints", Reason: "times must be strictly increasing"}
		}
	}
	if settings.MaxSteps <= 0 {
		settings.MaxSteps = DefaultSolverSettings().MaxSteps
	}

	n := len(y0)
	span := checkpoints[len(checkpoints)-1] - checkpoints[0]
	minStep := span * 1e-12

	y := make([]float64, n)
	copy(y, y0)
	t := checkpoints[0]

	out := make([][]float64, 0, len(checkpoints))
	record := func(state []float64) {
		saved := make([]float64, n)
		copy(saved, state)
		out = append(out, saved)
	}
	record(y)

	h := span / 100
	steps := 0

	k := make([][]float64, 7)
	yStage := make([]float64, n)
	yNext := make([]float64, n)
	yAlt := make([]float64, n)

	for ci := 1; ci < len(checkpoints); ci++ {
		target := checkpoints[ci]
		for t < target {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if steps >= settings.MaxSteps {
				return nil, &NumericalInstabilityError{Op: "rk45", Time: t, Detail: "step budget exhausted"}
			}
			steps++

			if h > target-t {
				h = target - t
			}
			if h < minStep {
				return nil, &NumericalInstabilityError{Op: "rk45", Time: t, Detail: "step size underflow"}
			}

			// Seven stages of the Dormand-Prince tableau.
			for s := 0; s < 7; s++ {
				copy(yStage, y)
				for j := 0; j < s; j++ {
					if dpA[s][j] == 0 {
						continue
					}
					for i := 0; i < n; i++ {
						yStage[i] += h * dpA[s][j] * k[j][i]
					}
				}
				k[s] = f(t+dpC[s]*h, yStage)
			}

			// 5th-order solution and embedded 4th-order error estimate.
			var errNorm float64
			for i := 0; i < n; i++ {
				var hi, lo float64
				for s := 0; s < 7; s++ {
					hi += dpB[s] * k[s][i]
					lo += dpBAlt[s] * k[s][i]
				}
				yNext[i] = y[i] + h*hi
				yAlt[i] = y[i] + h*lo
				scale := settings.AbsTol + settings.RelTol*math.Max(math.Abs(y[i]), math.Abs(yNext[i]))
				diff := (yNext[i] - yAlt[i]) / scale
				errNorm += diff * diff
			}
			errNorm = math.Sqrt(errNorm / float64(n))

			if errNorm <= 1 {
				t += h
				copy(y, yNext)
			}

			// Standard step controller with safety factor and clamps.
			factor := 5.0
			if errNorm > 0 {
				factor = 0.9 * math.Pow(errNorm, -0.2)
				if factor > 5 {
					factor = 5
				} else if factor < 0.2 {
					factor = 0.2
				}
			}
			h *= factor
		}
		record(y)
	}

	return out, nil
}
