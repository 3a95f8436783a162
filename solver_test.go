package main

import (
	"context"
	"errors"
	"math"
	"testing"
)

// Adaptive Integrator Tests
//
// Validated against closed-form solutions: exponential decay and the
// harmonic oscillator, both well inside the reach of a 5th-order scheme
// at the default tolerances.

func TestIntegrateRK45_ExponentialDecay(t *testing.T) {
	decay := func(t float64, y []float64) []float64 {
		return []float64{-y[0]}
	}
	checkpoints := linspace(0, 2, 21)

	states, err := IntegrateRK45(context.Background(), decay, []float64{1}, checkpoints, DefaultSolverSettings())
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != len(checkpoints) {
		t.Fatalf("got %d states, want %d", len(states), len(checkpoints))
	}

	for i, tc := range checkpoints {
		exact := math.Exp(-tc)
		if math.Abs(states[i][0]-exact) > 1e-5 {
			t.Errorf("y(%.2f) = %.8f, want %.8f", tc, states[i][0], exact)
		}
	}
}

func TestIntegrateRK45_HarmonicOscillator(t *testing.T) {
	oscillator := func(t float64, y []float64) []float64 {
		return []float64{y[1], -y[0]}
	}
	checkpoints := []float64{0, math.Pi / 2, math.Pi}

	states, err := IntegrateRK45(context.Background(), oscillator, []float64{1, 0}, checkpoints, DefaultSolverSettings())
	if err != nil {
		t.Fatal(err)
	}

	// y(t) = cos(t), y'(t) = -sin(t)
	if math.Abs(states[1][0]) > 1e-5 || math.Abs(states[1][1]+1) > 1e-5 {
		t.Errorf("at pi/2: got (%.6f, %.6f), want (0, -1)", states[1][0], states[1][1])
	}
	if math.Abs(states[2][0]+1) > 1e-5 || math.Abs(states[2][1]) > 1e-5 {
		t.Errorf("at pi: got (%.6f, %.6f), want (-1, 0)", states[2][0], states[2][1])
	}
}

func TestIntegrateRK45_InvalidCheckpoints(t *testing.T) {
	decay := func(t float64, y []float64) []float64 { return []float64{-y[0]} }

	if _, err := IntegrateRK45(context.Background(), decay, []float64{1}, []float64{0}, DefaultSolverSettings()); err == nil {
		t.Error("single checkpoint accepted")
	}
	if _, err := IntegrateRK45(context.Background(), decay, []float64{1}, []float64{0, 2, 1}, DefaultSolverSettings()); err == nil {
		t.Error("non-increasing checkpoints accepted")
	}
}

func TestIntegrateRK45_ContextCancellation(t *testing.T) {
	decay := func(t float64, y []float64) []float64 { return []float64{-y[0]} }
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := IntegrateRK45(ctx, decay, []float64{1}, []float64{0, 1}, DefaultSolverSettings())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestIntegrateRK45_StepBudget(t *testing.T) {
	decay := func(t float64, y []float64) []float64 { return []float64{-y[0]} }
	settings := DefaultSolverSettings()
	settings.MaxSteps = 3

	_, err := IntegrateRK45(context.Background(), decay, []float64{1}, linspace(0, 10, 11), settings)
	var instability *NumericalInstabilityError
	if !errors.As(err, &instability) {
		t.Fatalf("got %v, want *NumericalInstabilityError", err)
	}
	if instability.Op != "rk45" {
		t.Errorf("op = %q, want rk45", instability.Op)
	}
}
