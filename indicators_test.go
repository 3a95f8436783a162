package main

import (
	"math"
	"testing"
)

// Indicator Tests
//
// The indicator definitions are shared by both population models, so they
// are exercised here on hand-built states rather than full runs.

func indicatorsForState(t *testing.T, state PopulationState) IndicatorPoint {
	t.Helper()
	schedule := Schedule2024()
	bands := IncomeBands(schedule, DefaultTopIncome)
	traj := &Trajectory{Times: []float64{0}, States: []PopulationState{state}}
	points := ComputeIndicators(traj, bands, schedule, DefaultTaxPolicy(), testParams())
	if len(points) != 1 {
		t.Fatalf("got %d indicator points, want 1", len(points))
	}
	return points[0]
}

func TestIndicators_SingleBracketIsPerfectEquality(t *testing.T) {
	point := indicatorsForState(t, PopulationState{0, 0, 100000, 0, 0})

	if math.Abs(point.Gini) > 1e-12 {
		t.Errorf("Gini = %.8f for a uniform population, want 0", point.Gini)
	}
	if point.TopBracketShare != 0 {
		t.Errorf("top share = %.4f with an empty top bracket", point.TopBracketShare)
	}
}

func TestIndicators_TopBracketShare(t *testing.T) {
	point := indicatorsForState(t, PopulationState{0, 0, 0, 0, 5000})
	if math.Abs(point.TopBracketShare-1) > 1e-12 {
		t.Errorf("top share = %.4f, want 1", point.TopBracketShare)
	}
}

func TestIndicators_GiniBounds(t *testing.T) {
	states := []PopulationState{
		{30000, 40000, 20000, 8000, 2000},
		{90000, 5000, 3000, 1500, 500},
		{20000, 20000, 20000, 20000, 20000},
	}
	for _, state := range states {
		point := indicatorsForState(t, state)
		if point.Gini < 0 || point.Gini >= 1 {
			t.Errorf("Gini %.4f outside [0, 1) for %v", point.Gini, state)
		}
	}
}

func TestIndicators_InequalityOrdersGini(t *testing.T) {
	// A polarized distribution is more unequal than a flat one.
	flat := indicatorsForState(t, PopulationState{20000, 20000, 20000, 20000, 20000})
	polarized := indicatorsForState(t, PopulationState{80000, 0, 0, 0, 20000})
	if polarized.Gini <= flat.Gini {
		t.Errorf("polarized Gini %.4f not above flat Gini %.4f", polarized.Gini, flat.Gini)
	}
}

func TestIndicators_ReceiptsAndMeanIncome(t *testing.T) {
	point := indicatorsForState(t, testInitialState())

	if point.FiscalReceipts <= 0 {
		t.Errorf("fiscal receipts %.2f not positive", point.FiscalReceipts)
	}
	bands := IncomeBands(Schedule2024(), DefaultTopIncome)
	lowest, highest := bands[0].Mean(), bands[len(bands)-1].Mean()
	if point.MeanIncome < lowest || point.MeanIncome > highest {
		t.Errorf("mean income %.2f outside [%.2f, %.2f]", point.MeanIncome, lowest, highest)
	}
	if point.TotalPopulation != testInitialState().Total() {
		t.Errorf("total population %.0f, want %.0f", point.TotalPopulation, testInitialState().Total())
	}
}

func TestIndicators_UpwardMobilityDampedByShock(t *testing.T) {
	schedule := Schedule2024()
	bands := IncomeBands(schedule, DefaultTopIncome)
	traj := &Trajectory{Times: []float64{0}, States: []PopulationState{testInitialState()}}

	base := ComputeIndicators(traj, bands, schedule, DefaultTaxPolicy(), testParams())[0]
	shockedParams := testParams()
	shockedParams.TaxShock = 0.5
	shocked := ComputeIndicators(traj, bands, schedule, DefaultTaxPolicy(), shockedParams)[0]

	if shocked.UpwardMobility >= base.UpwardMobility {
		t.Errorf("upward mobility %.2f not damped by shock (base %.2f)",
			shocked.UpwardMobility, base.UpwardMobility)
	}
}
