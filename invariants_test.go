package main

import (
	"math"
	"testing"
)

// Mathematical Invariants Test Suite
//
// Property-based tests verifying relations that must hold for any
// admissible input, rather than specific numeric values.

func TestInvariant_TaxMonotoneInIncome(t *testing.T) {
	schedule := Schedule2024()
	policy := DefaultTaxPolicy()

	for _, parts := range []float64{1, 1.5, 2, 3} {
		prev := -1.0
		for income := 0.0; income <= 250000; income += 2500 {
			result, err := ComputeTax(Household{
				Income: income, Parts: parts,
				ApplyRebate: true, ApplyCap: true,
			}, schedule, policy)
			if err != nil {
				t.Fatal(err)
			}
			if result.NetTax < prev-1e-9 {
				t.Fatalf("net tax decreased at income %v parts %v: %v < %v",
					income, parts, result.NetTax, prev)
			}
			prev = result.NetTax
		}
	}
}

func TestInvariant_NetTaxBounds(t *testing.T) {
	schedule := Schedule2024()
	policy := DefaultTaxPolicy()

	for income := 0.0; income <= 500000; income += 7331 {
		for _, parts := range []float64{0.5, 1, 2, 4} {
			result, err := ComputeTax(Household{
				Income: income, Parts: parts,
				ApplyRebate: true, ApplyCap: true,
			}, schedule, policy)
			if err != nil {
				t.Fatal(err)
			}
			if result.NetTax < 0 {
				t.Errorf("negative tax %v at income %v parts %v", result.NetTax, income, parts)
			}
			if result.NetTax > income {
				t.Errorf("tax %v exceeds income %v", result.NetTax, income)
			}
		}
	}
}

func TestInvariant_RebateNeverIncreasesTax(t *testing.T) {
	schedule := Schedule2024()
	policy := DefaultTaxPolicy()

	for income := 0.0; income <= 60000; income += 1000 {
		with, err := ComputeTax(Household{Income: income, Parts: 1, ApplyRebate: true},
			schedule, policy)
		if err != nil {
			t.Fatal(err)
		}
		without, err := ComputeTax(Household{Income: income, Parts: 1},
			schedule, policy)
		if err != nil {
			t.Fatal(err)
		}
		if with.NetTax > without.NetTax+1e-9 {
			t.Errorf("rebate raised tax at income %v: %v > %v",
				income, with.NetTax, without.NetTax)
		}
	}
}

func TestInvariant_CappedTaxBetweenUncappedAndOnePart(t *testing.T) {
	schedule := Schedule2024()
	policy := DefaultTaxPolicy()

	for income := 20000.0; income <= 300000; income += 9173 {
		for _, parts := range []float64{1.5, 2, 2.5, 3} {
			capped, err := ComputeTax(Household{
				Income: income, Parts: parts, ApplyCap: true,
			}, schedule, policy)
			if err != nil {
				t.Fatal(err)
			}
			uncapped, err := ComputeTax(Household{
				Income: income, Parts: parts,
			}, schedule, policy)
			if err != nil {
				t.Fatal(err)
			}
			onePart := TaxOnAmount(schedule, income)

			if capped.NetTax < uncapped.NetTax-1e-9 {
				t.Errorf("cap lowered tax at income %v parts %v: %v < %v",
					income, parts, capped.NetTax, uncapped.NetTax)
			}
			if capped.NetTax > onePart+1e-9 {
				t.Errorf("capped tax %v exceeds single-part tax %v at income %v parts %v",
					capped.NetTax, onePart, income, parts)
			}
		}
	}
}

func TestInvariant_MorePartsNeverMoreTax(t *testing.T) {
	schedule := Schedule2024()
	policy := DefaultTaxPolicy()

	for income := 0.0; income <= 200000; income += 5000 {
		prev := math.Inf(1)
		for _, parts := range []float64{1, 1.5, 2, 2.5, 3} {
			result, err := ComputeTax(Household{
				Income: income, Parts: parts,
				ApplyRebate: true, ApplyCap: true,
			}, schedule, policy)
			if err != nil {
				t.Fatal(err)
			}
			if result.NetTax > prev+1e-9 {
				t.Errorf("tax rose with parts at income %v parts %v: %v > %v",
					income, parts, result.NetTax, prev)
			}
			prev = result.NetTax
		}
	}
}

func TestInvariant_AverageRateBelowTopMarginal(t *testing.T) {
	schedule := Schedule2024()
	top := schedule[len(schedule)-1].Rate

	for income := 1000.0; income <= 2000000; income *= 2 {
		result, err := ComputeTax(Household{Income: income, Parts: 1},
			schedule, DefaultTaxPolicy())
		if err != nil {
			t.Fatal(err)
		}
		if result.EffectiveRate >= top {
			t.Errorf("average rate %v at income %v not below top marginal %v",
				result.EffectiveRate, income, top)
		}
	}
}
