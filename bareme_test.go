package main

import (
	"math"
	"testing"
)

// Bracket Schedule Validation Tests
//
// Reference figures follow the official 2024 schedule (2023 income,
// impots.gouv.fr). Each rate applies to the slice of income above the
// previous threshold:
// - up to 11,497: 0%
// - 11,497 to 29,315: 11%
// - 29,315 to 83,823: 30%
// - 83,823 to 180,294: 41%
// - above 180,294: 45%

// tolerance for floating point comparisons (0.01 €)
const taxTolerance = 0.01

func assertTaxEquals(t *testing.T, expected, actual float64, description string) {
	t.Helper()
	if math.Abs(expected-actual) > taxTolerance {
		t.Errorf("%s: expected %.2f, got %.2f (diff: %.2f)",
			description, expected, actual, actual-expected)
	}
}

func TestValidateSchedule_OfficialTables(t *testing.T) {
	if err := ValidateSchedule(Schedule2024()); err != nil {
		t.Errorf("2024 schedule rejected: %v", err)
	}
	if err := ValidateSchedule(Schedule2025()); err != nil {
		t.Errorf("2025 schedule rejected: %v", err)
	}
}

func TestValidateSchedule_Rejections(t *testing.T) {
	inf := math.Inf(1)
	tests := []struct {
		name     string
		schedule BracketSchedule
	}{
		{"empty", BracketSchedule{}},
		{"first lower not zero", BracketSchedule{
			{Lower: 100, Upper: 20000, Rate: 0},
			{Lower: 20000, Upper: inf, Rate: 0.30},
		}},
		{"first rate not zero", BracketSchedule{
			{Lower: 0, Upper: 20000, Rate: 0.05},
			{Lower: 20000, Upper: inf, Rate: 0.30},
		}},
		{"last bracket bounded", BracketSchedule{
			{Lower: 0, Upper: 20000, Rate: 0},
			{Lower: 20000, Upper: 90000, Rate: 0.30},
		}},
		{"decreasing rates", BracketSchedule{
			{Lower: 0, Upper: 20000, Rate: 0},
			{Lower: 20000, Upper: 50000, Rate: 0.30},
			{Lower: 50000, Upper: inf, Rate: 0.11},
		}},
		{"overlapping brackets", BracketSchedule{
			{Lower: 0, Upper: 20000, Rate: 0},
			{Lower: 15000, Upper: inf, Rate: 0.30},
		}},
		{"gap between brackets", BracketSchedule{
			{Lower: 0, Upper: 20000, Rate: 0},
			{Lower: 20001, Upper: inf, Rate: 0.30},
		}},
		{"rate above one", BracketSchedule{
			{Lower: 0, Upper: 20000, Rate: 0},
			{Lower: 20000, Upper: inf, Rate: 1.5},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateSchedule(tc.schedule); err == nil {
				t.Errorf("schedule %q accepted, want rejection", tc.name)
			} else if !isInvalidInput(err) {
				t.Errorf("schedule %q: got %T, want *InvalidInputError", tc.name, err)
			}
		})
	}
}

func TestTaxOnAmount_FirstBracketBoundary(t *testing.T) {
	schedule := Schedule2024()

	assertTaxEquals(t, 0, TaxOnAmount(schedule, 11497), "income at the top of the 0% bracket")
	assertTaxEquals(t, 0.11, TaxOnAmount(schedule, 11498), "first euro above the threshold taxed at 11%")
	assertTaxEquals(t, 0.22, TaxOnAmount(schedule, 11499), "second euro above the threshold")
}

func TestTaxOnAmount_ReferenceValues(t *testing.T) {
	schedule := Schedule2024()
	tests := []struct {
		amount      float64
		expectedTax float64
	}{
		{0, 0},
		{10000, 0},
		{15000, (15000 - 11497) * 0.11},
		{29315, (29315 - 11497) * 0.11},
		{35000, (29315-11497)*0.11 + (35000-29315)*0.30},
		{60000, (29315-11497)*0.11 + (60000-29315)*0.30},
		{100000, (29315-11497)*0.11 + (83823-29315)*0.30 + (100000-83823)*0.41},
		{200000, (29315-11497)*0.11 + (83823-29315)*0.30 + (180294-83823)*0.41 + (200000-180294)*0.45},
	}

	for _, tc := range tests {
		assertTaxEquals(t, tc.expectedTax, TaxOnAmount(schedule, tc.amount), "gross tax")
	}
}

func TestTaxOnAmount_HandComputed35000(t *testing.T) {
	// 35000: 11% on 11497..29315, 30% on 29315..35000 = 3665.48.
	assertTaxEquals(t, 3665.48, TaxOnAmount(Schedule2024(), 35000), "gross tax at 35000")
}

func TestMarginalRate_BoundariesInclusive(t *testing.T) {
	schedule := Schedule2024()
	tests := []struct {
		amount float64
		rate   float64
	}{
		{0, 0},
		{11497, 0},
		{11498, 0.11},
		{29315, 0.11},
		{29316, 0.30},
		{500000, 0.45},
	}

	for _, tc := range tests {
		if got := MarginalRate(schedule, tc.amount); got != tc.rate {
			t.Errorf("MarginalRate(%.0f) = %.2f, want %.2f", tc.amount, got, tc.rate)
		}
	}
}

func TestBracketIndex_SharedBoundaries(t *testing.T) {
	// A value exactly on a threshold belongs to the bracket below;
	// anything above it, fractional included, to the bracket above.
	schedule := Schedule2024()
	tests := []struct {
		amount float64
		index  int
	}{
		{0, 0},
		{11497, 0},
		{11497.5, 1},
		{29315, 1},
		{29315.01, 2},
		{1e9, 4},
	}
	for _, tc := range tests {
		if got := BracketIndex(schedule, tc.amount); got != tc.index {
			t.Errorf("BracketIndex(%v) = %d, want %d", tc.amount, got, tc.index)
		}
	}
}

func TestAverageRate_BelowMarginal(t *testing.T) {
	schedule := Schedule2024()
	for _, amount := range []float64{15000, 35000, 60000, 100000, 250000} {
		avg := AverageRate(schedule, amount)
		marginal := MarginalRate(schedule, amount)
		if avg >= marginal {
			t.Errorf("average rate %.4f not below marginal %.4f at %.0f", avg, marginal, amount)
		}
	}
}

func TestScheduleForYear(t *testing.T) {
	if _, err := ScheduleForYear(2024); err != nil {
		t.Errorf("2024: %v", err)
	}
	if _, err := ScheduleForYear(2025); err != nil {
		t.Errorf("2025: %v", err)
	}
	if _, err := ScheduleForYear(1999); err == nil {
		t.Error("1999 accepted, want rejection")
	}
}

func TestSchedule2025_RevaluedBoundaries(t *testing.T) {
	s := Schedule2025()
	if err := ValidateSchedule(s); err != nil {
		t.Fatalf("revalued schedule invalid: %v", err)
	}
	base := Schedule2024()
	for i := range s {
		if s[i].Rate != base[i].Rate {
			t.Errorf("bracket %d rate changed: %.2f != %.2f", i, s[i].Rate, base[i].Rate)
		}
		if math.IsInf(s[i].Upper, 1) {
			continue
		}
		if s[i].Upper <= base[i].Upper {
			t.Errorf("bracket %d upper bound not revalued upward: %.0f", i, s[i].Upper)
		}
	}
}

func TestShockedSchedule(t *testing.T) {
	schedule := Schedule2024()

	shocked := ShockedSchedule(schedule, 0.05)
	if got := shocked[len(shocked)-1].Rate; math.Abs(got-0.50) > 1e-12 {
		t.Errorf("top rate after +0.05 shock = %.2f, want 0.50", got)
	}
	for i := 0; i < len(shocked)-1; i++ {
		if shocked[i].Rate != schedule[i].Rate {
			t.Errorf("non-top bracket %d changed by shock", i)
		}
	}

	// Shock saturates at 60%.
	extreme := ShockedSchedule(schedule, 0.40)
	if got := extreme[len(extreme)-1].Rate; got != 0.60 {
		t.Errorf("top rate after +0.40 shock = %.2f, want 0.60", got)
	}

	// Original schedule untouched.
	if schedule[len(schedule)-1].Rate != 0.45 {
		t.Error("ShockedSchedule mutated its input")
	}
}
