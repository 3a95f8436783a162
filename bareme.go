package main

import (
	"math"
	"strings"

	"github.com/goccy/go-json"
)

// TaxBracket is a single bracket of the progressive schedule.
// The last bracket of a schedule has Upper = +Inf.
type TaxBracket struct {
	Lower float64 `yaml:"lower" json:"lower"`
	Upper float64 `yaml:"upper" json:"upper"`
	Rate  float64 `yaml:"rate" json:"rate"`
}

// MarshalJSON writes the infinite upper bound as the token "inf", the
// representation the tabular and CSV forms use.
func (b TaxBracket) MarshalJSON() ([]byte, error) {
	var upper interface{} = b.Upper
	if math.IsInf(b.Upper, 1) {
		upper = "inf"
	}
	return json.Marshal(struct {
		Lower float64     `json:"lower"`
		Upper interface{} `json:"upper"`
		Rate  float64     `json:"rate"`
	}{b.Lower, upper, b.Rate})
}

// UnmarshalJSON accepts a numeric upper bound, the token "inf", or null
// and a missing field (both meaning unbounded).
func (b *TaxBracket) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lower float64         `json:"lower"`
		Upper json.RawMessage `json:"upper"`
		Rate  float64         `json:"rate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Lower, b.Rate = raw.Lower, raw.Rate
	b.Upper = math.Inf(1)
	if len(raw.Upper) == 0 || string(raw.Upper) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Upper, &s); err == nil {
		if strings.EqualFold(s, "inf") {
			return nil
		}
		return &InvalidInputError{Field: "upper", Reason: "unrecognized bound " + s}
	}
	return json.Unmarshal(raw.Upper, &b.Upper)
}

// BracketSchedule is an ordered progressive tax schedule.
// Schedules are immutable by convention: callers replace the whole slice,
// the engine never mutates one mid-computation.
type BracketSchedule []TaxBracket

// ValidateSchedule checks that the brackets partition [0, +Inf): bounds
// are contiguous (lower[i] = upper[i-1], so bracket i taxes the slice
// above the previous threshold), rates non-decreasing, first rate 0 and
// the last bracket unbounded.
func ValidateSchedule(schedule BracketSchedule) error {
	if len(schedule) == 0 {
		return &InvalidInputError{Field: "schedule", Reason: "empty bracket schedule"}
	}
	if schedule[0].Lower != 0 {
		return &InvalidInputError{Field: "schedule", Reason: "first bracket must start at 0"}
	}
	if schedule[0].Rate != 0 {
		return &InvalidInputError{Field: "schedule", Reason: "first bracket rate must be 0"}
	}
	if !math.IsInf(schedule[len(schedule)-1].Upper, 1) {
		return &InvalidInputError{Field: "schedule", Reason: "last bracket must be unbounded"}
	}
	for i, b := range schedule {
		if b.Rate < 0 || b.Rate > 1 {
			return &InvalidInputError{Field: "schedule", Reason: "bracket rate outside [0,1]"}
		}
		if b.Upper <= b.Lower {
			return &InvalidInputError{Field: "schedule", Reason: "bracket upper bound not above lower bound"}
		}
		if i == 0 {
			continue
		}
		if b.Rate < schedule[i-1].Rate {
			return &InvalidInputError{Field: "schedule", Reason: "bracket rates must be non-decreasing"}
		}
		if b.Lower < schedule[i-1].Upper {
			return &InvalidInputError{Field: "schedule", Reason: "brackets overlap"}
		}
		if b.Lower > schedule[i-1].Upper {
			return &InvalidInputError{Field: "schedule", Reason: "gap between brackets"}
		}
	}
	return nil
}

// BracketIndex returns the index of the bracket containing amount.
// Boundaries are inclusive: a value exactly at a bracket's upper bound
// belongs to that bracket, not the next one.
func BracketIndex(schedule BracketSchedule, amount float64) int {
	for i, b := range schedule {
		if amount <= b.Upper {
			return i
		}
	}
	return len(schedule) - 1
}

// MarginalSlice returns the tax contribution of bracket i for the given
// amount: only the portion of the amount above the bracket's lower bound
// is taxed at the bracket's rate.
func MarginalSlice(schedule BracketSchedule, i int, amount float64) float64 {
	b := schedule[i]
	if amount <= b.Lower {
		return 0
	}
	taxable := math.Min(amount, b.Upper) - b.Lower
	return taxable * b.Rate
}

// TaxOnAmount computes the gross progressive tax on a taxable amount by
// summing the marginal slices of every bracket up to the one containing it.
func TaxOnAmount(schedule BracketSchedule, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	var tax float64
	for i := range schedule {
		if amount <= schedule[i].Lower {
			break
		}
		tax += MarginalSlice(schedule, i, amount)
	}
	return tax
}

// MarginalRate returns the marginal rate for a taxable amount.
func MarginalRate(schedule BracketSchedule, amount float64) float64 {
	if amount < 0 {
		return 0
	}
	return schedule[BracketIndex(schedule, amount)].Rate
}

// AverageRate returns gross tax divided by the taxable amount (0 at 0).
func AverageRate(schedule BracketSchedule, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	return TaxOnAmount(schedule, amount) / amount
}

// Schedule2024 returns the official 2024 French income tax schedule
// (2023 income, impots.gouv.fr). Each bracket taxes the slice of income
// above the previous threshold, so the published thresholds are the
// shared bounds: the 11% bracket covers 11497 exclusive to 29315
// inclusive, and so on.
func Schedule2024() BracketSchedule {
	return BracketSchedule{
		{Lower: 0, Upper: 11497, Rate: 0},
		{Lower: 11497, Upper: 29315, Rate: 0.11},
		{Lower: 29315, Upper: 83823, Rate: 0.30},
		{Lower: 83823, Upper: 180294, Rate: 0.41},
		{Lower: 180294, Upper: math.Inf(1), Rate: 0.45},
	}
}

// Schedule2025 returns the projected 2025 schedule: the 2024 boundaries
// revalued by the estimated 1.8% inflation, rates unchanged.
func Schedule2025() BracketSchedule {
	base := Schedule2024()
	const factor = 1.018
	revalued := make(BracketSchedule, len(base))
	prev := 0.0
	for i, b := range base {
		upper := b.Upper
		if !math.IsInf(upper, 1) {
			upper = math.Round(upper * factor)
		}
		revalued[i] = TaxBracket{Lower: prev, Upper: upper, Rate: b.Rate}
		prev = upper
	}
	return revalued
}

// ScheduleForYear returns the versioned official schedule for a year.
func ScheduleForYear(year int) (BracketSchedule, error) {
	switch year {
	case 2024:
		return Schedule2024(), nil
	case 2025:
		return Schedule2025(), nil
	default:
		return nil, &InvalidInputError{Field: "year", Reason: "no official schedule for requested year"}
	}
}

// ShockedSchedule returns a copy of the schedule with the top marginal rate
// raised by deltaTau, capped at 60%. Used by tax-shock scenarios.
func ShockedSchedule(schedule BracketSchedule, deltaTau float64) BracketSchedule {
	shocked := make(BracketSchedule, len(schedule))
	copy(shocked, schedule)
	top := len(shocked) - 1
	shocked[top].Rate = math.Min(0.60, shocked[top].Rate+deltaTau)
	return shocked
}
