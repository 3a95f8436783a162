package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// Configuration Tests

func TestLoadDefaultConfig(t *testing.T) {
	config, err := LoadDefaultConfig()
	if err != nil {
		t.Fatal(err)
	}

	schedule, err := config.ResolveSchedule()
	if err != nil {
		t.Fatal(err)
	}
	if len(schedule) != NumBrackets {
		t.Errorf("resolved %d brackets, want %d", len(schedule), NumBrackets)
	}

	initial, err := config.InitialState()
	if err != nil {
		t.Fatal(err)
	}
	if len(initial) != NumBrackets {
		t.Errorf("initial state has %d brackets, want %d", len(initial), NumBrackets)
	}

	// Embedded percentages resolved to decimals.
	if math.Abs(config.Params.Growth-0.02) > 1e-12 {
		t.Errorf("growth = %v, want 0.02", config.Params.Growth)
	}
	if math.Abs(config.Params.MobilityUp-0.10) > 1e-12 {
		t.Errorf("mobility_up = %v, want 0.10", config.Params.MobilityUp)
	}
	if config.Simulation.Solver.RelTol != 1e-6 {
		t.Errorf("rtol = %v, want 1e-6", config.Simulation.Solver.RelTol)
	}
}

func TestConfig_RoundTrip(t *testing.T) {
	config, err := LoadDefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	config.Schedule.Year = 2025
	config.Params.TaxShock = 0.05
	config.Population.Initial = []float64{1, 2, 3, 4, 5}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveConfig(config, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Schedule.Year != 2025 {
		t.Errorf("year = %d, want 2025", loaded.Schedule.Year)
	}
	if loaded.Params.TaxShock != 0.05 {
		t.Errorf("tax_shock = %v, want 0.05", loaded.Params.TaxShock)
	}
	for i, v := range loaded.Population.Initial {
		if v != float64(i+1) {
			t.Errorf("initial[%d] = %v, want %d", i, v, i+1)
		}
	}
}

func TestLoadConfig_PercentageValues(t *testing.T) {
	content := `
params:
  growth: 3%
  inflation: 1.5%
  mobility_up: 0.2
  mobility_down: 5%
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(config.Params.Growth-0.03) > 1e-12 {
		t.Errorf("growth = %v, want 0.03", config.Params.Growth)
	}
	if math.Abs(config.Params.Inflation-0.015) > 1e-12 {
		t.Errorf("inflation = %v, want 0.015", config.Params.Inflation)
	}
	if math.Abs(config.Params.MobilityUp-0.2) > 1e-12 {
		t.Errorf("mobility_up = %v, want 0.2 (decimal form)", config.Params.MobilityUp)
	}
	if math.Abs(config.Params.MobilityDown-0.05) > 1e-12 {
		t.Errorf("mobility_down = %v, want 0.05", config.Params.MobilityDown)
	}
}

func TestLoadConfig_MissingFileIsNotExist(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("got %v, want a not-exist error", err)
	}
}

func TestResolveSchedule_CustomBracketsValidated(t *testing.T) {
	config, err := LoadDefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	config.Schedule.Brackets = []TaxBracket{
		{Lower: 0, Upper: 20000, Rate: 0.10}, // first rate must be 0
		{Lower: 20001, Upper: math.Inf(1), Rate: 0.30},
	}
	if _, err := config.ResolveSchedule(); err == nil {
		t.Error("invalid custom table accepted")
	}
}

func TestScheduleRows_RoundTrip(t *testing.T) {
	schedule := Schedule2024()
	rows := ScheduleToRows(schedule)

	parsed, err := ScheduleFromRows(rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != len(schedule) {
		t.Fatalf("got %d brackets, want %d", len(parsed), len(schedule))
	}
	for i := range schedule {
		if parsed[i].Lower != schedule[i].Lower || parsed[i].Rate != schedule[i].Rate {
			t.Errorf("bracket %d changed: %+v != %+v", i, parsed[i], schedule[i])
		}
		if math.IsInf(schedule[i].Upper, 1) != math.IsInf(parsed[i].Upper, 1) {
			t.Errorf("bracket %d infinity lost", i)
		}
	}
}

func TestScheduleFromRows_Rejections(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
	}{
		{"empty", nil},
		{"short row", [][]string{{"0", "1000"}}},
		{"bad number", [][]string{{"zero", "1000", "0"}}},
		{"invalid table", [][]string{
			{"0", "20000", "0"},
			{"20001", "inf", "-0.3"},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ScheduleFromRows(tc.rows); err == nil {
				t.Error("accepted, want rejection")
			}
		})
	}
}

func TestScheduleCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bareme.csv")
	schedule := Schedule2024()

	if err := SaveScheduleCSV(schedule, path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadScheduleCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != len(schedule) {
		t.Fatalf("got %d brackets, want %d", len(loaded), len(schedule))
	}
	for i := range schedule {
		if loaded[i] != schedule[i] && !(math.IsInf(loaded[i].Upper, 1) && math.IsInf(schedule[i].Upper, 1) &&
			loaded[i].Lower == schedule[i].Lower && loaded[i].Rate == schedule[i].Rate) {
			t.Errorf("bracket %d changed: %+v != %+v", i, loaded[i], schedule[i])
		}
	}
}
