package main

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default-config.yaml
var defaultConfigYAML string

// ScheduleConfig selects the bracket schedule: a versioned official year,
// optionally overridden by a custom bracket table (the editable table of
// the host UI). Custom tables are validated before use.
type ScheduleConfig struct {
	Year     int          `yaml:"year" json:"year"`
	Brackets []TaxBracket `yaml:"brackets,omitempty" json:"brackets,omitempty"`
}

// PopulationConfig holds the population models' starting distribution.
type PopulationConfig struct {
	Initial   []float64 `yaml:"initial" json:"initial"`       // per-bracket counts
	TopIncome float64   `yaml:"top_income" json:"top_income"` // ceiling closing the top bracket
}

// SimulationConfig holds the time grid and solver tolerances.
type SimulationConfig struct {
	Span   TimeSpan       `yaml:"span" json:"span"`
	Points int            `yaml:"points" json:"points"`
	Solver SolverSettings `yaml:"solver" json:"solver"`
}

// ServerConfig holds the API server settings.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Config is the complete configuration.
type Config struct {
	Schedule   ScheduleConfig   `yaml:"schedule" json:"schedule"`
	Policy     TaxPolicy        `yaml:"policy" json:"policy"`
	Params     ModelParams      `yaml:"params" json:"params"`
	Population PopulationConfig `yaml:"population" json:"population"`
	Simulation SimulationConfig `yaml:"simulation" json:"simulation"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// ResolveSchedule returns the configured bracket schedule: the custom
// table when present (validated), otherwise the official table for the
// configured year (2024 when unset).
func (c *Config) ResolveSchedule() (BracketSchedule, error) {
	if len(c.Schedule.Brackets) > 0 {
		schedule := BracketSchedule(c.Schedule.Brackets)
		if err := ValidateSchedule(schedule); err != nil {
			return nil, err
		}
		return schedule, nil
	}
	year := c.Schedule.Year
	if year == 0 {
		year = 2024
	}
	return ScheduleForYear(year)
}

// InitialState returns the configured starting distribution.
func (c *Config) InitialState() (PopulationState, error) {
	state := PopulationState(c.Population.Initial)
	if err := ValidateInitialState(state); err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// LoadConfig loads configuration from a YAML file. Percentage values
// ("11%") are converted to decimals before parsing.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal([]byte(preprocessPercentages(string(data))), &config); err != nil {
		return nil, err
	}
	applyConfigDefaults(&config)
	return &config, nil
}

// SaveConfig saves configuration to a YAML file with a usage header.
func SaveConfig(config *Config, filename string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	header := []byte(`# Impôt sur le revenu - simulateur configuration
#
# schedule:   official year (2024/2025) or a custom bracket table.
#             Custom brackets must partition [0, inf): contiguous bounds,
#             non-decreasing rates, first rate 0, last upper .inf.
# policy:     décote thresholds / coefficient and plafonnement cap.
# params:     population dynamics (growth g, inflation pi, mobility
#             alpha/beta, tax shock tau). Percentages may be written
#             as "2%" or 0.02.
# population: initial per-bracket counts and the income ceiling used to
#             give the top bracket a representative income.
# simulation: time span, checkpoint count and solver tolerances.
#
# Run commands:
#   ./tp-impots -income 35000 -parts 1      Individual computation
#   ./tp-impots -ode                        ODE population run
#   ./tp-impots -markov                     Markov population run
#   ./tp-impots -web                        JSON API server

`)
	return os.WriteFile(filename, append(header, data...), 0644)
}

// LoadDefaultConfig loads the embedded default configuration.
func LoadDefaultConfig() (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(preprocessPercentages(defaultConfigYAML)), &config); err != nil {
		return nil, err
	}
	applyConfigDefaults(&config)
	return &config, nil
}

// applyConfigDefaults fills the zero values a partial file may leave.
func applyConfigDefaults(config *Config) {
	if config.Policy.Rebate.Coefficient == 0 {
		config.Policy = DefaultTaxPolicy()
	}
	if config.Population.TopIncome == 0 {
		config.Population.TopIncome = DefaultTopIncome
	}
	if config.Simulation.Points == 0 {
		config.Simulation.Points = 100
	}
	if config.Simulation.Span.End == 0 {
		config.Simulation.Span = TimeSpan{Start: 0, End: 10}
	}
	if config.Simulation.Solver.RelTol == 0 {
		config.Simulation.Solver = DefaultSolverSettings()
	}
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

// preprocessPercentages converts values like "11%" to decimal "0.11".
func preprocessPercentages(content string) string {
	re := regexp.MustCompile(`(:\s*)(\d+\.?\d*)%`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) >= 3 {
			num, err := strconv.ParseFloat(parts[2], 64)
			if err == nil {
				return parts[1] + strconv.FormatFloat(num/100.0, 'f', -1, 64)
			}
		}
		return match
	})
}

// ScheduleToRows renders a schedule as ordered lower/upper/rate rows, the
// tabular form the host's editable table and the CSV files use. The
// infinite upper bound is written "inf".
func ScheduleToRows(schedule BracketSchedule) [][]string {
	rows := make([][]string, len(schedule))
	for i, b := range schedule {
		upper := "inf"
		if !math.IsInf(b.Upper, 1) {
			upper = strconv.FormatFloat(b.Upper, 'f', -1, 64)
		}
		rows[i] = []string{
			strconv.FormatFloat(b.Lower, 'f', -1, 64),
			upper,
			strconv.FormatFloat(b.Rate, 'f', -1, 64),
		}
	}
	return rows
}

// ScheduleFromRows parses and validates a tabular schedule. Invalid
// tables are rejected before they can replace the active schedule.
func ScheduleFromRows(rows [][]string) (BracketSchedule, error) {
	if len(rows) == 0 {
		return nil, &InvalidInputError{Field: "schedule", Reason: "empty table"}
	}
	schedule := make(BracketSchedule, len(rows))
	for i, row := range rows {
		if len(row) != 3 {
			return nil, &InvalidInputError{Field: "schedule", Reason: fmt.Sprintf("row %d: expected lower, upper, rate", i+1)}
		}
		lower, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		if err != nil {
			return nil, &InvalidInputError{Field: "schedule", Reason: fmt.Sprintf("row %d: bad lower bound", i+1)}
		}
		upper := math.Inf(1)
		if u := strings.TrimSpace(row[1]); !strings.EqualFold(u, "inf") {
			upper, err = strconv.ParseFloat(u, 64)
			if err != nil {
				return nil, &InvalidInputError{Field: "schedule", Reason: fmt.Sprintf("row %d: bad upper bound", i+1)}
			}
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, &InvalidInputError{Field: "schedule", Reason: fmt.Sprintf("row %d: bad rate", i+1)}
		}
		schedule[i] = TaxBracket{Lower: lower, Upper: upper, Rate: rate}
	}
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// LoadScheduleCSV reads a schedule from a CSV file with a lower,upper,rate
// header row.
func LoadScheduleCSV(filename string) (BracketSchedule, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) > 0 && strings.EqualFold(strings.TrimSpace(records[0][0]), "lower") {
		records = records[1:]
	}
	return ScheduleFromRows(records)
}

// SaveScheduleCSV writes a schedule as CSV with a header row.
func SaveScheduleCSV(schedule BracketSchedule, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"lower", "upper", "rate"}); err != nil {
		return err
	}
	if err := w.WriteAll(ScheduleToRows(schedule)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
