package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	// Custom usage message
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Simulateur d'impôt sur le revenu et de dynamique de population

Computes French income tax from the progressive bracket schedule (family
quotient, décote, plafonnement) and simulates how a population distributed
over the five income brackets evolves under growth, inflation, mobility and
tax shocks.

MODES:

  TAX MODE (-income)
    Compute the tax of a single household.
    - Set -income and -parts, optionally disable the décote or the cap
    - Output: per-bracket breakdown, décote, plafonnement, rates

  CURVE MODE (-curve)
    Sample net tax and rates from 0 to -max-income for fixed parts.
    - Output: console table or CSV with -csv

  POPULATION MODES (-ode, -markov)
    Run the continuous population model (adaptive RK45) or the Markov
    chain over the configured time span.
    - Output: bracket counts and indicators over time, CSV with -csv

  STATIONARY MODE (-stationary)
    Solve the long-run distribution of the Markov chain; -stability adds
    the eigenvalue analysis and the relaxation time.

  SCENARIOS (-shock, -redistribution)
    Compare a baseline run against a top-rate shock or an upward-mobility
    boost, on either model (-markov switches from the default ODE).

Usage:
  %s [options]

Options:
`, os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  %s                                   Example households (demo)
  %s -income 35000 -parts 1            Single person earning 35000
  %s -income 60000 -parts 2.5 -pdf impot.pdf
  %s -curve -max-income 150000 -csv curve.csv
  %s -ode                              Continuous population run
  %s -markov -csv run.csv              Markov run, exported to CSV
  %s -stationary -stability            Long-run distribution + spectrum
  %s -ode -shock 0.05                  Raise the top rate by 5 points
  %s -markov -redistribution 0.5       Boost upward mobility by 50%%
  %s -web -addr :8080                  Serve the HTTP API

Configuration:
  Edit config.yaml to customize the bracket schedule, the décote and cap
  policy, the model parameters and the initial population. Missing file
  falls back to the embedded defaults. Percentages accept the %% form
  (e.g. "growth: 2%%").
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	}

	// Command line flags
	configFile := flag.String("config", "config.yaml", "Path to YAML configuration file")
	income := flag.Float64("income", -1, "Taxable income for a single computation")
	parts := flag.Float64("parts", 1, "Family quotient parts (0.5 steps)")
	noRebate := flag.Bool("no-decote", false, "Disable the décote rebate")
	noCap := flag.Bool("no-plafond", false, "Disable the quotient advantage cap")
	year := flag.Int("year", 0, "Official schedule year (overrides config)")
	scheduleCSV := flag.String("schedule", "", "Load a custom bracket table from CSV")
	runCurve := flag.Bool("curve", false, "Sample the rate curves over an income range")
	maxIncome := flag.Float64("max-income", 200000, "Upper income bound for -curve")
	points := flag.Int("points", 0, "Sample count (-curve) or checkpoints (population runs)")
	runODE := flag.Bool("ode", false, "Run the continuous (RK45) population model")
	runMarkov := flag.Bool("markov", false, "Run the Markov chain population model")
	stationary := flag.Bool("stationary", false, "Solve the stationary distribution of the Markov chain")
	stability := flag.Bool("stability", false, "Add eigenvalue and relaxation-time analysis to -stationary")
	shock := flag.Float64("shock", -1, "Scenario: raise the top marginal rate by this much (e.g. 0.05)")
	redistribution := flag.Float64("redistribution", -1, "Scenario: boost upward mobility by this factor (e.g. 0.5)")
	csvOut := flag.String("csv", "", "Write the curve or trajectory to a CSV file")
	pdfOut := flag.String("pdf", "", "Write a PDF report (tax sheet or population run)")
	webMode := flag.Bool("web", false, "Start the HTTP API server")
	webAddr := flag.String("addr", "", "API server address (default from config, else :8080)")
	flag.Parse()

	config := loadConfigOrDefault(*configFile)

	// Web server mode
	if *webMode {
		server := NewWebServer(config, *webAddr)
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("API server failed")
		}
		return
	}

	schedule, err := resolveScheduleFlags(config, *year, *scheduleCSV)
	if err != nil {
		fatal(err)
	}
	policy := resolvePolicy(config)

	switch {
	case *income >= 0:
		runTaxMode(schedule, policy, *income, *parts, !*noRebate, !*noCap, *pdfOut)
	case *runCurve:
		runCurveMode(schedule, policy, *parts, *maxIncome, *points, !*noRebate, !*noCap, *csvOut)
	case *stationary:
		runStationaryMode(config, schedule, policy, *stability)
	case *shock >= 0:
		runShockMode(config, schedule, policy, modelKind(*runMarkov), *shock)
	case *redistribution >= 0:
		runRedistributionMode(config, schedule, policy, modelKind(*runMarkov), *redistribution)
	case *runODE || *runMarkov:
		runPopulationMode(config, schedule, policy, modelKind(*runMarkov), *points, *csvOut, *pdfOut)
	default:
		runDemoMode(schedule, policy)
	}
}

// loadConfigOrDefault reads the config file, falling back to the embedded
// defaults when the file does not exist.
func loadConfigOrDefault(filename string) *Config {
	config, err := LoadConfig(filename)
	if err == nil {
		return config
	}
	if !os.IsNotExist(err) {
		fatal(fmt.Errorf("loading config: %w", err))
	}
	config, err = LoadDefaultConfig()
	if err != nil {
		fatal(err)
	}
	return config
}

func resolveScheduleFlags(config *Config, year int, scheduleCSV string) (BracketSchedule, error) {
	if scheduleCSV != "" {
		return LoadScheduleCSV(scheduleCSV)
	}
	if year != 0 {
		return ScheduleForYear(year)
	}
	return config.ResolveSchedule()
}

func resolvePolicy(config *Config) TaxPolicy {
	if config.Policy.Rebate.Coefficient > 0 {
		return config.Policy
	}
	return DefaultTaxPolicy()
}

func modelKind(markov bool) ModelKind {
	if markov {
		return ModelMarkov
	}
	return ModelODE
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// runTaxMode computes and prints one household.
func runTaxMode(schedule BracketSchedule, policy TaxPolicy, income, parts float64, applyRebate, applyCap bool, pdfOut string) {
	h := Household{Income: income, Parts: parts, ApplyRebate: applyRebate, ApplyCap: applyCap}
	result, err := ComputeTax(h, schedule, policy)
	if err != nil {
		fatal(err)
	}
	PrintTaxResult(result)

	if pdfOut != "" {
		data, err := GenerateTaxPDFReport(result)
		if err != nil {
			fatal(err)
		}
		if err := os.WriteFile(pdfOut, data, 0644); err != nil {
			fatal(err)
		}
		fmt.Printf("\nPDF report written to %s\n", pdfOut)
	}
}

// runCurveMode samples the rate curves and prints or exports them.
func runCurveMode(schedule BracketSchedule, policy TaxPolicy, parts, maxIncome float64, points int, applyRebate, applyCap bool, csvOut string) {
	if points == 0 {
		points = 50
	}
	curve, err := RateCurve(schedule, policy, parts, maxIncome, points, applyRebate, applyCap)
	if err != nil {
		fatal(err)
	}

	if csvOut != "" {
		if err := WriteRateCurveCSV(curve, csvOut); err != nil {
			fatal(err)
		}
		fmt.Printf("Rate curve written to %s\n", csvOut)
		return
	}

	fmt.Printf("%12s %14s %10s %10s %10s\n", "Revenu", "Impôt net", "Marginal", "Moyen", "Effectif")
	for _, p := range curve {
		fmt.Printf("%12s %14s %10s %10s %10s\n",
			FormatMoney(p.Income), FormatMoney(p.NetTax),
			FormatPercent(p.MarginalRate), FormatPercent(p.AverageRate), FormatPercent(p.EffectiveRate))
	}
}

// scenarioInput builds a scenario request from the configuration.
func scenarioInput(config *Config, schedule BracketSchedule, policy TaxPolicy, kind ModelKind, points int) (ScenarioInput, error) {
	initial, err := config.InitialState()
	if err != nil {
		return ScenarioInput{}, err
	}
	if points == 0 {
		points = config.Simulation.Points
	}
	if points == 0 {
		points = 100
	}
	topIncome := config.Population.TopIncome
	if topIncome == 0 {
		topIncome = DefaultTopIncome
	}
	span := config.Simulation.Span
	if span.End <= span.Start {
		span = TimeSpan{Start: 0, End: 10}
	}
	return ScenarioInput{
		Kind:      kind,
		Schedule:  schedule,
		Policy:    policy,
		TopIncome: topIncome,
		Initial:   initial,
		Span:      span,
		Params:    config.Params,
		Points:    points,
	}, nil
}

// runPopulationMode runs one population model and prints the trajectory.
func runPopulationMode(config *Config, schedule BracketSchedule, policy TaxPolicy, kind ModelKind, points int, csvOut, pdfOut string) {
	in, err := scenarioInput(config, schedule, policy, kind, points)
	if err != nil {
		fatal(err)
	}
	traj, err := simulate(context.Background(), in, schedule, in.Params)
	if err != nil {
		fatal(err)
	}

	bands := IncomeBands(schedule, in.TopIncome)
	name := "Modèle continu (RK45)"
	if kind == ModelMarkov {
		name = "Chaîne de Markov"
	}
	PrintTrajectory(name, traj, bands)

	if csvOut != "" {
		if err := WriteTrajectoryCSV(traj, csvOut); err != nil {
			fatal(err)
		}
		fmt.Printf("\nTrajectory written to %s\n", csvOut)
	}
	if pdfOut != "" {
		data, err := GeneratePopulationPDFReport(name, traj, bands, in.Params)
		if err != nil {
			fatal(err)
		}
		if err := os.WriteFile(pdfOut, data, 0644); err != nil {
			fatal(err)
		}
		fmt.Printf("\nPDF report written to %s\n", pdfOut)
	}
}

// runStationaryMode solves the long-run distribution.
func runStationaryMode(config *Config, schedule BracketSchedule, policy TaxPolicy, withStability bool) {
	topIncome := config.Population.TopIncome
	if topIncome == 0 {
		topIncome = DefaultTopIncome
	}
	model, err := NewMarkovModel(schedule, policy, topIncome)
	if err != nil {
		fatal(err)
	}

	bands := IncomeBands(schedule, topIncome)
	result, err := model.StationaryDistribution(config.Params)
	if err != nil {
		fatal(err)
	}
	PrintStationary(result, bands)

	if withStability {
		analysis, err := model.AnalyzeStability(config.Params)
		if err != nil {
			fatal(err)
		}
		fmt.Println("\nAnalyse spectrale:")
		for i, re := range analysis.RealParts {
			fmt.Printf("  lambda_%d: Re = %+.6f\n", i+1, re)
		}
		if analysis.Ergodic {
			fmt.Printf("  Temps de relaxation: %.2f ans\n", analysis.RelaxationTime)
		} else {
			fmt.Println("  Chaîne non ergodique")
		}
	}
}

// runShockMode compares baseline against a top-rate shock.
func runShockMode(config *Config, schedule BracketSchedule, policy TaxPolicy, kind ModelKind, deltaTau float64) {
	in, err := scenarioInput(config, schedule, policy, kind, 0)
	if err != nil {
		fatal(err)
	}
	scenario, err := RunTaxShock(context.Background(), in, deltaTau)
	if err != nil {
		fatal(err)
	}

	bands := IncomeBands(schedule, in.TopIncome)
	fmt.Printf("Scénario: choc fiscal de %+.1f points sur la dernière tranche\n\n", deltaTau*100)
	PrintTrajectory("Référence", scenario.Baseline, bands)
	fmt.Println()
	shockedBands := IncomeBands(ShockedSchedule(schedule, deltaTau), in.TopIncome)
	PrintTrajectory("Avec choc", scenario.Shocked, shockedBands)
	printScenarioDelta(scenario.Baseline, scenario.Shocked)
}

// runRedistributionMode compares baseline against boosted upward mobility.
func runRedistributionMode(config *Config, schedule BracketSchedule, policy TaxPolicy, kind ModelKind, rho float64) {
	in, err := scenarioInput(config, schedule, policy, kind, 0)
	if err != nil {
		fatal(err)
	}
	scenario, err := RunRedistribution(context.Background(), in, rho)
	if err != nil {
		fatal(err)
	}

	bands := IncomeBands(schedule, in.TopIncome)
	fmt.Printf("Scénario: mobilité ascendante renforcée de %.0f%%\n\n", rho*100)
	PrintTrajectory("Référence", scenario.Baseline, bands)
	fmt.Println()
	PrintTrajectory("Avec redistribution", scenario.Redistributed, bands)
	printScenarioDelta(scenario.Baseline, scenario.Redistributed)
}

func printScenarioDelta(baseline, variant *Trajectory) {
	if len(baseline.Indicators) == 0 || len(variant.Indicators) == 0 {
		return
	}
	a := baseline.Indicators[len(baseline.Indicators)-1]
	b := variant.Indicators[len(variant.Indicators)-1]
	fmt.Println("\nÉcart final (variante - référence):")
	fmt.Printf("  Recettes fiscales: %+.0f €\n", b.FiscalReceipts-a.FiscalReceipts)
	fmt.Printf("  Indice de Gini:    %+.4f\n", b.Gini-a.Gini)
	fmt.Printf("  Part haute:        %+.2f pts\n", (b.TopBracketShare-a.TopBracketShare)*100)
	fmt.Printf("  Revenu moyen:      %+.0f €\n", b.MeanIncome-a.MeanIncome)
}

// runDemoMode prints the preset household profiles.
func runDemoMode(schedule BracketSchedule, policy TaxPolicy) {
	fmt.Println("Profils d'exemple (barème courant):")
	fmt.Println()
	for _, ex := range ExampleHouseholds() {
		h := Household{Income: ex.Income, Parts: ex.Parts, ApplyRebate: true, ApplyCap: true}
		result, err := ComputeTax(h, schedule, policy)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("%-22s %s, %.1f part(s): impôt %s (taux effectif %s)\n",
			ex.Name, FormatMoney(ex.Income), ex.Parts,
			FormatMoney(result.NetTax), FormatPercent(result.EffectiveRate))
	}
	fmt.Println()
	fmt.Println("Use -income to compute a specific household, -h for all modes.")
}
