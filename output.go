package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
)

// FormatMoney formats an amount in euros.
func FormatMoney(amount float64) string {
	return fmt.Sprintf("%.0f €", amount)
}

// FormatMoneyCompact abbreviates large amounts for dense tables.
func FormatMoneyCompact(amount float64) string {
	if math.Abs(amount) >= 1e9 {
		return fmt.Sprintf("%.2f Md€", amount/1e9)
	}
	if math.Abs(amount) >= 1e6 {
		return fmt.Sprintf("%.2f M€", amount/1e6)
	}
	if math.Abs(amount) >= 1e4 {
		return fmt.Sprintf("%.0f k€", amount/1e3)
	}
	return FormatMoney(amount)
}

// FormatPercent formats a fraction as a percentage.
func FormatPercent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

// PrintTaxResult prints the full breakdown of an individual computation.
func PrintTaxResult(result TaxResult) {
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║              CALCUL DE L'IMPÔT SUR LE REVENU             ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Revenu imposable:     %s\n", FormatMoney(result.GrossIncome))
	fmt.Printf("  Parts fiscales:       %.1f\n", result.Parts)
	fmt.Printf("  Quotient familial:    %s\n", FormatMoney(result.TaxablePerPart))
	fmt.Println()

	if len(result.Breakdown) > 0 {
		fmt.Println("  Détail par tranche (par part):")
		fmt.Println("  ──────────────────────────────────────────────────")
		for _, line := range result.Breakdown {
			upper := "∞"
			if !math.IsInf(line.Upper, 1) {
				upper = fmt.Sprintf("%.0f", line.Upper)
			}
			fmt.Printf("    %8.0f – %8s  à %5s : %s\n",
				line.Lower, upper, FormatPercent(line.Rate), FormatMoney(line.Tax))
		}
		fmt.Println()
	}

	fmt.Printf("  Impôt brut (quotient): %s\n", FormatMoney(result.GrossTaxPerPart))
	fmt.Printf("  Impôt brut (foyer):    %s\n", FormatMoney(result.GrossTaxTotal))
	if result.RebateApplied > 0 {
		fmt.Printf("  Décote:                -%s\n", FormatMoney(result.RebateApplied))
	}
	if result.CapApplied > 0 {
		fmt.Printf("  Plafonnement:          +%s\n", FormatMoney(result.CapApplied))
	}
	fmt.Printf("  Impôt net:             %s\n", FormatMoney(result.NetTax))
	fmt.Println()
	fmt.Printf("  Taux marginal:  %s\n", FormatPercent(result.MarginalRate))
	fmt.Printf("  Taux moyen:     %s\n", FormatPercent(result.AverageRate))
	fmt.Printf("  Taux effectif:  %s\n", FormatPercent(result.EffectiveRate))
	fmt.Printf("  Revenu après impôt: %s\n", FormatMoney(result.AfterTaxIncome))
}

// PrintTrajectory prints a run summary: distribution at the endpoints and
// the first/last indicator points.
func PrintTrajectory(name string, traj *Trajectory, bands []IncomeBand) {
	fmt.Printf("═══ %s ═══\n\n", name)

	first, last := traj.States[0], traj.Final()
	fmt.Printf("  %-24s %14s %14s\n", "Tranche",
		fmt.Sprintf("t=%.1f", traj.Times[0]), fmt.Sprintf("t=%.1f", traj.Times[len(traj.Times)-1]))
	for i, band := range bands {
		upper := "∞"
		if i < len(bands)-1 {
			upper = fmt.Sprintf("%.0f", band.Upper)
		}
		fmt.Printf("  %8.0f – %-13s %14.0f %14.0f\n", band.Lower, upper, first[i], last[i])
	}
	fmt.Printf("  %-24s %14.0f %14.0f\n", "Total", first.Total(), last.Total())
	fmt.Println()

	if len(traj.Indicators) > 0 {
		a, b := traj.Indicators[0], traj.Indicators[len(traj.Indicators)-1]
		fmt.Printf("  Recettes fiscales:  %s → %s\n", FormatMoneyCompact(a.FiscalReceipts), FormatMoneyCompact(b.FiscalReceipts))
		fmt.Printf("  Revenu moyen:       %s → %s\n", FormatMoneyCompact(a.MeanIncome), FormatMoneyCompact(b.MeanIncome))
		fmt.Printf("  Gini:               %.4f → %.4f\n", a.Gini, b.Gini)
		fmt.Printf("  Part tranche haute: %s → %s\n", FormatPercent(a.TopBracketShare), FormatPercent(b.TopBracketShare))
		fmt.Println()
	}

	for _, w := range traj.Warnings {
		fmt.Printf("  ⚠ %s\n", w)
	}
}

// PrintStationary prints a stationary distribution.
func PrintStationary(result *StationaryResult, bands []IncomeBand) {
	fmt.Println("═══ Distribution stationnaire ═══")
	fmt.Println()
	for i, band := range bands {
		upper := "∞"
		if i < len(bands)-1 {
			upper = fmt.Sprintf("%.0f", band.Upper)
		}
		fmt.Printf("  %8.0f – %-10s %s\n", band.Lower, upper, FormatPercent(result.Pi[i]))
	}
	fmt.Printf("\n  Résidu ‖π·Q‖: %.3e\n", result.Residual)
	for _, w := range result.Warnings {
		fmt.Printf("  ⚠ %s\n", w)
	}
}

// WriteTrajectoryCSV exports a trajectory with its indicators, one row
// per checkpoint.
func WriteTrajectoryCSV(traj *Trajectory, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"time"}
	for i := range traj.States[0] {
		header = append(header, fmt.Sprintf("bracket_%d", i+1))
	}
	header = append(header, "total", "fiscal_receipts", "mean_income", "gini", "upward_mobility", "top_bracket_share")
	if err := w.Write(header); err != nil {
		return err
	}

	for t := range traj.Times {
		row := []string{strconv.FormatFloat(traj.Times[t], 'f', 4, 64)}
		for _, n := range traj.States[t] {
			row = append(row, strconv.FormatFloat(n, 'f', 2, 64))
		}
		row = append(row, strconv.FormatFloat(traj.States[t].Total(), 'f', 2, 64))
		if t < len(traj.Indicators) {
			ind := traj.Indicators[t]
			row = append(row,
				strconv.FormatFloat(ind.FiscalReceipts, 'f', 2, 64),
				strconv.FormatFloat(ind.MeanIncome, 'f', 2, 64),
				strconv.FormatFloat(ind.Gini, 'f', 6, 64),
				strconv.FormatFloat(ind.UpwardMobility, 'f', 4, 64),
				strconv.FormatFloat(ind.TopBracketShare, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteRateCurveCSV exports a tax rate curve.
func WriteRateCurveCSV(curve []RateCurvePoint, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"income", "net_tax", "marginal_rate", "average_rate", "effective_rate"}); err != nil {
		return err
	}
	for _, p := range curve {
		row := []string{
			strconv.FormatFloat(p.Income, 'f', 2, 64),
			strconv.FormatFloat(p.NetTax, 'f', 2, 64),
			strconv.FormatFloat(p.MarginalRate, 'f', 4, 64),
			strconv.FormatFloat(p.AverageRate, 'f', 4, 64),
			strconv.FormatFloat(p.EffectiveRate, 'f', 4, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
