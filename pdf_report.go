package main

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/go-pdf/fpdf"
)

const pdfContentWidth = 190.0 // A4 portrait minus default margins

// pdfReport wraps the document with the cp1252 translator needed for
// euro signs and French accents in the core fonts.
type pdfReport struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newPDFReport() *pdfReport {
	pdf := fpdf.New("P", "mm", "A4", "")
	return &pdfReport{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (r *pdfReport) output() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *pdfReport) title(text string) {
	r.pdf.AddPage()
	r.pdf.SetFont("Arial", "B", 20)
	r.pdf.CellFormat(pdfContentWidth, 12, r.tr(text), "", 1, "C", false, 0, "")
	r.pdf.SetFont("Arial", "I", 10)
	r.pdf.CellFormat(pdfContentWidth, 7, r.tr(fmt.Sprintf("Généré le %s", time.Now().Format("02/01/2006"))), "", 1, "C", false, 0, "")
	r.pdf.Ln(6)
}

func (r *pdfReport) sectionHeader(text string) {
	r.pdf.SetFillColor(235, 238, 245)
	r.pdf.SetFont("Arial", "B", 12)
	r.pdf.CellFormat(pdfContentWidth, 8, r.tr(text), "1", 1, "L", true, 0, "")
	r.pdf.SetFont("Arial", "", 10)
}

func (r *pdfReport) keyValue(key, value string) {
	r.pdf.CellFormat(pdfContentWidth*0.55, 7, r.tr(key), "LR", 0, "L", false, 0, "")
	r.pdf.CellFormat(pdfContentWidth*0.45, 7, r.tr(value), "LR", 1, "R", false, 0, "")
}

func (r *pdfReport) closeBox() {
	r.pdf.CellFormat(pdfContentWidth, 0.5, "", "T", 1, "L", false, 0, "")
	r.pdf.Ln(5)
}

func pdfBandLabel(lower, upper float64) string {
	if math.IsInf(upper, 1) {
		return fmt.Sprintf("%.0f et plus", lower)
	}
	return fmt.Sprintf("%.0f a %.0f", lower, upper)
}

// GenerateTaxPDFReport renders an individual computation: inputs, the
// per-bracket table and the derived rates.
func GenerateTaxPDFReport(result TaxResult) ([]byte, error) {
	r := newPDFReport()
	r.title("Calcul de l'impôt sur le revenu")

	r.sectionHeader("Foyer fiscal")
	r.keyValue("Revenu imposable", FormatMoney(result.GrossIncome))
	r.keyValue("Parts fiscales", fmt.Sprintf("%.1f", result.Parts))
	r.keyValue("Quotient familial", FormatMoney(result.TaxablePerPart))
	r.closeBox()

	if len(result.Breakdown) > 0 {
		r.sectionHeader("Détail par tranche (par part)")
		r.pdf.SetFont("Arial", "B", 10)
		r.pdf.CellFormat(pdfContentWidth*0.40, 7, r.tr("Tranche"), "LR", 0, "L", false, 0, "")
		r.pdf.CellFormat(pdfContentWidth*0.15, 7, r.tr("Taux"), "LR", 0, "R", false, 0, "")
		r.pdf.CellFormat(pdfContentWidth*0.22, 7, r.tr("Assiette"), "LR", 0, "R", false, 0, "")
		r.pdf.CellFormat(pdfContentWidth*0.23, 7, r.tr("Impôt"), "LR", 1, "R", false, 0, "")
		r.pdf.SetFont("Arial", "", 10)
		for _, line := range result.Breakdown {
			r.pdf.CellFormat(pdfContentWidth*0.40, 7, r.tr(pdfBandLabel(line.Lower, line.Upper)), "LR", 0, "L", false, 0, "")
			r.pdf.CellFormat(pdfContentWidth*0.15, 7, FormatPercent(line.Rate), "LR", 0, "R", false, 0, "")
			r.pdf.CellFormat(pdfContentWidth*0.22, 7, r.tr(FormatMoney(line.Taxable)), "LR", 0, "R", false, 0, "")
			r.pdf.CellFormat(pdfContentWidth*0.23, 7, r.tr(FormatMoney(line.Tax)), "LR", 1, "R", false, 0, "")
		}
		r.closeBox()
	}

	r.sectionHeader("Résultat")
	r.keyValue("Impôt brut (foyer)", FormatMoney(result.GrossTaxTotal))
	if result.RebateApplied > 0 {
		r.keyValue("Décote", "-"+FormatMoney(result.RebateApplied))
	}
	if result.CapApplied > 0 {
		r.keyValue("Plafonnement du quotient", "+"+FormatMoney(result.CapApplied))
	}
	r.keyValue("Impôt net", FormatMoney(result.NetTax))
	r.keyValue("Taux marginal", FormatPercent(result.MarginalRate))
	r.keyValue("Taux moyen", FormatPercent(result.AverageRate))
	r.keyValue("Taux effectif", FormatPercent(result.EffectiveRate))
	r.keyValue("Revenu après impôt", FormatMoney(result.AfterTaxIncome))
	r.closeBox()

	return r.output()
}

// GeneratePopulationPDFReport renders a population run: parameters,
// initial and final distributions and the indicator evolution.
func GeneratePopulationPDFReport(name string, traj *Trajectory, bands []IncomeBand, params ModelParams) ([]byte, error) {
	if len(traj.States) == 0 {
		return nil, &InvalidInputError{Field: "trajectory", Reason: "empty trajectory"}
	}
	r := newPDFReport()
	r.title("Dynamique de population : " + name)

	r.sectionHeader("Paramètres")
	r.keyValue("Croissance économique (g)", FormatPercent(params.Growth))
	r.keyValue("Inflation (pi)", FormatPercent(params.Inflation))
	r.keyValue("Mobilité ascendante (alpha)", FormatPercent(params.MobilityUp))
	r.keyValue("Mobilité descendante (beta)", FormatPercent(params.MobilityDown))
	r.keyValue("Choc fiscal (tau)", FormatPercent(params.TaxShock))
	r.closeBox()

	first, last := traj.States[0], traj.Final()
	r.sectionHeader(fmt.Sprintf("Répartition par tranche (t=%.1f et t=%.1f)", traj.Times[0], traj.Times[len(traj.Times)-1]))
	r.pdf.SetFont("Arial", "B", 10)
	r.pdf.CellFormat(pdfContentWidth*0.40, 7, r.tr("Tranche de revenu"), "LR", 0, "L", false, 0, "")
	r.pdf.CellFormat(pdfContentWidth*0.30, 7, "Initiale", "LR", 0, "R", false, 0, "")
	r.pdf.CellFormat(pdfContentWidth*0.30, 7, "Finale", "LR", 1, "R", false, 0, "")
	r.pdf.SetFont("Arial", "", 10)
	for i, band := range bands {
		r.pdf.CellFormat(pdfContentWidth*0.40, 7, r.tr(pdfBandLabel(band.Lower, band.Upper)), "LR", 0, "L", false, 0, "")
		r.pdf.CellFormat(pdfContentWidth*0.30, 7, fmt.Sprintf("%.0f", first[i]), "LR", 0, "R", false, 0, "")
		r.pdf.CellFormat(pdfContentWidth*0.30, 7, fmt.Sprintf("%.0f", last[i]), "LR", 1, "R", false, 0, "")
	}
	r.closeBox()

	if len(traj.Indicators) > 0 {
		a, b := traj.Indicators[0], traj.Indicators[len(traj.Indicators)-1]
		r.sectionHeader("Indicateurs (début et fin)")
		r.keyValue("Recettes fiscales", fmt.Sprintf("%s / %s", FormatMoneyCompact(a.FiscalReceipts), FormatMoneyCompact(b.FiscalReceipts)))
		r.keyValue("Revenu moyen", fmt.Sprintf("%s / %s", FormatMoneyCompact(a.MeanIncome), FormatMoneyCompact(b.MeanIncome)))
		r.keyValue("Indice de Gini", fmt.Sprintf("%.4f / %.4f", a.Gini, b.Gini))
		r.keyValue("Part tranche haute", fmt.Sprintf("%s / %s", FormatPercent(a.TopBracketShare), FormatPercent(b.TopBracketShare)))
		r.keyValue("Flux ascendant", fmt.Sprintf("%.1f / %.1f", a.UpwardMobility, b.UpwardMobility))
		r.closeBox()
	}

	if len(traj.Warnings) > 0 {
		r.sectionHeader("Avertissements")
		for _, w := range traj.Warnings {
			r.pdf.CellFormat(pdfContentWidth, 7, r.tr(w.String()), "LR", 1, "L", false, 0, "")
		}
		r.closeBox()
	}

	return r.output()
}
