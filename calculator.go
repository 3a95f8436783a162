package main

import (
	"math"

	"github.com/goccy/go-json"
)

// Household is the validated input of an individual tax computation.
// Parts is the family-quotient divisor (1 = single adult, 2 = couple,
// +0.5 per dependent child for the first two).
type Household struct {
	Income      float64 `json:"income"`
	Parts       float64 `json:"parts"`
	ApplyRebate bool    `json:"apply_rebate"`
	ApplyCap    bool    `json:"apply_cap"`
}

// RebatePolicy configures the décote, the threshold-based reduction for
// low gross-tax households: decote = max(0, threshold - coefficient*tax).
//
// The official formula only defines thresholds for singles (1 part) and
// couples (2 parts). For parts strictly between 1 and 2 this implementation
// interpolates linearly between the two anchors; below 1 part the single
// threshold applies, above 2 parts the couple threshold applies.
type RebatePolicy struct {
	SingleThreshold float64 `yaml:"single_threshold" json:"single_threshold"`
	CoupleThreshold float64 `yaml:"couple_threshold" json:"couple_threshold"`
	Coefficient     float64 `yaml:"coefficient" json:"coefficient"`
}

// ThresholdFor returns the décote threshold applicable for a parts count.
func (rp RebatePolicy) ThresholdFor(parts float64) float64 {
	switch {
	case parts <= 1:
		return rp.SingleThreshold
	case parts >= 2:
		return rp.CoupleThreshold
	default:
		return rp.SingleThreshold + (rp.CoupleThreshold-rp.SingleThreshold)*(parts-1)
	}
}

// CapPolicy configures the plafonnement: the tax saving attributable to
// parts beyond the first is capped at PerHalfPart euros per extra half-part.
type CapPolicy struct {
	PerHalfPart float64 `yaml:"per_half_part" json:"per_half_part"`
}

// MaxAdvantage returns the largest quotient advantage allowed for a parts
// count: (parts-1) extra parts = 2*(parts-1) half-parts.
func (cp CapPolicy) MaxAdvantage(parts float64) float64 {
	if parts <= 1 {
		return 0
	}
	return cp.PerHalfPart * (parts - 1) * 2
}

// TaxPolicy groups the configurable rebate and cap rules.
type TaxPolicy struct {
	Rebate RebatePolicy `yaml:"rebate" json:"rebate"`
	Cap    CapPolicy    `yaml:"cap" json:"cap"`
}

// DefaultTaxPolicy returns the 2024 décote and plafonnement values.
func DefaultTaxPolicy() TaxPolicy {
	return TaxPolicy{
		Rebate: RebatePolicy{SingleThreshold: 1196, CoupleThreshold: 1970, Coefficient: 0.75},
		Cap:    CapPolicy{PerHalfPart: 1850},
	}
}

// BracketContribution is one line of the per-bracket breakdown: the slice
// of the per-part taxable amount falling in the bracket and its tax.
type BracketContribution struct {
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Rate    float64 `json:"rate"`
	Taxable float64 `json:"taxable"`
	Tax     float64 `json:"tax"`
}

// MarshalJSON writes the top bracket's infinite upper bound as "inf".
func (c BracketContribution) MarshalJSON() ([]byte, error) {
	var upper interface{} = c.Upper
	if math.IsInf(c.Upper, 1) {
		upper = "inf"
	}
	return json.Marshal(struct {
		Lower   float64     `json:"lower"`
		Upper   interface{} `json:"upper"`
		Rate    float64     `json:"rate"`
		Taxable float64     `json:"taxable"`
		Tax     float64     `json:"tax"`
	}{c.Lower, upper, c.Rate, c.Taxable, c.Tax})
}

// TaxResult is the immutable outcome of one tax computation.
type TaxResult struct {
	GrossIncome     float64               `json:"gross_income"`
	Parts           float64               `json:"parts"`
	TaxablePerPart  float64               `json:"taxable_per_part"`
	GrossTaxPerPart float64               `json:"gross_tax_per_part"`
	GrossTaxTotal   float64               `json:"gross_tax_total"`
	RebateApplied   float64               `json:"rebate_applied"`
	CapApplied      float64               `json:"cap_applied"`
	NetTax          float64               `json:"net_tax"`
	MarginalRate    float64               `json:"marginal_rate"`
	AverageRate     float64               `json:"average_rate"`
	EffectiveRate   float64               `json:"effective_rate"`
	AfterTaxIncome  float64               `json:"after_tax_income"`
	Breakdown       []BracketContribution `json:"breakdown,omitempty"`
}

// ComputeTax runs the full individual computation: family-quotient split,
// progressive schedule, décote, plafonnement and derived rates.
//
// AverageRate is the gross schedule rate on the per-part amount;
// EffectiveRate is net tax over household income, with rebate and cap
// effects folded in.
func ComputeTax(h Household, schedule BracketSchedule, policy TaxPolicy) (TaxResult, error) {
	if h.Income < 0 {
		return TaxResult{}, &InvalidInputError{Field: "income", Reason: "must be non-negative"}
	}
	if h.Parts < 0.5 {
		return TaxResult{}, &InvalidInputError{Field: "parts", Reason: "must be at least 0.5"}
	}
	if err := ValidateSchedule(schedule); err != nil {
		return TaxResult{}, err
	}

	if h.Income == 0 {
		return TaxResult{Parts: h.Parts}, nil
	}

	quotient := h.Income / h.Parts
	grossPerPart := TaxOnAmount(schedule, quotient)
	grossTotal := grossPerPart * h.Parts

	net := grossTotal
	var rebate float64
	if h.ApplyRebate {
		threshold := policy.Rebate.ThresholdFor(h.Parts)
		decote := math.Max(0, threshold-policy.Rebate.Coefficient*net)
		rebate = math.Min(decote, net)
		net -= rebate
	}

	var capApplied float64
	if h.ApplyCap && h.Parts > 1 {
		taxAtOnePart := TaxOnAmount(schedule, h.Income)
		advantage := taxAtOnePart - net
		maxAdvantage := policy.Cap.MaxAdvantage(h.Parts)
		if advantage > maxAdvantage {
			capped := math.Max(net, taxAtOnePart-maxAdvantage)
			capApplied = capped - net
			net = capped
		}
	}

	net = math.Max(0, net)

	return TaxResult{
		GrossIncome:     h.Income,
		Parts:           h.Parts,
		TaxablePerPart:  quotient,
		GrossTaxPerPart: grossPerPart,
		GrossTaxTotal:   grossTotal,
		RebateApplied:   rebate,
		CapApplied:      capApplied,
		NetTax:          net,
		MarginalRate:    MarginalRate(schedule, quotient),
		AverageRate:     AverageRate(schedule, quotient),
		EffectiveRate:   net / h.Income,
		AfterTaxIncome:  h.Income - net,
		Breakdown:       bracketBreakdown(schedule, quotient),
	}, nil
}

// bracketBreakdown lists the marginal slice of each bracket touched by the
// per-part taxable amount.
func bracketBreakdown(schedule BracketSchedule, quotient float64) []BracketContribution {
	var breakdown []BracketContribution
	for _, b := range schedule {
		if quotient <= b.Lower {
			break
		}
		taxable := math.Min(quotient, b.Upper) - b.Lower
		if taxable <= 0 {
			continue
		}
		breakdown = append(breakdown, BracketContribution{
			Lower:   b.Lower,
			Upper:   b.Upper,
			Rate:    b.Rate,
			Taxable: taxable,
			Tax:     taxable * b.Rate,
		})
	}
	return breakdown
}

// RateCurvePoint is one sample of the marginal/average/effective rate
// curves over income.
type RateCurvePoint struct {
	Income        float64 `json:"income"`
	NetTax        float64 `json:"net_tax"`
	MarginalRate  float64 `json:"marginal_rate"`
	AverageRate   float64 `json:"average_rate"`
	EffectiveRate float64 `json:"effective_rate"`
}

// RateCurve samples the tax rate curves from 0 to maxIncome for a fixed
// parts count. Feeds the CSV export, PDF report and API curve endpoint.
func RateCurve(schedule BracketSchedule, policy TaxPolicy, parts, maxIncome float64, points int, applyRebate, applyCap bool) ([]RateCurvePoint, error) {
	if maxIncome <= 0 {
		return nil, &InvalidInputError{Field: "max_income", Reason: "must be positive"}
	}
	if points < 2 {
		return nil, &InvalidInputError{Field: "points", Reason: "need at least 2 samples"}
	}

	curve := make([]RateCurvePoint, points)
	step := maxIncome / float64(points-1)
	for i := 0; i < points; i++ {
		income := step * float64(i)
		result, err := ComputeTax(Household{
			Income:      income,
			Parts:       parts,
			ApplyRebate: applyRebate,
			ApplyCap:    applyCap,
		}, schedule, policy)
		if err != nil {
			return nil, err
		}
		curve[i] = RateCurvePoint{
			Income:        income,
			NetTax:        result.NetTax,
			MarginalRate:  result.MarginalRate,
			AverageRate:   result.AverageRate,
			EffectiveRate: result.EffectiveRate,
		}
	}
	return curve, nil
}

// ExampleHousehold is a preset profile used by the CLI demo mode to
// demonstrate typical computations.
type ExampleHousehold struct {
	Name        string  `json:"name"`
	Income      float64 `json:"income"`
	Parts       float64 `json:"parts"`
	Description string  `json:"description"`
}

// ExampleHouseholds returns the preset profiles.
func ExampleHouseholds() []ExampleHousehold {
	return []ExampleHousehold{
		{Name: "Étudiant", Income: 15000, Parts: 1, Description: "Student with a part-time job"},
		{Name: "Salarié moyen", Income: 35000, Parts: 1, Description: "Single median earner"},
		{Name: "Couple avec enfants", Income: 60000, Parts: 2.5, Description: "Married couple with two children"},
		{Name: "Cadre supérieur", Income: 80000, Parts: 2, Description: "Couple without children"},
		{Name: "Très hauts revenus", Income: 200000, Parts: 2, Description: "High-income couple"},
	}
}
