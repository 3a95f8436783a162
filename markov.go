package main

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ergodicEigenTolerance: a generator whose second eigenvalue's real part
// is this close to zero has no unique stationary distribution.
const ergodicEigenTolerance = 1e-10

// MarkovModel evolves the bracket distribution as a continuous-time
// Markov chain. Transitions are concentrated on adjacent brackets with a
// small allowance for two-bracket jumps.
type MarkovModel struct {
	Schedule BracketSchedule
	Policy   TaxPolicy
	Bands    []IncomeBand

	effort []float64
}

// NewMarkovModel builds a Markov model over the bands derived from the
// schedule (top bracket closed at topIncome, DefaultTopIncome when 0).
func NewMarkovModel(schedule BracketSchedule, policy TaxPolicy, topIncome float64) (*MarkovModel, error) {
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	if len(schedule) != NumBrackets {
		return nil, &InvalidInputError{Field: "schedule", Reason: fmt.Sprintf("population models need %d brackets", NumBrackets)}
	}
	if topIncome <= 0 {
		topIncome = DefaultTopIncome
	}

	m := &MarkovModel{
		Schedule: schedule,
		Policy:   policy,
		Bands:    IncomeBands(schedule, topIncome),
	}
	m.effort = make([]float64, len(m.Bands))
	for i, band := range m.Bands {
		m.effort[i] = fiscalEffort(band.Mean(), schedule, policy)
	}
	return m, nil
}

// transitionIntensity returns the rate q_ij of moving from bracket i to
// bracket j. Growth and mobility push upward, inflation erosion and the
// downward mobility parameter pull down; the fiscal effort of the source
// bracket discourages climbing. The tax shock tau damps upward intensities
// and amplifies downward ones.
func (m *MarkovModel) transitionIntensity(i, j int, params ModelParams) float64 {
	if i == j {
		return 0
	}
	incomeI := m.Bands[i].Mean()
	incomeJ := m.Bands[j].Mean()

	switch {
	case j == i+1:
		climb := params.Growth + params.Inflation - 0.1*m.effort[i]
		pull := params.MobilityUp * (1 - math.Exp(-0.1*(incomeJ-incomeI)/incomeI))
		return math.Max(0, climb+pull) / (1 + params.TaxShock)
	case j == i-1:
		erosion := -0.05 * params.Inflation
		slide := params.MobilityDown * (1 - math.Exp(-0.1*(incomeI-incomeJ)/incomeI))
		return math.Max(0, erosion+slide) * (1 + params.TaxShock)
	case j-i == 2 || i-j == 2:
		return 0.01 * math.Min(params.MobilityUp, params.MobilityDown)
	default:
		return 0
	}
}

// BuildGenerator assembles the generator matrix Q: off-diagonal entries
// are the transition intensities, the diagonal is the negated row sum so
// every row sums to zero.
func (m *MarkovModel) BuildGenerator(params ModelParams) (*mat.Dense, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	n := len(m.Bands)
	q := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		var rowSum float64
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			rate := m.transitionIntensity(i, j, params)
			q.Set(i, j, rate)
			rowSum += rate
		}
		q.Set(i, i, -rowSum)
	}
	return q, nil
}

// maxExitRate returns max|Q_ii|, the fastest exit rate of the chain.
func maxExitRate(q *mat.Dense) float64 {
	n, _ := q.Dims()
	var max float64
	for i := 0; i < n; i++ {
		if rate := math.Abs(q.At(i, i)); rate > max {
			max = rate
		}
	}
	return max
}

// transitionMatrix discretizes the generator over one step, P = I + dt*Q,
// projected onto the nearest row-stochastic matrix: negative entries are
// clipped to zero and each row renormalized to sum to one. A row summing
// to zero keeps the state in place.
func transitionMatrix(q *mat.Dense, dt float64) *mat.Dense {
	n, _ := q.Dims()
	p := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		var rowSum float64
		for j := 0; j < n; j++ {
			v := dt * q.At(i, j)
			if i == j {
				v += 1
			}
			if v < 0 {
				v = 0
			}
			p.Set(i, j, v)
			rowSum += v
		}
		if rowSum > 0 {
			for j := 0; j < n; j++ {
				p.Set(i, j, p.At(i, j)/rowSum)
			}
		} else {
			p.Set(i, i, 1)
		}
	}
	return p
}

// applyTransition advances the population one step: N(t+dt) = N(t) · P
// (row vector times matrix).
func applyTransition(state PopulationState, p *mat.Dense) PopulationState {
	n := len(state)
	next := make(PopulationState, n)
	for j := 0; j < n; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += state[i] * p.At(i, j)
		}
		next[j] = sum
	}
	return next
}

// Simulate evolves the initial distribution over the span with projected
// first-order stepping, sampling numPoints evenly spaced checkpoints (100
// when numPoints < 2). Checkpoint intervals are subdivided so that every
// sub-step satisfies dt*max|Q_ii| < 1, keeping the projected entries close
// to the true transition probabilities.
func (m *MarkovModel) Simulate(ctx context.Context, initial PopulationState, span TimeSpan, params ModelParams, numPoints int) (*Trajectory, error) {
	if err := ValidateInitialState(initial); err != nil {
		return nil, err
	}
	if err := span.Validate(); err != nil {
		return nil, err
	}
	if numPoints < 2 {
		numPoints = 100
	}

	q, err := m.BuildGenerator(params)
	if err != nil {
		return nil, err
	}

	maxStep := math.Inf(1)
	if rate := maxExitRate(q); rate > 0 {
		maxStep = 0.9 / rate
	}

	checkpoints := linspace(span.Start, span.End, numPoints)
	traj := &Trajectory{
		Times:  checkpoints,
		States: make([]PopulationState, 0, numPoints),
	}

	state := initial.Clone()
	traj.States = append(traj.States, state.Clone())

	for ci := 1; ci < numPoints; ci++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		interval := checkpoints[ci] - checkpoints[ci-1]
		subSteps := 1
		if interval > maxStep {
			subSteps = int(math.Ceil(interval / maxStep))
		}
		dt := interval / float64(subSteps)
		p := transitionMatrix(q, dt)
		for s := 0; s < subSteps; s++ {
			state = applyTransition(state, p)
		}
		traj.States = append(traj.States, state.Clone())
	}

	traj.Indicators = ComputeIndicators(traj, m.Bands, m.Schedule, m.Policy, params)
	return traj, nil
}

// StationaryResult is the stationary distribution of the chain with its
// residual ‖π·Q‖ and any warnings.
type StationaryResult struct {
	Pi       PopulationState `json:"pi"`
	Residual float64         `json:"residual"`
	Warnings []Warning       `json:"warnings,omitempty"`
}

// StationaryDistribution solves π·Q = 0, Σπ = 1 as a constrained least
// squares problem on the stacked system [Qᵀ; 1ᵀ]. When the chain has no
// unique stationary distribution the result falls back to power iteration
// on a projected transition matrix and carries a NonErgodicWarning.
func (m *MarkovModel) StationaryDistribution(params ModelParams) (*StationaryResult, error) {
	q, err := m.BuildGenerator(params)
	if err != nil {
		return nil, err
	}
	n, _ := q.Dims()

	result := &StationaryResult{}
	if !generatorErgodic(q) {
		result.Warnings = append(result.Warnings, Warning{
			Kind:   WarnNonErgodic,
			Detail: "generator has no unique stationary distribution; reporting a power-iteration estimate",
		})
		result.Pi = powerIterationStationary(q)
		result.Residual = stationaryResidual(result.Pi, q)
		return result, nil
	}

	// Stack the normalization constraint under Qᵀ and solve by least
	// squares.
	a := mat.NewDense(n+1, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, q.At(j, i))
		}
	}
	for j := 0; j < n; j++ {
		a.Set(n, j, 1)
	}
	b := mat.NewVecDense(n+1, nil)
	b.SetVec(n, 1)

	var pi mat.VecDense
	if err := pi.SolveVec(a, b); err != nil {
		return nil, &NumericalInstabilityError{Op: "stationary", Detail: err.Error()}
	}

	result.Pi = make(PopulationState, n)
	var total float64
	for i := 0; i < n; i++ {
		v := math.Max(0, pi.AtVec(i))
		result.Pi[i] = v
		total += v
	}
	if total <= 0 {
		return nil, &NumericalInstabilityError{Op: "stationary", Detail: "least squares produced a degenerate distribution"}
	}
	for i := range result.Pi {
		result.Pi[i] /= total
	}
	result.Residual = stationaryResidual(result.Pi, q)
	return result, nil
}

// generatorErgodic reports whether the zero eigenvalue of Q is simple,
// the condition for a unique stationary distribution.
func generatorErgodic(q *mat.Dense) bool {
	vals := generatorEigenvalues(q)
	if len(vals) < 2 {
		return false
	}
	// vals are sorted by descending real part; vals[0] is the structural
	// zero eigenvalue.
	return math.Abs(real(vals[1])) > ergodicEigenTolerance
}

// generatorEigenvalues returns the eigenvalues of Q sorted by descending
// real part.
func generatorEigenvalues(q *mat.Dense) []complex128 {
	var eig mat.Eigen
	if !eig.Factorize(q, mat.EigenNone) {
		return nil
	}
	vals := eig.Values(nil)
	sort.Slice(vals, func(i, j int) bool {
		return real(vals[i]) > real(vals[j])
	})
	return vals
}

// powerIterationStationary estimates a stationary distribution by
// repeatedly applying a projected transition matrix to the uniform
// distribution.
func powerIterationStationary(q *mat.Dense) PopulationState {
	n, _ := q.Dims()
	dt := 0.5
	if rate := maxExitRate(q); rate > 0 {
		dt = 0.9 / rate
	}
	p := transitionMatrix(q, dt)

	pi := make(PopulationState, n)
	for i := range pi {
		pi[i] = 1 / float64(n)
	}
	for iter := 0; iter < 10000; iter++ {
		next := applyTransition(pi, p)
		var delta float64
		for i := range next {
			delta += math.Abs(next[i] - pi[i])
		}
		pi = next
		if delta < 1e-12 {
			break
		}
	}
	return pi.Proportions()
}

// stationaryResidual computes ‖π·Q‖₂.
func stationaryResidual(pi PopulationState, q *mat.Dense) float64 {
	n, _ := q.Dims()
	var norm float64
	for j := 0; j < n; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += pi[i] * q.At(i, j)
		}
		norm += sum * sum
	}
	return math.Sqrt(norm)
}

// StabilityAnalysis summarizes the spectral structure of the chain.
type StabilityAnalysis struct {
	Eigenvalues    []complex128    `json:"-"`
	RealParts      []float64       `json:"eigenvalue_real_parts"`
	RelaxationTime float64         `json:"relaxation_time"`
	Ergodic        bool            `json:"ergodic"`
	Stationary     PopulationState `json:"stationary"`
	Warnings       []Warning       `json:"warnings,omitempty"`
}

// AnalyzeStability computes the generator's eigenvalues, the relaxation
// time (inverse of the slowest non-zero decay rate) and the stationary
// distribution.
func (m *MarkovModel) AnalyzeStability(params ModelParams) (*StabilityAnalysis, error) {
	q, err := m.BuildGenerator(params)
	if err != nil {
		return nil, err
	}
	vals := generatorEigenvalues(q)
	if vals == nil {
		return nil, &NumericalInstabilityError{Op: "eigen", Detail: "eigendecomposition failed"}
	}

	stationary, err := m.StationaryDistribution(params)
	if err != nil {
		return nil, err
	}

	analysis := &StabilityAnalysis{
		Eigenvalues: vals,
		RealParts:   make([]float64, len(vals)),
		Stationary:  stationary.Pi,
		Warnings:    stationary.Warnings,
	}
	for i, v := range vals {
		analysis.RealParts[i] = real(v)
	}

	analysis.RelaxationTime = math.Inf(1)
	if len(vals) > 1 && math.Abs(real(vals[1])) > ergodicEigenTolerance {
		analysis.Ergodic = true
		analysis.RelaxationTime = 1 / math.Abs(real(vals[1]))
	}
	return analysis, nil
}
