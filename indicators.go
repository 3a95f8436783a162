package main

// ComputeIndicators derives the economic indicator series from a
// population trajectory. The same definitions apply to ODE and Markov
// runs: receipts price each bracket at its representative income with
// décote and plafonnement applied, upward mobility is the total flux into
// higher brackets, and the Gini coefficient comes from the discretized
// Lorenz curve of the bracket distribution.
func ComputeIndicators(traj *Trajectory, bands []IncomeBand, schedule BracketSchedule, policy TaxPolicy, params ModelParams) []IndicatorPoint {
	n := len(bands)
	means := make([]float64, n)
	taxPerHead := make([]float64, n)
	for i, band := range bands {
		means[i] = band.Mean()
		taxPerHead[i] = means[i] * fiscalEffort(means[i], schedule, policy)
	}

	// Per-bracket upward transition rates, shared with the rate system.
	upRate := make([]float64, n)
	for i := 0; i < n-1; i++ {
		upRate[i] = mobilityRate(means[i], means[i+1], params.MobilityUp, params.MobilityDown) / (1 + params.TaxShock)
	}

	points := make([]IndicatorPoint, len(traj.States))
	for t, state := range traj.States {
		props := state.Proportions()

		var meanIncome, receipts, upward float64
		for i := 0; i < n; i++ {
			meanIncome += means[i] * props[i]
			receipts += state[i] * taxPerHead[i]
			upward += state[i] * upRate[i]
		}

		points[t] = IndicatorPoint{
			Time:            traj.Times[t],
			TotalPopulation: state.Total(),
			MeanIncome:      meanIncome,
			FiscalReceipts:  receipts,
			UpwardMobility:  upward,
			TopBracketShare: props[n-1],
			Gini:            giniCoefficient(props, means),
		}
	}
	return points
}

// giniCoefficient computes the Gini index of a bracket distribution from
// the discretized Lorenz curve: cumulative population share against
// cumulative income share (brackets are already income-sorted), integrated
// by the trapezoid rule from the origin.
func giniCoefficient(props PopulationState, means []float64) float64 {
	n := len(props)
	var totalIncome float64
	for i := 0; i < n; i++ {
		totalIncome += props[i] * means[i]
	}
	if totalIncome <= 0 {
		return 0
	}

	var area, cumPop, cumIncome float64
	prevPop, prevIncome := 0.0, 0.0
	for i := 0; i < n; i++ {
		cumPop += props[i]
		cumIncome += props[i] * means[i] / totalIncome
		area += 0.5 * (cumIncome + prevIncome) * (cumPop - prevPop)
		prevPop, prevIncome = cumPop, cumIncome
	}

	gini := 1 - 2*area
	if gini < 0 {
		return 0
	}
	return gini
}
