package calculator

import "math"

// Round3 rounds half away from zero to 3 decimal places. Every probability
// and EV is rounded with it before storage.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// ImpliedProbability converts decimal odds into a rounded implied probability.
func ImpliedProbability(odds float64) float64 {
	return Round3(1 / odds)
}

// Devig normalizes an implied probability against its complement so the
// pair sums to 1.
func Devig(impl, complement float64) (float64, bool) {
	sum := impl + complement
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, false
	}
	return Round3(impl / sum), true
}

// ExpectedValue is the expected profit per unit staked at odds when the
// outcome wins with probability p.
func ExpectedValue(p, odds float64) float64 {
	potentialWinnings := odds - 1
	return Round3(p*potentialWinnings - (1 - p))
}

// WeightedProbability averages per-bookmaker probabilities by weight.
func WeightedProbability(probs, weights map[string]float64) (float64, bool) {
	var totalWeightedProb, totalWeight float64
	for bk, p := range probs {
		w := weights[bk]
		if w <= 0 {
			continue
		}
		totalWeightedProb += p * w
		totalWeight += w
	}
	if totalWeight <= 0 {
		return 0, false
	}
	return Round3(totalWeightedProb / totalWeight), true
}

// isFinitePositiveOdd checks if a value is a valid decimal odd (> 1.0).
func isFinitePositiveOdd(v float64) bool {
	return v > 1.000001 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
