package calculator

import (
	"sort"
	"strings"
)

// FormulaTable holds named sharp-bookmaker weight tables, e.g.
// "sully" -> {"pinnacle": 0.6, "circa": 0.4}. Bookmaker names are matched
// case-insensitively.
type FormulaTable map[string]map[string]float64

// Lookup returns the weights of a formula with lower-cased bookmaker keys.
func (t FormulaTable) Lookup(name string) (map[string]float64, bool) {
	weights, ok := t[name]
	if !ok {
		return nil, false
	}
	return normalizeWeights(weights), true
}

// Names lists configured formulas.
func (t FormulaTable) Names() []string {
	out := make([]string, 0, len(t))
	for name := range t {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func normalizeWeights(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for bk, w := range weights {
		out[strings.ToLower(strings.TrimSpace(bk))] = w
	}
	return out
}
