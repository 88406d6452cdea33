package calculator

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// AmbiguousMatchError means a sharp line has more than one complementary
// line at the same bookmaker. The outcome is skipped, never averaged.
type AmbiguousMatchError struct {
	LineID      string
	Bookmaker   string
	Complements []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous devig match for %s at %s: %d complementary lines (%s)",
		e.LineID, e.Bookmaker, len(e.Complements), strings.Join(e.Complements, ", "))
}

// Report summarizes one Process call.
type Report struct {
	Lines     int     `json:"lines"`
	Malformed int     `json:"malformed"`
	Devigged  int     `json:"devigged"`
	OneSided  int     `json:"one_sided"`
	Ambiguous int     `json:"ambiguous"`
	Outcomes  int     `json:"outcomes"` // outcome keys with a reference probability
	WithEV    int     `json:"with_ev"`
	Errors    []error `json:"-"`
}

// outcomeKey identifies an outcome independent of bookmaker.
type outcomeKey struct {
	line    float64
	league  string
	subject string
	market  string
	label   string
}

// pairKey groups one bookmaker's lines that may complement each other.
type pairKey struct {
	line      float64
	league    string
	subject   string
	market    string
	bookmaker string
}

// Process populates metrics for every line in place and returns the lines.
//
// Lines from bookmakers in sharpWeights are devigged against their
// complementary line; the results are weighted into one reference
// probability per outcome, which is then used to compute EV for every line
// on that outcome. Malformed lines get no metrics and do not stop the batch.
func Process(lines []models.BettingLine, sharpWeights map[string]float64, formulaName string) ([]models.BettingLine, Report) {
	rep := Report{Lines: len(lines)}
	weights := normalizeWeights(sharpWeights)

	valid := make([]bool, len(lines))
	pairs := make(map[pairKey][]int)
	for i := range lines {
		l := &lines[i]
		l.Metrics = nil
		if !isFinitePositiveOdd(l.Odds) || l.Line == nil || math.IsNaN(*l.Line) || math.IsInf(*l.Line, 0) {
			rep.Malformed++
			slog.Warn("Skipping malformed line", "line_id", l.ID, "odds", l.Odds, "has_line", l.Line != nil)
			continue
		}
		valid[i] = true
		l.Metrics = &models.Metrics{ImplPrb: ImpliedProbability(l.Odds)}

		bk := strings.ToLower(l.Bookmaker)
		if _, sharp := weights[bk]; sharp {
			k := pairKey{line: *l.Line, league: l.League, subject: l.Subject, market: l.Market, bookmaker: bk}
			pairs[k] = append(pairs[k], i)
		}
	}

	// outcome -> bookmaker -> devigged probability
	contributions := make(map[outcomeKey]map[string]float64)
	for _, idxs := range pairs {
		complements := make([][]int, len(idxs))
		ambiguous := false
		for n, i := range idxs {
			for _, j := range idxs {
				if lines[j].Label != lines[i].Label {
					complements[n] = append(complements[n], j)
				}
			}
			if len(complements[n]) > 1 {
				ambiguous = true
			}
		}

		// a duplicate anywhere in the group taints every outcome in it
		if ambiguous {
			for n, i := range idxs {
				if len(complements[n]) <= 1 {
					continue
				}
				l := &lines[i]
				ids := make([]string, 0, len(complements[n]))
				for _, j := range complements[n] {
					ids = append(ids, lines[j].ID)
				}
				sort.Strings(ids)
				rep.Ambiguous++
				rep.Errors = append(rep.Errors, &AmbiguousMatchError{LineID: l.ID, Bookmaker: l.Bookmaker, Complements: ids})
				slog.Warn("Ambiguous devig match, outcome skipped", "line_id", l.ID, "bookmaker", l.Bookmaker, "complements", len(ids))
			}
			continue
		}

		for n, i := range idxs {
			l := &lines[i]
			if len(complements[n]) == 0 {
				rep.OneSided++
				continue
			}
			tw, ok := Devig(l.Metrics.ImplPrb, lines[complements[n][0]].Metrics.ImplPrb)
			if !ok {
				rep.OneSided++
				continue
			}
			rep.Devigged++

			k := outcomeKeyOf(l)
			if contributions[k] == nil {
				contributions[k] = make(map[string]float64)
			}
			contributions[k][strings.ToLower(l.Bookmaker)] = tw
		}
	}

	reference := make(map[outcomeKey]float64, len(contributions))
	for k, byBook := range contributions {
		if p, ok := WeightedProbability(byBook, weights); ok {
			reference[k] = p
		}
	}
	rep.Outcomes = len(reference)

	for i := range lines {
		if !valid[i] {
			continue
		}
		l := &lines[i]
		p, ok := reference[outcomeKeyOf(l)]
		if !ok {
			continue
		}
		ev := ExpectedValue(p, l.Odds)
		l.Metrics.TwPrb = models.Float64(p)
		l.Metrics.EV = models.Float64(ev)
		l.Metrics.EVFormula = formulaName
		rep.WithEV++
	}

	return lines, rep
}

func outcomeKeyOf(l *models.BettingLine) outcomeKey {
	return outcomeKey{line: *l.Line, league: l.League, subject: l.Subject, market: l.Market, label: l.Label}
}

// Engine applies a configured formula to batches.
type Engine struct {
	formulas FormulaTable
	formula  string
}

// NewEngine creates an engine using formula from table. An empty formula
// name yields an engine that only computes implied probabilities.
func NewEngine(table FormulaTable, formula string) (*Engine, error) {
	if formula != "" {
		if _, ok := table.Lookup(formula); !ok {
			return nil, fmt.Errorf("unknown ev formula %q (available: %v)", formula, table.Names())
		}
	}
	return &Engine{formulas: table, formula: formula}, nil
}

// Formula returns the active formula name.
func (e *Engine) Formula() string {
	return e.formula
}

// Run processes a batch with the active formula.
func (e *Engine) Run(lines []models.BettingLine) ([]models.BettingLine, Report) {
	weights, _ := e.formulas.Lookup(e.formula)
	return Process(lines, weights, e.formula)
}
