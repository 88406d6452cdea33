package calculator

import (
	"errors"
	"math"
	"testing"

	"github.com/Vodeneev/evledger/internal/pkg/enums"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

func TestRound3(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{0.5236, 0.524},
		{0.0005, 0.001},
		{-0.0005, -0.001},
		{0.58000000000000007, 0.58},
		{-0.04449, -0.044},
	}
	for _, tt := range tests {
		if got := Round3(tt.input); got != tt.expected {
			t.Errorf("Round3(%v) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestExpectedValueRounding(t *testing.T) {
	// 0.667*0.5 - 0.333 = 0.0005, rounded half away from zero
	if got := ExpectedValue(0.667, 1.5); got != 0.001 {
		t.Errorf("ExpectedValue(0.667, 1.5) = %v, want 0.001", got)
	}
	if got := ExpectedValue(0.5, 2.0); got != 0 {
		t.Errorf("ExpectedValue(0.5, 2.0) = %v, want 0", got)
	}
	if got := ExpectedValue(0.5, 1.91); got != -0.045 {
		t.Errorf("ExpectedValue(0.5, 1.91) = %v, want -0.045", got)
	}
}

func TestWeightedProbability(t *testing.T) {
	got, ok := WeightedProbability(
		map[string]float64{"pinnacle": 0.60, "circa": 0.55},
		map[string]float64{"pinnacle": 0.6, "circa": 0.4},
	)
	if !ok || got != 0.58 {
		t.Errorf("weighted = %v, %v; want 0.58", got, ok)
	}
	if _, ok := WeightedProbability(map[string]float64{"x": 0.5}, map[string]float64{}); ok {
		t.Error("zero total weight should not produce a probability")
	}
}

func line(bookmaker, label string, value, odds float64) models.BettingLine {
	return models.BettingLine{
		ID:           models.LineID(bookmaker, "NBA", "Points", "LeBron James", label),
		Bookmaker:    bookmaker,
		League:       "NBA",
		MarketDomain: enums.PlayerProps,
		Market:       "Points",
		Subject:      "LeBron James",
		Label:        label,
		Line:         models.Float64(value),
		Odds:         odds,
	}
}

func TestProcessSymmetricDevig(t *testing.T) {
	lines := []models.BettingLine{
		line("Pinnacle", "Over", 25.5, 1.91),
		line("Pinnacle", "Under", 25.5, 1.91),
		line("PrizePicks", "Over", 25.5, 2.0),
	}
	out, rep := Process(lines, map[string]float64{"pinnacle": 1}, "sully")

	for _, l := range out {
		if l.Metrics == nil || l.Metrics.TwPrb == nil {
			t.Fatalf("%s: no tw_prb", l.ID)
		}
		if *l.Metrics.TwPrb != 0.5 {
			t.Errorf("%s: tw_prb = %v, want 0.5", l.ID, *l.Metrics.TwPrb)
		}
		if l.Metrics.EVFormula != "sully" {
			t.Errorf("%s: formula = %q", l.ID, l.Metrics.EVFormula)
		}
	}
	if out[0].Metrics.ImplPrb != 0.524 {
		t.Errorf("impl_prb = %v, want 0.524", out[0].Metrics.ImplPrb)
	}
	if *out[2].Metrics.EV != 0 {
		t.Errorf("PrizePicks ev = %v, want 0", *out[2].Metrics.EV)
	}
	if *out[0].Metrics.EV != -0.045 {
		t.Errorf("sharp ev = %v, want -0.045", *out[0].Metrics.EV)
	}
	if rep.Devigged != 2 || rep.WithEV != 3 || rep.Outcomes != 2 {
		t.Errorf("report = %+v", rep)
	}
}

func TestProcessWeightsSharpSources(t *testing.T) {
	lines := []models.BettingLine{
		// 0.6 / 0.4 -> tw 0.60
		line("Pinnacle", "Over", 25.5, 1/0.6),
		line("Pinnacle", "Under", 25.5, 2.5),
		// 0.55 / 0.45 -> tw 0.55
		line("Circa", "Over", 25.5, 1/0.55),
		line("Circa", "Under", 25.5, 1/0.45),
		line("PrizePicks", "Over", 25.5, 2.0),
	}
	out, _ := Process(lines, map[string]float64{"Pinnacle": 0.6, "circa": 0.4}, "sully")

	got := out[4].Metrics.TwPrb
	if got == nil || *got != 0.58 {
		t.Fatalf("weighted tw_prb = %v, want 0.58", got)
	}
	if ev := *out[4].Metrics.EV; ev != 0.16 {
		t.Errorf("ev = %v, want 0.16", ev)
	}
}

func TestProcessOneSidedMarket(t *testing.T) {
	lines := []models.BettingLine{
		line("Pinnacle", "Over", 25.5, 1.91),
		line("Pinnacle", "Under", 26.5, 1.91), // different line value, not a complement
		line("PrizePicks", "Over", 25.5, 2.0),
	}
	out, rep := Process(lines, map[string]float64{"pinnacle": 1}, "sully")

	for _, l := range out {
		if l.Metrics == nil {
			t.Fatalf("%s: impl_prb missing", l.ID)
		}
		if l.Metrics.TwPrb != nil || l.Metrics.EV != nil {
			t.Errorf("%s: one-sided market produced tw_prb/ev", l.ID)
		}
	}
	if rep.OneSided != 2 || rep.WithEV != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestProcessAmbiguousMatch(t *testing.T) {
	lines := []models.BettingLine{
		line("Pinnacle", "Over", 25.5, 1.91),
		line("Pinnacle", "Under", 25.5, 1.91),
		line("Pinnacle", "Under", 25.5, 3.0),
		line("PrizePicks", "Under", 25.5, 1.8),
	}
	lines[2].ID += ":dup"
	_, rep := Process(lines, map[string]float64{"pinnacle": 1}, "sully")

	if rep.Ambiguous != 1 || rep.Devigged != 0 || rep.WithEV != 0 {
		t.Fatalf("report = %+v, want 1 ambiguous and nothing devigged", rep)
	}
	var amb *AmbiguousMatchError
	if !errors.As(rep.Errors[0], &amb) || len(amb.Complements) != 2 {
		t.Errorf("errors = %v", rep.Errors)
	}
	for _, l := range lines {
		if l.Metrics.TwPrb != nil || l.Metrics.EV != nil {
			t.Errorf("%s: tw_prb/ev set from an ambiguous group: %+v", l.ID, l.Metrics)
		}
	}
}

func TestProcessMalformedRowsDoNotAbort(t *testing.T) {
	bad := line("PrizePicks", "Over", 25.5, math.NaN())
	noLine := line("Underdog", "Over", 25.5, 1.9)
	noLine.Line = nil
	lines := []models.BettingLine{
		bad,
		noLine,
		line("Pinnacle", "Over", 25.5, 1.91),
		line("Pinnacle", "Under", 25.5, 1.91),
	}
	out, rep := Process(lines, map[string]float64{"pinnacle": 1}, "sully")

	if rep.Malformed != 2 {
		t.Errorf("malformed = %d, want 2", rep.Malformed)
	}
	if out[0].Metrics != nil || out[1].Metrics != nil {
		t.Error("malformed rows should carry no metrics")
	}
	if out[2].Metrics == nil || out[2].Metrics.EV == nil {
		t.Error("valid rows lost their EV")
	}
}

func TestProcessWithoutSharpsOnlyImplied(t *testing.T) {
	lines := []models.BettingLine{line("PrizePicks", "Over", 25.5, 2.0)}
	lines[0].Metrics = &models.Metrics{ImplPrb: 0.1, EV: models.Float64(1)}

	out, _ := Process(lines, nil, "")
	if out[0].Metrics.ImplPrb != 0.5 || out[0].Metrics.EV != nil {
		t.Errorf("metrics = %+v, want fresh impl_prb only", out[0].Metrics)
	}
}

func TestNewEngine(t *testing.T) {
	table := FormulaTable{"sully": {"Pinnacle": 1}}
	if _, err := NewEngine(table, "missing"); err == nil {
		t.Error("unknown formula accepted")
	}
	e, err := NewEngine(table, "sully")
	if err != nil {
		t.Fatal(err)
	}
	out, rep := e.Run([]models.BettingLine{
		line("pinnacle", "Over", 25.5, 1.91),
		line("pinnacle", "Under", 25.5, 1.91),
	})
	if rep.Devigged != 2 || out[0].Metrics.EVFormula != "sully" {
		t.Errorf("report = %+v", rep)
	}
}
