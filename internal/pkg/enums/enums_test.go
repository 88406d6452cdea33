package enums

import "testing"

func TestSportOf(t *testing.T) {
	tests := []struct {
		league string
		want   Sport
	}{
		{"NBA", Basketball},
		{"nba", Basketball},
		{"NCAAF", Football},
		{"CS2", Esports},
		{"KBO", Sport("kbo")},
	}
	for _, tt := range tests {
		if got := SportOf(tt.league); got != tt.want {
			t.Errorf("SportOf(%q) = %q, want %q", tt.league, got, tt.want)
		}
	}
}

func TestLeagueFlags(t *testing.T) {
	if !IsCollege("NCAAB") || IsCollege("NBA") {
		t.Error("IsCollege")
	}
	if !IsCollegeFootball("NCAAF") || IsCollegeFootball("NCAAB") {
		t.Error("IsCollegeFootball")
	}
	if !IsEsports("LOL") || IsEsports("NHL") {
		t.Error("IsEsports")
	}
}

func TestOpposite(t *testing.T) {
	if Opposite(LabelOver) != LabelUnder || Opposite(LabelUnder) != LabelOver {
		t.Error("over/under not opposite")
	}
	if Opposite("Lakers") != "" {
		t.Error("side label has no fixed opposite")
	}
}

func TestMarketDomainValid(t *testing.T) {
	if !PlayerProps.Valid() || !Gamelines.Valid() || MarketDomain("Futures").Valid() {
		t.Error("MarketDomain.Valid")
	}
}
