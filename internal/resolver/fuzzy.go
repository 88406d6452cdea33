package resolver

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/Vodeneev/evledger/internal/pkg/enums"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

const (
	attrDiscount = 0.0625 // name distance discount per attribute present on both sides

	teamWeight        = 1.0
	collegeTeamWeight = 0.75 // NCAA football team naming is noisy
	positionWeight    = 0.75
	jerseyWeight      = 2.0

	autoAcceptNameDistance = 2

	subjectThreshold = 3.0
	esportsThreshold = 0.0
	teamThreshold    = 2.0
	marketThreshold  = 1.0

	teamBound        = 1
	collegeTeamBound = 3
	positionBound    = 1
	jerseyBound      = 0
)

// fieldScore is the distance of one attribute present on both sides.
type fieldScore struct {
	dist   int
	weight float64
	bound  int
}

// Score is the weighted distance between a surface name and a candidate.
type Score struct {
	Canonical    string
	NameDistance int
	Distance     float64
	Threshold    float64
	Accepted     bool
}

// policy holds the per-domain weights, bounds and base threshold.
type policy struct {
	kind       enums.EntityKind
	teamWeight float64
	teamBound  int
	baseThresh float64
}

func policyFor(kind enums.EntityKind, domain string) policy {
	p := policy{kind: kind, teamWeight: teamWeight, teamBound: teamBound}
	if enums.IsCollegeFootball(domain) {
		p.teamWeight = collegeTeamWeight
	}
	if enums.IsCollege(domain) {
		p.teamBound = collegeTeamBound
	}

	switch kind {
	case enums.KindTeam:
		p.baseThresh = teamThreshold
	case enums.KindMarket:
		p.baseThresh = marketThreshold
	default:
		p.baseThresh = subjectThreshold
		if enums.IsEsports(domain) {
			p.baseThresh = esportsThreshold
		}
	}
	return p
}

// score compares a normalized name and attributes with one candidate. The
// name distance is the minimum over every alias of the candidate.
func (p policy) score(name string, attrs models.Attrs, c candidate) Score {
	nameDist := -1
	for _, alias := range c.aliases {
		d := levenshtein.ComputeDistance(name, alias)
		if nameDist < 0 || d < nameDist {
			nameDist = d
		}
	}
	if nameDist < 0 {
		nameDist = levenshtein.ComputeDistance(name, NormalizeName(c.entity.CanonicalName))
	}

	var fields []fieldScore
	if attrs.TeamAbbr != "" && c.entity.TeamAbbr != "" {
		fields = append(fields, fieldScore{attrDistance(attrs.TeamAbbr, c.entity.TeamAbbr), p.teamWeight, p.teamBound})
	}
	if attrs.Position != "" && c.entity.Position != "" {
		fields = append(fields, fieldScore{attrDistance(attrs.Position, c.entity.Position), positionWeight, positionBound})
	}
	if attrs.JerseyNumber != "" && c.entity.JerseyNumber != "" {
		fields = append(fields, fieldScore{attrDistance(attrs.JerseyNumber, c.entity.JerseyNumber), jerseyWeight, jerseyBound})
	}

	s := Score{
		Canonical:    c.entity.CanonicalName,
		NameDistance: nameDist,
		Distance:     float64(nameDist) * (1 - float64(len(fields))*attrDiscount),
		Threshold:    p.baseThresh,
	}

	withinBounds := true
	for _, f := range fields {
		s.Distance += float64(f.dist) * f.weight
		if f.dist > f.bound {
			withinBounds = false
			continue
		}
		// the closer the field, the more lenient the threshold
		s.Threshold += 1 - float64(f.dist)/float64(f.bound+1)
	}

	switch {
	case nameDist < autoAcceptNameDistance:
		s.Accepted = true
	case !withinBounds:
		s.Accepted = false
	default:
		s.Accepted = s.Distance <= s.Threshold
	}
	return s
}

// bestMatch returns the accepted candidate with the lowest distance.
func (p policy) bestMatch(name string, attrs models.Attrs, cands []candidate) (Score, bool) {
	var best Score
	found := false
	period := ""
	if p.kind == enums.KindMarket {
		period = periodOf(name)
	}
	for _, c := range cands {
		if p.kind == enums.KindMarket && periodOf(NormalizeName(c.entity.CanonicalName)) != period {
			continue
		}
		s := p.score(name, attrs, c)
		if !s.Accepted {
			continue
		}
		if !found || s.Distance < best.Distance {
			best = s
			found = true
		}
	}
	return best, found
}

func attrDistance(a, b string) int {
	return levenshtein.ComputeDistance(strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b)))
}

// periodOf returns the leading period token of a normalized market name
// ("1q", "2h", "f5"), or "" for a full-game market. Markets of different
// periods never match each other.
func periodOf(market string) string {
	token, _, _ := strings.Cut(market, " ")
	if len(token) < 2 || len(token) > 4 {
		return ""
	}
	var digits, letters bool
	for _, r := range token {
		switch {
		case r >= '0' && r <= '9':
			digits = true
		case r >= 'a' && r <= 'z':
			letters = true
		default:
			return ""
		}
	}
	if digits && letters {
		return token
	}
	return ""
}
