package enums

import "strings"

// Sport represents supported sports types
type Sport string

const (
	Football   Sport = "football"
	Basketball Sport = "basketball"
	Baseball   Sport = "baseball"
	Hockey     Sport = "hockey"
	Soccer     Sport = "soccer"
	Tennis     Sport = "tennis"
	Golf       Sport = "golf"
	MMA        Sport = "mma"
	// Esports
	Esports Sport = "esports"
)

// LeagueInfo describes a collected league.
type LeagueInfo struct {
	Sport   Sport
	College bool
}

var leagues = map[string]LeagueInfo{
	"NBA":   {Sport: Basketball},
	"WNBA":  {Sport: Basketball},
	"NCAAB": {Sport: Basketball, College: true},
	"NFL":   {Sport: Football},
	"NCAAF": {Sport: Football, College: true},
	"MLB":   {Sport: Baseball},
	"NHL":   {Sport: Hockey},
	"MLS":   {Sport: Soccer},
	"EPL":   {Sport: Soccer},
	"ATP":   {Sport: Tennis},
	"WTA":   {Sport: Tennis},
	"PGA":   {Sport: Golf},
	"UFC":   {Sport: MMA},
	"CSGO":  {Sport: Esports},
	"CS2":   {Sport: Esports},
	"LOL":   {Sport: Esports},
	"DOTA2": {Sport: Esports},
	"VAL":   {Sport: Esports},
	"COD":   {Sport: Esports},
}

// League looks up a league by its code (case-insensitive).
func League(code string) (LeagueInfo, bool) {
	info, ok := leagues[strings.ToUpper(strings.TrimSpace(code))]
	return info, ok
}

// SportOf returns the sport a league belongs to. Unknown leagues map to a
// sport named after the league itself so market partitions never collide.
func SportOf(league string) Sport {
	if info, ok := League(league); ok {
		return info.Sport
	}
	return Sport(strings.ToLower(strings.TrimSpace(league)))
}

// IsCollege reports whether the league is an NCAA competition.
func IsCollege(league string) bool {
	info, ok := League(league)
	return ok && info.College
}

// IsEsports reports whether the league is an esports title.
func IsEsports(league string) bool {
	info, ok := League(league)
	return ok && info.Sport == Esports
}

// IsCollegeFootball is the one domain where team naming is noisy enough to
// down-weight team distance.
func IsCollegeFootball(league string) bool {
	info, ok := League(league)
	return ok && info.College && info.Sport == Football
}
