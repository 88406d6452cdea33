package enums

// MarketDomain separates player props from game lines.
type MarketDomain string

const (
	PlayerProps MarketDomain = "PlayerProps"
	Gamelines   MarketDomain = "Gamelines"
)

func (d MarketDomain) Valid() bool {
	return d == PlayerProps || d == Gamelines
}

// EntityKind is the kind of a canonical entity.
type EntityKind string

const (
	KindSubject EntityKind = "subject"
	KindTeam    EntityKind = "team"
	KindMarket  EntityKind = "market"
)

func (k EntityKind) Valid() bool {
	switch k {
	case KindSubject, KindTeam, KindMarket:
		return true
	}
	return false
}

const (
	LabelOver  = "Over"
	LabelUnder = "Under"
)

// Opposite returns the other side of an over/under label. Side labels
// (team names) have no fixed opposite and return "".
func Opposite(label string) string {
	switch label {
	case LabelOver:
		return LabelUnder
	case LabelUnder:
		return LabelOver
	}
	return ""
}
