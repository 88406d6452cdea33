package models

import (
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/enums"
)

// Attrs are the optional identifying attributes of a subject.
// Empty string means unknown.
type Attrs struct {
	TeamAbbr     string `json:"team_abbr,omitempty"`
	Position     string `json:"position,omitempty"`
	JerseyNumber string `json:"jersey_number,omitempty"`
}

// Enrich fills attributes that are unknown in a from b and reports whether
// anything changed. Known attributes are never overwritten.
func (a *Attrs) Enrich(b Attrs) bool {
	changed := false
	if a.TeamAbbr == "" && b.TeamAbbr != "" {
		a.TeamAbbr = b.TeamAbbr
		changed = true
	}
	if a.Position == "" && b.Position != "" {
		a.Position = b.Position
		changed = true
	}
	if a.JerseyNumber == "" && b.JerseyNumber != "" {
		a.JerseyNumber = b.JerseyNumber
		changed = true
	}
	return changed
}

// CanonicalEntity is the authoritative representation of a subject, team
// or market. Identity is (Kind, Domain, CanonicalName).
type CanonicalEntity struct {
	Kind          enums.EntityKind `json:"kind"`
	Domain        string           `json:"domain"`
	CanonicalName string           `json:"canonical_name"`
	Attrs
	CreatedAt time.Time `json:"created_at"`
}

// NameAlias maps a surface string onto a canonical entity within a domain.
type NameAlias struct {
	Kind          enums.EntityKind `json:"kind"`
	Domain        string           `json:"domain"`
	Alias         string           `json:"alias"`
	CanonicalName string           `json:"canonical_name"`
}
