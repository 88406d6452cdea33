package validation

import (
	"regexp"
	"strings"

	"github.com/Vodeneev/evledger/internal/pkg/enums"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	spaces       = regexp.MustCompile(`\s+`)
)

// Sanitizer implements data sanitization
type Sanitizer struct{}

// NewSanitizer creates a new sanitizer
func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// SanitizeRaw cleans collector strings in place before validation.
func (s *Sanitizer) SanitizeRaw(raw *models.RawBettingLine) {
	if raw == nil {
		return
	}

	raw.Bookmaker = s.sanitizeString(raw.Bookmaker)
	raw.League = strings.ToUpper(s.sanitizeString(raw.League))
	raw.RawMarket = s.sanitizeString(raw.RawMarket)
	raw.RawSubject = s.sanitizeString(raw.RawSubject)
	raw.RawTeam = s.sanitizeString(raw.RawTeam)
	raw.Position = strings.ToUpper(s.sanitizeString(raw.Position))
	raw.JerseyNumber = strings.TrimLeft(s.sanitizeString(raw.JerseyNumber), "#")
	raw.Period = strings.ToUpper(s.sanitizeString(raw.Period))
	raw.Label = s.sanitizeLabel(raw.Label)
	if raw.Game != nil {
		raw.Game.ID = s.sanitizeString(raw.Game.ID)
		raw.Game.AwayTeam = s.sanitizeString(raw.Game.AwayTeam)
		raw.Game.HomeTeam = s.sanitizeString(raw.Game.HomeTeam)
	}
}

func (s *Sanitizer) sanitizeString(str string) string {
	sanitized := controlChars.ReplaceAllString(str, "")
	sanitized = strings.TrimSpace(spaces.ReplaceAllString(sanitized, " "))

	if len(sanitized) > 200 {
		sanitized = sanitized[:200]
	}
	return sanitized
}

// sanitizeLabel maps over/under spellings onto Over/Under; side names are kept.
func (s *Sanitizer) sanitizeLabel(label string) string {
	sanitized := s.sanitizeString(label)
	switch strings.ToLower(sanitized) {
	case "over", "o", "more", "higher":
		return enums.LabelOver
	case "under", "u", "less", "lower":
		return enums.LabelUnder
	}
	return sanitized
}
