package interfaces

import "github.com/Vodeneev/evledger/internal/pkg/models"

// RawValidator interface for collector line validation
type RawValidator interface {
	// ValidateRaw returns a *validation.ValidationError for a structurally invalid line
	ValidateRaw(raw *models.RawBettingLine) error
}

// RawSanitizer interface for collector line sanitization
type RawSanitizer interface {
	// SanitizeRaw cleans the line in place
	SanitizeRaw(raw *models.RawBettingLine)
}
