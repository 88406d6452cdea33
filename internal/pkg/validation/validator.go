package validation

import (
	"errors"
	"fmt"
	"math"

	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// ValidationError reports a line that is missing a required field or carries
// a value of the wrong type. A store call that sees one persists nothing.
type ValidationError struct {
	Index  int // position in the batch, -1 if unknown
	LineID string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	where := ""
	switch {
	case e.LineID != "":
		where = fmt.Sprintf(" (line %s)", e.LineID)
	case e.Index >= 0:
		where = fmt.Sprintf(" (line #%d)", e.Index)
	}
	return fmt.Sprintf("validation failed%s: %s %s", where, e.Field, e.Reason)
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// maxReported caps how many per-line errors one batch error carries.
const maxReported = 20

// Validator implements data validation
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateRaw checks a collector line before it is normalized.
func (v *Validator) ValidateRaw(raw *models.RawBettingLine) error {
	if raw == nil {
		return &ValidationError{Index: -1, Field: "line", Reason: "cannot be nil"}
	}
	fail := func(field, reason string) error {
		return &ValidationError{Index: -1, Field: field, Reason: reason}
	}

	if raw.Bookmaker == "" {
		return fail("bookmaker", "cannot be empty")
	}
	if raw.League == "" {
		return fail("league", "cannot be empty")
	}
	if !raw.MarketDomain.Valid() {
		return fail("market_domain", fmt.Sprintf("unknown value %q", raw.MarketDomain))
	}
	if raw.RawMarket == "" {
		return fail("raw_market", "cannot be empty")
	}
	if raw.RawSubject == "" {
		return fail("raw_subject", "cannot be empty")
	}
	if raw.Label == "" {
		return fail("label", "cannot be empty")
	}
	if !isFinite(raw.Odds) || raw.Odds <= 1.0 {
		return fail("odds", fmt.Sprintf("must be decimal odds above 1.0, got %v", raw.Odds))
	}
	if raw.Line == nil {
		return fail("line", "is missing")
	}
	if !isFinite(*raw.Line) {
		return fail("line", "must be finite")
	}
	if raw.Game == nil || raw.Game.ID == "" {
		return fail("game", "is missing")
	}
	return nil
}

// ValidateForStore is the write-boundary schema gate: every line must carry
// label, market_domain, subject, bookmaker, game, league, market, odds and line.
func (v *Validator) ValidateForStore(line *models.BettingLine) error {
	if line == nil {
		return &ValidationError{Index: -1, Field: "line", Reason: "cannot be nil"}
	}
	fail := func(field, reason string) error {
		return &ValidationError{Index: -1, LineID: line.ID, Field: field, Reason: reason}
	}

	if line.Label == "" {
		return fail("label", "is missing")
	}
	if line.MarketDomain == "" {
		return fail("market_domain", "is missing")
	}
	if !line.MarketDomain.Valid() {
		return fail("market_domain", fmt.Sprintf("unknown value %q", line.MarketDomain))
	}
	if line.Subject == "" {
		return fail("subject", "is missing")
	}
	if line.Bookmaker == "" {
		return fail("bookmaker", "is missing")
	}
	if line.Game == nil || line.Game.ID == "" {
		return fail("game", "is missing")
	}
	if line.League == "" {
		return fail("league", "is missing")
	}
	if line.Market == "" {
		return fail("market", "is missing")
	}
	if line.Odds == 0 {
		return fail("odds", "is missing")
	}
	if !isFinite(line.Odds) {
		return fail("odds", "must be a finite number")
	}
	if line.Odds <= 1.0 {
		return fail("odds", fmt.Sprintf("must be decimal odds above 1.0, got %v", line.Odds))
	}
	if line.Line == nil {
		return fail("line", "is missing")
	}
	if !isFinite(*line.Line) {
		return fail("line", "must be a finite number")
	}
	return nil
}

// ValidateBatch runs the schema gate over a whole batch. The returned error
// joins up to maxReported ValidationErrors.
func (v *Validator) ValidateBatch(lines []models.BettingLine) error {
	var errs []error
	for i := range lines {
		err := v.ValidateForStore(&lines[i])
		if err == nil {
			continue
		}
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Index = i
		}
		errs = append(errs, err)
		if len(errs) == maxReported {
			break
		}
	}
	return errors.Join(errs...)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
