package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Vodeneev/evledger/internal/pkg/models"
)

var requiredFields = []string{"label", "market_domain", "subject", "bookmaker", "game", "league", "market", "odds", "line"}

// DecodeBatch decodes a JSON array of lines at the write boundary. A missing
// required field, or a value of the wrong primitive type (odds sent as a
// string), fails the whole batch with a ValidationError.
func DecodeBatch(data []byte) ([]models.BettingLine, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &ValidationError{Index: -1, Field: "body", Reason: fmt.Sprintf("is not a JSON array of lines: %v", err)}
	}

	lines := make([]models.BettingLine, 0, len(raws))
	for i, raw := range raws {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, &ValidationError{Index: i, Field: "line", Reason: "is not a JSON object"}
		}
		for _, f := range requiredFields {
			v, ok := fields[f]
			if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
				return nil, &ValidationError{Index: i, Field: f, Reason: "is missing"}
			}
		}

		var line models.BettingLine
		if err := json.Unmarshal(raw, &line); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				return nil, &ValidationError{
					Index:  i,
					Field:  typeErr.Field,
					Reason: fmt.Sprintf("must be %s, got %s", typeErr.Type, typeErr.Value),
				}
			}
			return nil, &ValidationError{Index: i, Field: "line", Reason: err.Error()}
		}
		lines = append(lines, line)
	}
	return lines, nil
}
