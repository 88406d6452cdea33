package resolver

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Vodeneev/evledger/internal/pkg/enums"
)

// ReferenceCollection is one partition's worth of reference names, such as
// a league roster.
type ReferenceCollection struct {
	Kind    enums.EntityKind `json:"kind"`
	Domain  string           `json:"domain"`
	Entries []Reference      `json:"entries"`
}

// ReadReferences decodes a JSON array of reference collections.
func ReadReferences(r io.Reader) ([]ReferenceCollection, error) {
	var cols []ReferenceCollection
	if err := json.NewDecoder(r).Decode(&cols); err != nil {
		return nil, fmt.Errorf("failed to decode reference collections: %w", err)
	}
	for i, c := range cols {
		if !c.Kind.Valid() {
			return nil, fmt.Errorf("collection %d: unknown entity kind %q", i, c.Kind)
		}
		if c.Domain == "" {
			return nil, fmt.Errorf("collection %d: domain is required", i)
		}
	}
	return cols, nil
}
