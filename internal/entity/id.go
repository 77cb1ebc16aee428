package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ID identifies a hub entity by domain and object id, e.g. switch.bed_light.
//
// IDs compare by value and are used directly as map keys.
type ID struct {
	Domain   string
	ObjectID string
}

// NewID builds an ID from its parts.
func NewID(domain, objectID string) ID {
	return ID{Domain: domain, ObjectID: objectID}
}

// ParseID parses the hub's "domain.object_id" notation.
//
// Returns ErrInvalidID if either part is missing.
func ParseID(s string) (ID, error) {
	domain, objectID, ok := strings.Cut(s, ".")
	if !ok || domain == "" || objectID == "" {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID{Domain: domain, ObjectID: objectID}, nil
}

// MustParseID is like ParseID but panics on malformed input.
// Intended for compile-time constants in wiring code and tests.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the hub notation "domain.object_id".
func (id ID) String() string {
	return id.Domain + "." + id.ObjectID
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id.Domain == "" && id.ObjectID == ""
}

// MarshalJSON encodes the ID as its hub notation.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes the hub notation.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding entity id: %w", err)
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
