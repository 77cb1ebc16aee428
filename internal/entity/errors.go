package entity

import "errors"

// Domain errors for the entity package.
var (
	// ErrInvalidID is returned when an entity id string is not "domain.object_id".
	ErrInvalidID = errors.New("entity: invalid id")
)
