package domain

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable marks a persistence backend that could not be reached.
// Durable drivers wrap their failures with it so callers can select the
// degraded derivation paths with errors.Is.
var ErrStoreUnavailable = errors.New("store unavailable")

// EntityType names a persisted entity kind for error reporting.
type EntityType string

const (
	EntitySequenceCounter EntityType = "sequence_counter"
	EntityGeneratedLot    EntityType = "generated_lot"
	EntityLotMapping      EntityType = "lot_mapping"
)

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
