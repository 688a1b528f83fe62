package asset

import (
	"github.com/google/uuid"
)

// NewID returns a time-ordered identifier for a new record.
// UUIDv7 sorts by creation time, which keeps ids unique even when two
// records are created within the same millisecond.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
