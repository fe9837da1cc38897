package store

import "github.com/google/uuid"

// newID generates a new primary key for entities stored with a UUID id
// column.
func newID() string {
	return uuid.NewString()
}
