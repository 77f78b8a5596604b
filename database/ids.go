package database

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a time-ordered UUIDv7 string used as a primary key.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func now() time.Time {
	return time.Now().UTC()
}
