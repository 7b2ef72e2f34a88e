// Package idgen generates and validates the identifiers the service mints
// or accepts from producers.
package idgen

import "github.com/google/uuid"

// New returns a time-ordered UUIDv7 string, used for message ids the
// producer did not supply. Time ordering keeps generated ids roughly sorted
// with append order, which makes the rows easier to eyeball. Falls back to a
// random UUIDv4 if v7 generation fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
