package model

import "errors"

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a compare-and-set update lost a race.
	ErrConflict = errors.New("conflicting update")
)
