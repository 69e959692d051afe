package repositories

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict means a compare-and-set lost: the row was not in the expected status.
	ErrStatusConflict = errors.New("workshop status changed concurrently")
	ErrDuplicate      = errors.New("record already exists")
)
