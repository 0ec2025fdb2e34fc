package attendance

import "errors"

var (
	// ErrDuplicateKey is returned when a student id is already taken.
	ErrDuplicateKey = errors.New("id already exists")
	// ErrNotFound is returned when the addressed student or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for missing or malformed fields.
	ErrValidation = errors.New("validation failed")
	// ErrBackend wraps any failure of the persistence backend.
	ErrBackend = errors.New("backend error")
)
