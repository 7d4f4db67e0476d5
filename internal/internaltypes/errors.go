package internaltypes

import "errors"

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrNotFound             = errors.New("not found")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	// ErrConflict is returned by storage when a commit raced a concurrent write.
	ErrConflict = errors.New("conflict")
)
