package engine

import "errors"

// Sentinel kinds for engine errors.
var (
	// ErrPersistFailed wraps a store failure. The in-memory change has
	// already been applied when it is returned.
	ErrPersistFailed  = errors.New("board persistence failed")
	ErrNotEditing     = errors.New("board is not being edited")
	ErrAlreadyEditing = errors.New("board is already being edited")
)
