package session

import "errors"

// Error kinds surfaced to commands. Callers match them with errors.Is;
// the returned errors wrap these with the offending group path or identifier.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvalidPath        = errors.New("invalid group path")
)
