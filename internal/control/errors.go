package control

import "errors"

// Control surface errors.
var (
	ErrClosed          = errors.New("control connection closed")
	ErrInvalidMethod   = errors.New("invalid method")
	ErrDuplicateMethod = errors.New("method already registered")
	ErrAddressInUse    = errors.New("control socket in use by a live session")
	ErrTimeout         = errors.New("control call timed out")
)
