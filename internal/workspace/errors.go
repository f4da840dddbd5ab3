package workspace

import "errors"

// Common errors.
var (
	ErrNotFound        = errors.New("workspace not found")
	ErrExists          = errors.New("workspace already exists")
	ErrLastWorkspace   = errors.New("cannot close the last workspace")
	ErrIndexOutOfRange = errors.New("workspace index out of range")
	ErrEmptyName       = errors.New("workspace name is empty")
)
