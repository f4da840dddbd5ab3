package terminal

import "errors"

var (
	// ErrTerminalClosed is returned for I/O on a pane whose process exited
	// or that was closed.
	ErrTerminalClosed = errors.New("terminal closed")

	ErrTerminalNotFound = errors.New("no terminal for pane")
	ErrTerminalExists   = errors.New("pane already has a terminal")

	// ErrInvalidSize is a requested grid smaller than one cell.
	ErrInvalidSize = errors.New("invalid grid size")

	ErrShellNotFound = errors.New("shell not found")
	ErrManagerClosed = errors.New("terminal manager closed")

	// ErrInputQueueFull means a pane already holds the maximum number of
	// unwritten input chunks. Writers never block on a slow child.
	ErrInputQueueFull = errors.New("input queue full")

	ErrInvalidSelection = errors.New("selection out of range")
	ErrUnknownKey       = errors.New("unknown key")
)
